// Package seed carries the built-in catalog shipped with the binary.
package seed

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"jetroc/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Products []domain.Product `yaml:"products"`
}

var (
	once     sync.Once
	products []domain.Product
	loadErr  error
)

// Products returns a fresh copy of the built-in catalog, newest first.
func Products() ([]domain.Product, error) {
	once.Do(func() { products, loadErr = parse(catalogYAML) })
	if loadErr != nil {
		return nil, loadErr
	}
	return append([]domain.Product(nil), products...), nil
}

func parse(b []byte) ([]domain.Product, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("seed: decode catalog: %w", err)
	}
	for i, p := range f.Products {
		if _, err := domain.ParseCategory(string(p.Category)); err != nil {
			return nil, fmt.Errorf("seed: product %s: %w", p.ID, err)
		}
		if _, err := domain.ParseCondition(string(p.Condition)); err != nil {
			return nil, fmt.Errorf("seed: product %s: %w", p.ID, err)
		}
		if p.Price < 0 || p.Rating < 0 || p.Rating > 5 {
			return nil, fmt.Errorf("seed: product %s: price or rating out of range", p.ID)
		}
		f.Products[i].CreatedAt = p.CreatedAt.UTC()
	}
	return f.Products, nil
}
