package domain

import (
	"fmt"
	"time"
)

// PlaceholderImage is stored when a product is saved without an image.
const PlaceholderImage = "/placeholder.svg"

type Category string

const (
	CategoryIPhones     Category = "iPhones"
	CategoryAndroid     Category = "Android"
	CategoryOrdinateurs Category = "Ordinateurs"
	CategoryAutres      Category = "Autres"
)

// Categories lists the catalog categories in display order.
var Categories = []Category{CategoryIPhones, CategoryAndroid, CategoryOrdinateurs, CategoryAutres}

func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Slug is the public path segment of the category page (/iphones, /android, ...).
func (c Category) Slug() string {
	switch c {
	case CategoryIPhones:
		return "iphones"
	case CategoryAndroid:
		return "android"
	case CategoryOrdinateurs:
		return "ordinateurs"
	case CategoryAutres:
		return "autres"
	}
	return ""
}

type Condition string

const (
	ConditionNeuf      Condition = "Neuf"
	ConditionCommeNeuf Condition = "Comme neuf"
	ConditionExcellent Condition = "Excellent"
	ConditionTresBon   Condition = "Très bon"
	ConditionBon       Condition = "Bon"
	ConditionCorrect   Condition = "Correct"
)

var Conditions = []Condition{
	ConditionNeuf, ConditionCommeNeuf, ConditionExcellent,
	ConditionTresBon, ConditionBon, ConditionCorrect,
}

func ParseCondition(s string) (Condition, error) {
	for _, c := range Conditions {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

type Product struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Price       int64     `json:"price" yaml:"price"` // XOF, no minor unit
	ImageURL    string    `json:"image_url" yaml:"image_url"`
	Category    Category  `json:"category" yaml:"category"`
	Condition   Condition `json:"condition" yaml:"condition"`
	Rating      float64   `json:"rating" yaml:"rating"` // 0..5, 0 when unrated
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// ProductInput is a validated create/update payload.
type ProductInput struct {
	Name        string
	Description string
	Price       int64
	ImageURL    string
	Category    Category
	Condition   Condition
	Rating      float64
}
