package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"jetroc/internal/domain"
	"jetroc/internal/money"
	"jetroc/internal/validate"
)

var (
	ErrIllegalTransition    = errors.New("illegal dialog transition")
	ErrConfirmationRequired = errors.New("delete requires explicit confirmation")
)

type Phase int

const (
	PhaseViewing Phase = iota
	PhaseCreating
	PhaseEditing
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseViewing:
		return "viewing"
	case PhaseCreating:
		return "creating"
	case PhaseEditing:
		return "editing"
	case PhaseSubmitting:
		return "submitting"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// ProductForm holds the raw admin form values.
type ProductForm struct {
	Name        string
	Description string
	Price       string
	ImageURL    string
	Category    string
	Condition   string
	Rating      string
}

func FormFromProduct(p domain.Product) ProductForm {
	f := ProductForm{
		Name:        p.Name,
		Description: p.Description,
		Price:       strconv.FormatInt(p.Price, 10),
		Category:    string(p.Category),
		Condition:   string(p.Condition),
		Rating:      strconv.FormatFloat(p.Rating, 'f', -1, 64),
	}
	if p.ImageURL != domain.PlaceholderImage {
		f.ImageURL = p.ImageURL
	}
	return f
}

// ValidateProductForm turns a form into a store input. Blank image and rating
// become the placeholder and zero.
func ValidateProductForm(f ProductForm) (domain.ProductInput, error) {
	verr := domain.NewValidationError()
	in := domain.ProductInput{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		ImageURL:    strings.TrimSpace(f.ImageURL),
	}

	if name, ok := validate.Name(in.Name); ok {
		in.Name = name
	} else {
		verr.Add("name", "required, at most 120 characters")
	}

	if strings.TrimSpace(f.Price) == "" {
		verr.Add("price", "required")
	} else if v, ok := money.ParseAmount(f.Price); !ok || v < 0 {
		verr.Add("price", "must be a non-negative whole amount")
	} else {
		in.Price = v
	}

	if c, err := domain.ParseCategory(f.Category); err == nil {
		in.Category = c
	} else {
		verr.Add("category", err.Error())
	}
	if c, err := domain.ParseCondition(f.Condition); err == nil {
		in.Condition = c
	} else {
		verr.Add("condition", err.Error())
	}

	if r := strings.TrimSpace(f.Rating); r != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(r, ",", "."), 64)
		if err != nil || v < 0 || v > 5 {
			verr.Add("rating", "must be between 0 and 5")
		} else {
			in.Rating = v
		}
	}

	if in.ImageURL == "" {
		in.ImageURL = domain.PlaceholderImage
	} else if _, ok := validate.ImageURL(in.ImageURL); !ok {
		verr.Add("image_url", "must be a site path or an http(s) URL")
	}

	if err := verr.OrNil(); err != nil {
		return domain.ProductInput{}, err
	}
	return in, nil
}

// Dialog is the admin's create/edit state. At most one dialog is open, and an
// edit always knows which product it targets.
type Dialog struct {
	phase  Phase
	origin Phase
	target domain.Product
	Form   ProductForm
	Err    error
}

func NewDialog() *Dialog { return &Dialog{} }

func (d *Dialog) Phase() Phase { return d.phase }

// Target is the product under edit; ok is false outside an edit.
func (d *Dialog) Target() (domain.Product, bool) {
	if d.phase == PhaseEditing || (d.phase == PhaseSubmitting && d.origin == PhaseEditing) {
		return d.target, true
	}
	return domain.Product{}, false
}

// Editing reports whether the open form targets an existing product.
func (d *Dialog) Editing() bool {
	_, ok := d.Target()
	return ok
}

func (d *Dialog) OpenCreate() error {
	if d.phase != PhaseViewing {
		return fmt.Errorf("%w: %s -> creating", ErrIllegalTransition, d.phase)
	}
	d.phase, d.Form, d.Err = PhaseCreating, ProductForm{}, nil
	return nil
}

func (d *Dialog) OpenEdit(p domain.Product) error {
	if d.phase != PhaseViewing {
		return fmt.Errorf("%w: %s -> editing", ErrIllegalTransition, d.phase)
	}
	d.phase, d.target, d.Form, d.Err = PhaseEditing, p, FormFromProduct(p), nil
	return nil
}

// Close discards the form.
func (d *Dialog) Close() error {
	if d.phase != PhaseCreating && d.phase != PhaseEditing {
		return fmt.Errorf("%w: %s -> viewing", ErrIllegalTransition, d.phase)
	}
	d.phase, d.target, d.Form, d.Err = PhaseViewing, domain.Product{}, ProductForm{}, nil
	return nil
}

func (d *Dialog) begin(f ProductForm) error {
	if d.phase != PhaseCreating && d.phase != PhaseEditing {
		return fmt.Errorf("%w: %s -> submitting", ErrIllegalTransition, d.phase)
	}
	d.origin, d.phase, d.Form, d.Err = d.phase, PhaseSubmitting, f, nil
	return nil
}

// finish closes the dialog on success and reopens it with the typed values
// kept on failure.
func (d *Dialog) finish(err error) {
	if err == nil {
		d.phase, d.target, d.Form, d.Err = PhaseViewing, domain.Product{}, ProductForm{}, nil
		return
	}
	d.phase, d.Err = d.origin, err
}

// CatalogWriter is the mutating side of CatalogStore.
type CatalogWriter interface {
	Create(ctx context.Context, in domain.ProductInput) (domain.Product, error)
	Update(ctx context.Context, id string, in domain.ProductInput) error
	Delete(ctx context.Context, id string) error
}

type AdminService struct {
	Catalog CatalogWriter
	Log     *zap.Logger
}

func NewAdminService(catalog CatalogWriter, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{Catalog: catalog, Log: log.Named("admin")}
}

// Submit validates f and writes it. Invalid input never reaches the store.
func (s *AdminService) Submit(ctx context.Context, d *Dialog, f ProductForm) (domain.Product, error) {
	if err := d.begin(f); err != nil {
		return domain.Product{}, err
	}
	in, err := ValidateProductForm(f)
	if err != nil {
		d.finish(err)
		return domain.Product{}, err
	}

	var p domain.Product
	if target, ok := d.Target(); ok {
		err = s.Catalog.Update(ctx, target.ID, in)
		p = domain.Product{
			ID: target.ID, Name: in.Name, Description: in.Description, Price: in.Price,
			ImageURL: in.ImageURL, Category: in.Category, Condition: in.Condition,
			Rating: in.Rating, CreatedAt: target.CreatedAt,
		}
	} else {
		p, err = s.Catalog.Create(ctx, in)
	}
	d.finish(err)
	if err != nil {
		s.Log.Warn("product save failed", zap.Error(err))
		return domain.Product{}, err
	}
	return p, nil
}

func (s *AdminService) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := s.Catalog.Delete(ctx, id); err != nil {
		s.Log.Warn("product delete failed", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}
