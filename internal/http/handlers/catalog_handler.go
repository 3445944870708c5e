package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"jetroc/internal/domain"
	applog "jetroc/internal/log"
	"jetroc/internal/query"
	"jetroc/internal/services"
	"jetroc/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogStore
	Intents *services.IntentService
}

var sortLabels = map[query.SortKey]string{
	query.SortNewest:     "Plus récents",
	query.SortPriceAsc:   "Prix croissant",
	query.SortPriceDesc:  "Prix décroissant",
	query.SortRatingDesc: "Mieux notés",
}

func sortOptions(selected query.SortKey) []option {
	opts := make([]option, 0, len(query.SortKeys))
	for _, k := range query.SortKeys {
		opts = append(opts, option{Value: string(k), Label: sortLabels[k], Selected: k == selected})
	}
	return opts
}

// stateFrom reads q, category and sort. fixed pins the category for the
// per-category pages. ok is false when q is longer than validate.MaxQ.
func stateFrom(c *fiber.Ctx, fixed domain.Category) (query.State, bool) {
	cat := c.Query("category")
	if fixed != "" {
		cat = string(fixed)
	}
	q, ok := validate.Q(c.Query("q"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "q"})
		return query.State{}, false
	}
	return query.ParseState(q, cat, c.Query("sort")), true
}

var msgSearchTooLong = fmt.Sprintf("Recherche trop longue (%d caractères maximum).", validate.MaxQ)

// StatusClientClosed answers a request whose client left before the catalog
// load finished. Nobody reads it; the load's result is discarded.
const StatusClientClosed = 499

// listing loads the catalog and applies the view's query. ok is false when
// the visitor went away mid-load; the caller answers with clientGone.
func (h *CatalogHandler) listing(c *fiber.Ctx, st query.State) ([]domain.Product, bool, bool) {
	l, err := h.Catalog.Products(c.UserContext())
	if err != nil {
		applog.Info(c, "catalog.load.abandoned", map[string]any{"err": err.Error()})
		return nil, false, false
	}
	if l.Degraded {
		applog.Info(c, "catalog.degraded", nil)
	}
	return query.Apply(l.Products, st), l.Degraded, true
}

// Home is the full catalog with the category filter.
func (h *CatalogHandler) Home(c *fiber.Ctx) error {
	st, ok := stateFrom(c, "")
	if !ok {
		return RenderMessage(c, fiber.StatusUnprocessableEntity, msgSearchTooLong)
	}
	products, degraded, ok := h.listing(c, st)
	if !ok {
		return clientGone(c)
	}
	return render(c, "catalog", fiber.Map{
		"Heading":         "Téléphones et ordinateurs de qualité à Abidjan",
		"Action":          "/",
		"State":           st,
		"CategoryOptions": categoryOptions(st.Category, true),
		"SortOptions":     sortOptions(st.Sort),
		"Products":        products,
		"Degraded":        degraded,
	})
}

// Category serves /iphones, /android, ... with the category fixed.
func (h *CatalogHandler) Category(cat domain.Category) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, ok := stateFrom(c, cat)
		if !ok {
			return RenderMessage(c, fiber.StatusUnprocessableEntity, msgSearchTooLong)
		}
		products, degraded, ok := h.listing(c, st)
		if !ok {
			return clientGone(c)
		}
		return render(c, "catalog", fiber.Map{
			"Title":       string(cat),
			"Heading":     string(cat),
			"Action":      "/" + cat.Slug(),
			"State":       st,
			"SortOptions": sortOptions(st.Sort),
			"Products":    products,
			"Degraded":    degraded,
		})
	}
}

func (h *CatalogHandler) Contact(c *fiber.Ctx) error {
	link, err := h.Intents.ContactLink()
	if err != nil {
		return err
	}
	return render(c, "contact", fiber.Map{"Title": "Contact", "ContactURL": link})
}

// ListJSON is GET /api/v1/products.
func (h *CatalogHandler) ListJSON(c *fiber.Ctx) error {
	st, ok := stateFrom(c, "")
	if !ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "search term too long", "max": validate.MaxQ})
	}
	products, degraded, ok := h.listing(c, st)
	if !ok {
		return clientGone(c)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return c.JSON(fiber.Map{
		"products": products,
		"count":    len(products),
		"degraded": degraded,
		"query":    fiber.Map{"q": st.Search, "category": st.Category, "sort": st.Sort},
	})
}

// GetJSON is GET /api/v1/products/:id.
func (h *CatalogHandler) GetJSON(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	return c.JSON(p)
}

func clientGone(c *fiber.Ctx) error {
	c.Status(StatusClientClosed)
	return nil
}
