package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"jetroc/internal/compose"
	"jetroc/internal/domain"
	applog "jetroc/internal/log"
	"jetroc/internal/services"
	"jetroc/internal/validate"
)

type IntentHandler struct {
	Intents *services.IntentService
}

type fieldView struct {
	Name     string
	Label    string
	Type     string
	Required bool
	Options  []string
	Value    string
	Error    string
}

var intentHeadings = map[compose.Kind]string{
	compose.KindOrder:  "Passer commande",
	compose.KindSell:   "Vendre mon téléphone",
	compose.KindTrade:  "Troquer mon téléphone",
	compose.KindRepair: "Faire réparer mon téléphone",
}

var intentFields = map[compose.Kind][]fieldView{
	compose.KindOrder: {
		{Name: "last_name", Label: "Nom", Type: "text", Required: true},
		{Name: "first_name", Label: "Prénom", Type: "text", Required: true},
		{Name: "phone", Label: "Téléphone", Type: "tel", Required: true},
		{Name: "address", Label: "Adresse de livraison", Type: "textarea", Required: true},
		{Name: "color", Label: "Couleur souhaitée", Type: "text"},
		{Name: "notes", Label: "Informations supplémentaires", Type: "textarea"},
	},
	compose.KindSell: {
		{Name: "name", Label: "Votre nom", Type: "text", Required: true},
		{Name: "phone", Label: "Votre numéro WhatsApp", Type: "tel", Required: true},
		{Name: "brand", Label: "Marque", Type: "select", Required: true, Options: compose.Brands},
		{Name: "model", Label: "Modèle", Type: "text", Required: true},
		{Name: "description", Label: "État et description", Type: "textarea", Required: true},
		{Name: "asking_price", Label: "Prix souhaité (FCFA)", Type: "text", Required: true},
	},
	compose.KindTrade: {
		{Name: "brand", Label: "Marque de votre téléphone", Type: "select", Required: true, Options: compose.Brands},
		{Name: "model", Label: "Modèle", Type: "text", Required: true},
		{Name: "description", Label: "État et description", Type: "textarea", Required: true},
		{Name: "additional_amount", Label: "Montant supplémentaire proposé (FCFA)", Type: "text"},
		{Name: "phone", Label: "Votre numéro WhatsApp", Type: "tel", Required: true},
	},
	compose.KindRepair: {
		{Name: "description", Label: "Décrivez le problème", Type: "textarea", Required: true},
		{Name: "phone", Label: "Votre numéro WhatsApp", Type: "tel", Required: true},
	},
}

func fieldsFor(kind compose.Kind, values map[string]string, errs map[string]string) []fieldView {
	tmpl := intentFields[kind]
	out := make([]fieldView, len(tmpl))
	for i, f := range tmpl {
		f.Value = values[f.Name]
		f.Error = errs[f.Name]
		out[i] = f
	}
	return out
}

func intentPath(kind compose.Kind, productID string) string {
	if kind.NeedsProduct() {
		return "/products/" + productID + "/" + string(kind)
	}
	return "/" + string(kind)
}

// product validates :id and loads the product for Order and Trade. A nil
// error with a nil product means the kind needs none.
func (h *IntentHandler) product(c *fiber.Ctx, kind compose.Kind) (*domain.Product, string, error) {
	if !kind.NeedsProduct() {
		return nil, "", nil
	}
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return nil, "", domain.ErrNotFound
	}
	p, err := h.Intents.Product(c.UserContext(), kind, id)
	return p, id, err
}

func (h *IntentHandler) Form(kind compose.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, id, err := h.product(c, kind)
		if err != nil {
			return RenderMessage(c, fiber.StatusNotFound, "Ce produit n'est plus disponible.")
		}
		return h.renderForm(c, fiber.StatusOK, kind, p, id, nil, nil, "")
	}
}

// Submit composes the message and hands the visitor over to WhatsApp.
func (h *IntentHandler) Submit(kind compose.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, id, err := h.product(c, kind)
		if err != nil {
			return RenderMessage(c, fiber.StatusNotFound, "Ce produit n'est plus disponible.")
		}
		values := make(map[string]string)
		for _, name := range compose.FieldNames(kind) {
			values[name] = c.FormValue(name)
		}

		link, err := h.Intents.Link(c.UserContext(), kind, id, values)
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			applog.Info(c, "intent.invalid", map[string]any{"kind": kind, "fields": verr.Fields})
			return h.renderForm(c, fiber.StatusUnprocessableEntity, kind, p, id, values, verr.Fields,
				"Veuillez remplir tous les champs obligatoires.")
		case errors.Is(err, domain.ErrNotFound):
			return RenderMessage(c, fiber.StatusNotFound, "Ce produit n'est plus disponible.")
		case err != nil:
			return err
		}
		applog.Info(c, "intent.handoff", map[string]any{"kind": kind, "product": id})
		return c.Redirect(link, fiber.StatusSeeOther)
	}
}

// Direct skips the form.
func (h *IntentHandler) Direct(kind compose.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, id, err := h.product(c, kind)
		if err != nil {
			return RenderMessage(c, fiber.StatusNotFound, "Ce produit n'est plus disponible.")
		}
		link, err := h.Intents.DirectLink(c.UserContext(), kind, id)
		if err != nil {
			return err
		}
		applog.Info(c, "intent.handoff.direct", map[string]any{"kind": kind, "product": id})
		return c.Redirect(link, fiber.StatusSeeOther)
	}
}

func (h *IntentHandler) renderForm(c *fiber.Ctx, status int, kind compose.Kind, p *domain.Product, id string,
	values, errs map[string]string, msg string) error {
	path := intentPath(kind, id)
	return render(c.Status(status), "intent", fiber.Map{
		"Title":     intentHeadings[kind],
		"Heading":   intentHeadings[kind],
		"Product":   p,
		"Action":    path,
		"DirectURL": path + "/direct",
		"Fields":    fieldsFor(kind, values, errs),
		"Err":       msg,
	})
}
