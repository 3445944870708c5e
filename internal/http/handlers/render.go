package handlers

import (
	"github.com/gofiber/fiber/v2"

	"jetroc/internal/domain"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if s := sessionOf(c); s != nil {
		data["Session"] = s
	}
	data["Nav"] = domain.Categories
	// Pick up the token the CSRF middleware put into Locals
	tok, _ := c.Locals("CSRFToken").(string)
	if tok == "" {
		// Fall back to the cookie so forms never carry an empty hidden field.
		tok = c.Cookies("csrf_")
	}
	data["CSRFToken"] = tok
	return c.Render(tmpl, data)
}

// RenderMessage shows the generic message page with status.
func RenderMessage(c *fiber.Ctx, status int, msg string) error {
	return render(c.Status(status), "notfound", fiber.Map{"Title": "Oups", "Message": msg})
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

func categoryOptions(selected string, withAll bool) []option {
	var opts []option
	if withAll {
		opts = append(opts, option{Value: "all", Label: "Toutes les catégories", Selected: selected == "" || selected == "all"})
	}
	for _, cat := range domain.Categories {
		opts = append(opts, option{Value: string(cat), Label: string(cat), Selected: selected == string(cat)})
	}
	return opts
}

func conditionOptions(selected string) []option {
	opts := make([]option, 0, len(domain.Conditions))
	for _, cond := range domain.Conditions {
		opts = append(opts, option{Value: string(cond), Label: string(cond), Selected: selected == string(cond)})
	}
	return opts
}
