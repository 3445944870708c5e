package handlers

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"jetroc/internal/domain"
	applog "jetroc/internal/log"
	"jetroc/internal/media"
	"jetroc/internal/query"
	"jetroc/internal/services"
	"jetroc/internal/validate"
)

type AdminHandler struct {
	Catalog *services.CatalogStore
	Admin   *services.AdminService
	Media   *media.LocalStore
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	st, ok := stateFrom(c, "")
	if !ok {
		return RenderMessage(c, fiber.StatusUnprocessableEntity, msgSearchTooLong)
	}
	l, err := h.Catalog.Products(c.UserContext())
	if err != nil {
		return clientGone(c)
	}
	return render(c, "admin", fiber.Map{
		"Title":           "Administration",
		"Action":          "/admin",
		"State":           st,
		"CategoryOptions": categoryOptions(st.Category, true),
		"SortOptions":     sortOptions(st.Sort),
		"Products":        query.Apply(l.Products, st),
		"Degraded":        l.Degraded,
	})
}

// GET /admin/products/new
func (h *AdminHandler) NewForm(c *fiber.Ctx) error {
	d := services.NewDialog()
	if err := d.OpenCreate(); err != nil {
		return err
	}
	return h.renderDialog(c, fiber.StatusOK, d)
}

// POST /admin/products
func (h *AdminHandler) Create(c *fiber.Ctx) error {
	d := services.NewDialog()
	if err := d.OpenCreate(); err != nil {
		return err
	}
	return h.submit(c, d)
}

// GET /admin/products/:id/edit
func (h *AdminHandler) EditForm(c *fiber.Ctx) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	d := services.NewDialog()
	if err := d.OpenEdit(p); err != nil {
		return err
	}
	return h.renderDialog(c, fiber.StatusOK, d)
}

// POST /admin/products/:id
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	d := services.NewDialog()
	if err := d.OpenEdit(p); err != nil {
		return err
	}
	return h.submit(c, d)
}

// GET /admin/products/:id/delete asks for confirmation.
func (h *AdminHandler) DeleteConfirm(c *fiber.Ctx) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	return render(c, "admin_delete", fiber.Map{"Title": "Supprimer", "Product": p})
}

// POST /admin/products/:id/delete
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return domain.ErrNotFound
	}
	err := h.Admin.Delete(c.UserContext(), id, c.FormValue("confirm") == "yes")
	switch {
	case errors.Is(err, services.ErrConfirmationRequired):
		return c.Redirect("/admin/products/"+id+"/delete", fiber.StatusSeeOther)
	case errors.Is(err, domain.ErrNotFound):
		return RenderMessage(c, fiber.StatusNotFound, "Ce produit n'existe plus.")
	case err != nil:
		applog.Error(c, "admin.product.delete.fail", err, map[string]any{"id": id})
		return RenderMessage(c, fiber.StatusServiceUnavailable, "Suppression impossible pour le moment. Veuillez réessayer.")
	}
	applog.Audit(c, "admin.product.delete", map[string]any{"id": id})
	return c.Redirect("/admin", fiber.StatusSeeOther)
}

// POST /admin/uploads answers with the public URL of the stored image.
func (h *AdminHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing image"})
	}
	url, err := h.store(c, fh)
	var uerr *domain.UploadError
	if errors.As(err, &uerr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": uerr.Reason})
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

func (h *AdminHandler) store(c *fiber.Ctx, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", &domain.UploadError{Reason: "read failed", Err: err}
	}
	defer f.Close()
	url, err := h.Media.Upload(c.UserContext(), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		applog.Security(c, "admin.upload.reject", map[string]any{"name": fh.Filename, "size": fh.Size, "err": err.Error()})
		return "", err
	}
	applog.Audit(c, "admin.upload", map[string]any{"url": url, "size": fh.Size})
	return url, nil
}

func (h *AdminHandler) load(c *fiber.Ctx) (domain.Product, error) {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return domain.Product{}, domain.ErrNotFound
	}
	return h.Catalog.Get(c.UserContext(), id)
}

func formFrom(c *fiber.Ctx) services.ProductForm {
	return services.ProductForm{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
		ImageURL:    c.FormValue("image_url"),
		Category:    c.FormValue("category"),
		Condition:   c.FormValue("condition"),
		Rating:      c.FormValue("rating"),
	}
}

// submit uploads the optional image first; a rejected upload stops before
// any product write.
func (h *AdminHandler) submit(c *fiber.Ctx, d *services.Dialog) error {
	f := formFrom(c)
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		url, err := h.store(c, fh)
		if err != nil {
			d.Form = f
			d.Err = err
			return h.renderDialog(c, fiber.StatusUnprocessableEntity, d)
		}
		f.ImageURL = url
	}

	editing := d.Editing()
	p, err := h.Admin.Submit(c.UserContext(), d, f)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return h.renderDialog(c, fiber.StatusUnprocessableEntity, d)
	case err != nil:
		applog.Error(c, "admin.product.save.fail", err, map[string]any{"editing": editing})
		return h.renderDialog(c, fiber.StatusServiceUnavailable, d)
	}

	action := "admin.product.create"
	if editing {
		action = "admin.product.update"
	}
	applog.Audit(c, action, map[string]any{"id": p.ID, "name": p.Name, "price": p.Price})
	return c.Redirect("/admin", fiber.StatusSeeOther)
}

func (h *AdminHandler) renderDialog(c *fiber.Ctx, status int, d *services.Dialog) error {
	action := "/admin/products"
	if t, ok := d.Target(); ok {
		action += "/" + t.ID
	}
	errs := map[string]string{}
	msg := ""
	var (
		verr *domain.ValidationError
		uerr *domain.UploadError
	)
	switch {
	case d.Err == nil:
	case errors.As(d.Err, &verr):
		errs = verr.Fields
		msg = "Certains champs sont invalides."
	case errors.As(d.Err, &uerr):
		errs["image"] = uerr.Reason
		msg = "L'image n'a pas été enregistrée."
	default:
		msg = "Enregistrement impossible pour le moment. Vos saisies sont conservées, réessayez."
	}
	return render(c.Status(status), "admin_form", fiber.Map{
		"Title":            "Produit",
		"Editing":          d.Editing(),
		"Action":           action,
		"Form":             d.Form,
		"Errors":           errs,
		"Err":              msg,
		"CategoryOptions":  categoryOptions(d.Form.Category, false),
		"ConditionOptions": conditionOptions(d.Form.Condition),
	})
}
