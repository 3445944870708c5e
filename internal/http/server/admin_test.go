package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jetroc/internal/domain"
	applog "jetroc/internal/log"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func findProduct(t *testing.T, app *testApp, name string) (domain.Product, bool) {
	t.Helper()
	l, err := app.deps.Catalog.Products(context.Background())
	require.NoError(t, err)
	for _, p := range l.Products {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Product{}, false
}

func TestAdminCreateEditDelete(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	resp := app.get("/admin/products/new", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Nouveau produit")

	resp = app.postMultipart("/admin/products", sid, productForm("Pixel 8", "390 000"),
		upload{field: "image", name: "pixel.png", contentType: "image/png", data: pngPixel})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	p, ok := findProduct(t, app, "Pixel 8")
	require.True(t, ok, "new product is visible right after the write")
	assert.EqualValues(t, 390000, p.Price)
	assert.Equal(t, domain.CategoryAndroid, p.Category)
	require.True(t, strings.HasPrefix(p.ImageURL, "/media/products/"), p.ImageURL)

	stored := filepath.Join(app.cfg.MediaDir, strings.TrimPrefix(p.ImageURL, "/media/"))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)
	assert.Equal(t, http.StatusOK, app.get(p.ImageURL, "").StatusCode)

	assert.Contains(t, body(t, app.get("/android", "")), "390 000 FCFA")

	resp = app.get("/admin/products/"+p.ID+"/edit", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `value="Pixel 8"`)

	form := productForm("Pixel 8", "350000")
	form.Set("image_url", p.ImageURL)
	resp = app.postMultipart("/admin/products/"+p.ID, sid, form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	p2, ok := findProduct(t, app, "Pixel 8")
	require.True(t, ok)
	assert.Equal(t, p.ID, p2.ID)
	assert.EqualValues(t, 350000, p2.Price)
	assert.Equal(t, p.ImageURL, p2.ImageURL)

	resp = app.post("/admin/products/"+p.ID+"/delete", sid, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/products/"+p.ID+"/delete", resp.Header.Get("Location"))
	_, ok = findProduct(t, app, "Pixel 8")
	require.True(t, ok, "unconfirmed delete keeps the product")

	resp = app.get("/admin/products/"+p.ID+"/delete", sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `name="confirm" value="yes"`)

	resp = app.post("/admin/products/"+p.ID+"/delete", sid, url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
	_, ok = findProduct(t, app, "Pixel 8")
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, app.get("/api/v1/products/"+p.ID, "").StatusCode)
}

func TestAdminCreateWithoutImageUsesPlaceholder(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	resp := app.postMultipart("/admin/products", sid, productForm("Redmi Note 13", "150000"))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	p, ok := findProduct(t, app, "Redmi Note 13")
	require.True(t, ok)
	assert.Equal(t, domain.PlaceholderImage, p.ImageURL)
}

func TestAdminCreateWithoutDescription(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	form := productForm("Galaxy A15", "95000")
	form.Del("description")
	resp := app.postMultipart("/admin/products", sid, form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	p, ok := findProduct(t, app, "Galaxy A15")
	require.True(t, ok)
	assert.Empty(t, p.Description)

	page := body(t, app.get("/admin/products/new", sid))
	assert.Contains(t, page, `<textarea id="description" name="description" rows="4">`)
}

func TestAdminInvalidFormKeepsInput(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)
	before, err := app.deps.Catalog.Products(context.Background())
	require.NoError(t, err)

	form := productForm("Pixel 8", "-5")
	form.Set("rating", "7")
	resp := app.postMultipart("/admin/products", sid, form)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Certains champs sont invalides.")
	assert.Contains(t, page, `value="Pixel 8"`)
	assert.Contains(t, page, "must be between 0 and 5")

	after, err := app.deps.Catalog.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, after.Products, len(before.Products))
}

func TestAdminRejectedUploadWritesNothing(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	resp := app.postMultipart("/admin/products", sid, productForm("Pixel 8", "390000"),
		upload{field: "image", name: "notes.txt", contentType: "text/plain", data: []byte("hello")})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "L&#39;image n&#39;a pas été enregistrée.")
	_, ok := findProduct(t, app, "Pixel 8")
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(app.cfg.MediaDir, "products"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdminUploadEndpoint(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	resp := app.postMultipart("/admin/uploads", sid, nil,
		upload{field: "image", name: "pixel.png", contentType: "image/png", data: pngPixel})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct{ URL string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.URL, "/media/products/"))
	assert.True(t, strings.HasSuffix(out.URL, ".png"))

	resp = app.postMultipart("/admin/uploads", sid, nil,
		upload{field: "image", name: "fake.png", contentType: "image/png", data: []byte("<html></html>")})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = app.postMultipart("/admin/uploads", "", nil,
		upload{field: "image", name: "pixel.png", contentType: "image/png", data: pngPixel})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestAdminUnknownProduct(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)

	resp := app.get("/admin/products/ghost/edit", sid)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Ce produit n&#39;est plus disponible.")

	resp = app.post("/admin/products/ghost/delete", sid, url.Values{"confirm": {"yes"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminChangesAreAudited(t *testing.T) {
	app := newTestApp(t)
	sid := app.signIn("admin@jetroc.ci", true)
	core, logs := observer.New(zap.InfoLevel)
	t.Cleanup(applog.SetLogger(zap.New(core)))

	require.Equal(t, http.StatusSeeOther, app.postMultipart("/admin/products", sid, productForm("Pixel 8", "390000")).StatusCode)
	p, ok := findProduct(t, app, "Pixel 8")
	require.True(t, ok)
	require.Equal(t, http.StatusSeeOther, app.postMultipart("/admin/products/"+p.ID, sid, productForm("Pixel 8a", "300000")).StatusCode)
	require.Equal(t, http.StatusSeeOther, app.post("/admin/products/"+p.ID+"/delete", sid, url.Values{"confirm": {"yes"}}).StatusCode)

	for _, action := range []string{"admin.product.create", "admin.product.update", "admin.product.delete"} {
		entries := logs.FilterMessage(action).All()
		require.Len(t, entries, 1, action)
		ctx := entries[0].ContextMap()
		assert.Equal(t, "audit", ctx["kind"], action)
		assert.NotEmpty(t, ctx["user_id"], action)
	}
}
