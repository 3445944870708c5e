package server_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"jetroc/internal/domain"
	"jetroc/internal/http/server"
	applog "jetroc/internal/log"
)

func TestCSRFRequiredOnPost(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{"email": {"a@jetroc.ci"}, "password": {"motdepasse1"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Vérification de sécurité échouée")
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t)
	resp := app.get("/", "")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestMediaTraversalBlocked(t *testing.T) {
	app := newTestApp(t)
	for _, p := range []string{
		"/media/../jetroc.db",
		"/media/products/%2e%2e/%2e%2e/etc/passwd",
		"/media/products/..%2f..%2fsecret",
	} {
		resp := app.get(p, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

// Friendly error surface, nothing internal leaks to the page.
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	app := fiber.New(fiber.Config{
		Views:        server.Views(),
		ViewsLayout:  "layouts/main",
		ErrorHandler: server.ErrorHandler,
	})
	app.Use(requestid.New())
	app.Get("/err", func(c *fiber.Ctx) error {
		return errors.New("db timeout: secret trace")
	})
	app.Get("/gone", func(c *fiber.Ctx) error {
		return &domain.StoreError{Op: "get product", Err: domain.ErrNotFound}
	})
	app.Get("/denied", func(c *fiber.Ctx) error {
		return &domain.AuthorizationError{Reason: "not an admin"}
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/err", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Une erreur est survenue")
	assert.NotContains(t, page, "db timeout")
	assert.NotContains(t, page, "secret")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/gone", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/denied", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth", resp.Header.Get("Location"))
}

func TestTemplateAutoEscape(t *testing.T) {
	app := newTestApp(t)
	_, err := app.deps.Catalog.Create(context.Background(), domain.ProductInput{
		Name:        "<script>alert(1)</script>",
		Description: "x",
		Price:       1000,
		ImageURL:    domain.PlaceholderImage,
		Category:    domain.CategoryAutres,
		Condition:   domain.ConditionBon,
	})
	require.NoError(t, err)

	page := body(t, app.get("/autres", ""))
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestBodySizeLimit(t *testing.T) {
	app := newTestApp(t)
	big := bytes.Repeat([]byte("A"), server.BodyLimit+10)
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: app.csrf})
	resp, err := app.Test(req, 5000)
	// fasthttp may drop the connection instead of answering.
	if err != nil {
		assert.Contains(t, err.Error(), "body size exceeds")
		return
	}
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAccessDeniedLogs(t *testing.T) {
	app := newTestApp(t)
	member := app.signIn("client@jetroc.ci", false)
	core, logs := observer.New(zap.InfoLevel)
	t.Cleanup(applog.SetLogger(zap.New(core)))

	app.get("/admin", member)

	denied := logs.FilterMessage("access.denied.admin").All()
	require.Len(t, denied, 1)
	ctx := denied[0].ContextMap()
	assert.Equal(t, "security", ctx["kind"])
	assert.NotEmpty(t, ctx["user_id"])
	assert.Len(t, logs.FilterMessage("access.denied").All(), 1)
}
