package server_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"jetroc/internal/config"
	"jetroc/internal/http/handlers"
	"jetroc/internal/http/server"
	"jetroc/internal/repos"
)

type testApp struct {
	*fiber.App
	t    *testing.T
	deps *handlers.Deps
	db   *sqlx.DB
	cfg  config.Config
	csrf string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := config.Config{
		Port:           "0",
		DBDSN:          ":memory:",
		MediaDir:       t.TempDir(),
		LogLevel:       "info",
		WhatsAppNumber: "2250586905549",
		RateLimit:      10000,
	}
	db, err := repos.OpenDB(cfg.DBDSN, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deps, err := handlers.NewDeps(db, cfg, zap.NewNop())
	require.NoError(t, err)
	deps.Auth.Cost = bcrypt.MinCost

	ta := &testApp{App: server.New(cfg, deps, zap.NewNop()), t: t, deps: deps, db: db, cfg: cfg}
	ta.csrf = cookie(ta.get("/auth", ""), "csrf_")
	require.NotEmpty(t, ta.csrf, "csrf token missing")
	return ta
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (a *testApp) do(req *http.Request, sid string) *http.Response {
	a.t.Helper()
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	if a.csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: a.csrf})
	}
	resp, err := a.Test(req, 5000)
	require.NoError(a.t, err)
	return resp
}

func (a *testApp) get(path, sid string) *http.Response {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), sid)
}

func (a *testApp) post(path, sid string, form url.Values) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", a.csrf)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, sid)
}

type upload struct {
	field, name, contentType string
	data                     []byte
}

func (a *testApp) postMultipart(path, sid string, form url.Values, files ...upload) *http.Response {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(a.t, w.WriteField("csrf", a.csrf))
	for k, vs := range form {
		for _, v := range vs {
			require.NoError(a.t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(a.t, err)
		_, err = part.Write(f.data)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return a.do(req, sid)
}

// signIn registers email (granting admin when asked) and returns the new sid.
func (a *testApp) signIn(email string, admin bool) string {
	a.t.Helper()
	ctx := context.Background()
	if admin {
		require.NoError(a.t, a.deps.Auth.EnsureAdmin(ctx, email, "motdepasse1"))
	} else {
		require.NoError(a.t, a.deps.Auth.SignUp(ctx, email, "motdepasse1"))
	}
	resp := a.post("/auth/signin", "", url.Values{"email": {email}, "password": {"motdepasse1"}})
	require.Equal(a.t, http.StatusSeeOther, resp.StatusCode)
	sid := cookie(resp, "sid")
	require.NotEmpty(a.t, sid)
	return sid
}

func productForm(name, price string) url.Values {
	return url.Values{
		"name":        {name},
		"description": {"Comme neuf, boîte d'origine"},
		"price":       {price},
		"category":    {"Android"},
		"condition":   {"Comme neuf"},
		"rating":      {"4.5"},
	}
}
