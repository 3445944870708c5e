// Package server assembles the Fiber application: middleware, routes and the
// error surface.
package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"jetroc/internal/compose"
	"jetroc/internal/config"
	"jetroc/internal/domain"
	"jetroc/internal/http/handlers"
	applog "jetroc/internal/log"
	"jetroc/internal/media"
	"jetroc/internal/money"
	"jetroc/web"
)

// BodyLimit leaves room for a full-size image plus the other form fields.
const BodyLimit = media.MaxUploadBytes + 1<<20

// SignInLimit bounds sign-in attempts per IP and window.
var SignInLimit = struct {
	Max    int
	Window time.Duration
}{Max: 10, Window: 10 * time.Minute}

func Views() *html.Engine {
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	engine.AddFunc("price", money.FormatXOF)
	return engine
}

func New(cfg config.Config, deps *handlers.Deps, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "jetroc",
		Views:                 Views(),
		ViewsLayout:           "layouts/main",
		BodyLimit:             BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Output: zap.NewStdLog(log.Named("access")).Writer(),
		Format: "${status} ${method} ${path} ${latency} req=${locals:requestid}\n",
	}))
	app.Use(helmet.New())
	app.Use(handlers.Sessions(deps.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, media.URLPrefix+"/")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return handlers.RenderMessage(c, fiber.StatusTooManyRequests, "Trop de requêtes. Réessayez dans un instant.")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return handlers.RenderMessage(c, fiber.StatusForbidden, "Vérification de sécurité échouée. Rechargez la page et réessayez.")
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// ---------- Static assets ----------
	static := http.FS(web.Static())
	app.Use("/static", filesystem.New(filesystem.Config{Root: static, MaxAge: 3600}))
	app.Get(domain.PlaceholderImage, func(c *fiber.Ctx) error {
		return filesystem.SendFile(c, static, strings.TrimPrefix(domain.PlaceholderImage, "/"))
	})
	app.Get(media.URLPrefix+"/*", mediaHandler(cfg.MediaDir))

	// ---------- Catalog ----------
	ch := deps.CatalogHandler
	app.Get("/", ch.Home)
	for _, cat := range domain.Categories {
		app.Get("/"+cat.Slug(), ch.Category(cat))
	}
	app.Get("/contact", ch.Contact)

	api := app.Group("/api/v1")
	api.Get("/products", ch.ListJSON)
	api.Get("/products/:id", ch.GetJSON)

	// ---------- Intents ----------
	ih := deps.IntentHandler
	for _, kind := range compose.Kinds {
		base := "/" + string(kind)
		if kind.NeedsProduct() {
			base = "/products/:id/" + string(kind)
		}
		app.Get(base, ih.Form(kind))
		app.Post(base, ih.Submit(kind))
		app.Get(base+"/direct", ih.Direct(kind))
	}

	// ---------- Auth ----------
	ah := deps.AuthHandler
	app.Get("/auth", ah.Page)
	app.Post("/auth/signin", limiter.New(limiter.Config{
		Max:        SignInLimit.Max,
		Expiration: SignInLimit.Window,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.signin.hit", nil)
			return handlers.RenderMessage(c, fiber.StatusTooManyRequests, "Trop de tentatives. Réessayez plus tard.")
		},
	}), ah.SignIn)
	app.Post("/auth/signup", ah.SignUp)
	app.Post("/auth/signout", ah.SignOut)

	// ---------- Admin ----------
	adm := deps.AdminHandler
	admin := app.Group("/admin", handlers.RequireAdmin(deps.Auth))
	admin.Get("/", adm.Dashboard)
	admin.Get("/products/new", adm.NewForm)
	admin.Post("/products", adm.Create)
	admin.Get("/products/:id/edit", adm.EditForm)
	admin.Post("/products/:id", adm.Update)
	admin.Get("/products/:id/delete", adm.DeleteConfirm)
	admin.Post("/products/:id/delete", adm.Delete)
	admin.Post("/uploads", adm.Upload)

	// ---------- Health & 404 ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return handlers.RenderMessage(c, fiber.StatusNotFound, "Page introuvable.")
	})
	return app
}

// ErrorHandler logs and renders a friendly page without internal details.
// Authorization failures end the navigation with a redirect to sign-in.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var authz *domain.AuthorizationError
	if errors.As(err, &authz) {
		applog.Security(c, "access.denied", map[string]any{"reason": authz.Reason})
		return c.Redirect("/auth", fiber.StatusSeeOther)
	}

	code := fiber.StatusInternalServerError
	msg := "Une erreur est survenue. Veuillez réessayer."
	var fe *fiber.Error
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code, msg = fiber.StatusNotFound, "Ce produit n'est plus disponible."
	case errors.As(err, &fe):
		code = fe.Code
		switch {
		case code == fiber.StatusNotFound:
			msg = "Page introuvable."
		case code == fiber.StatusRequestEntityTooLarge:
			msg = "Fichier trop volumineux (5 Mo maximum)."
		case code < 500:
			msg = "Requête invalide."
		}
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	} else {
		applog.Info(c, "request.error", map[string]any{"code": code, "err": err.Error()})
	}
	if rerr := handlers.RenderMessage(c, code, msg); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// mediaHandler serves uploaded files, refusing anything that could escape dir.
func mediaHandler(dir string) fiber.Handler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		// Block encoded traversal attempts as well as raw .. or null bytes
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(filepath.Join(dir, clean), true)
	}
}
