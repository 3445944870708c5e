package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"jetroc/internal/domain"
	applog "jetroc/internal/log"
	"jetroc/internal/services"
	"jetroc/internal/validate"
)

type AuthHandler struct {
	Auth         *services.AuthService
	CookieSecure bool
}

func (h *AuthHandler) setSID(c *fiber.Ctx, sid string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.CookieSecure,
		Expires:  expires,
	})
}

// Page is GET /auth.
func (h *AuthHandler) Page(c *fiber.Ctx) error {
	if s := sessionOf(c); s != nil && s.IsAdmin {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}
	return render(c, "auth", fiber.Map{"Title": "Connexion"})
}

func (h *AuthHandler) fail(c *fiber.Ctx, status int, email, msg string) error {
	return render(c.Status(status), "auth", fiber.Map{"Title": "Connexion", "Err": msg, "Email": email})
}

// SignIn binds a fresh sid so a pre-login cookie is never promoted.
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	email, ok := validate.Email(c.FormValue("email"))
	pass := c.FormValue("password")
	if !ok || pass == "" {
		applog.Security(c, "auth.signin.fail", map[string]any{"reason": "bad_format"})
		return h.fail(c, fiber.StatusUnauthorized, email, "E-mail ou mot de passe incorrect.")
	}

	sid := uuid.NewString()
	sess, err := h.Auth.SignIn(c.UserContext(), sid, email, pass)
	var aerr *domain.AuthError
	if errors.As(err, &aerr) {
		switch aerr.Kind {
		case domain.AuthInvalidCredentials:
			applog.Security(c, "auth.signin.fail", map[string]any{"email": email})
			return h.fail(c, fiber.StatusUnauthorized, email, "E-mail ou mot de passe incorrect.")
		default:
			applog.Error(c, "auth.signin.error", err, map[string]any{"email": email})
			return h.fail(c, fiber.StatusServiceUnavailable, email, "Connexion impossible pour le moment. Veuillez réessayer.")
		}
	}
	if err != nil {
		return err
	}

	if old := c.Cookies(sessionCookie); old != "" {
		_ = h.Auth.SignOut(c.UserContext(), old)
	}
	h.setSID(c, sid, time.Time{})
	setSession(c, sess)
	applog.Audit(c, "auth.signin.success", map[string]any{"email": email, "admin": sess.IsAdmin})
	if sess.IsAdmin {
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// SignUp registers an account without granting any role or signing in.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	email, ok := validate.Email(c.FormValue("email"))
	if !ok {
		applog.Security(c, "auth.signup.fail", map[string]any{"reason": "bad_email"})
		return h.fail(c, fiber.StatusUnprocessableEntity, "", "Adresse e-mail invalide.")
	}
	if !validate.Password(c.FormValue("password")) {
		return h.fail(c, fiber.StatusUnprocessableEntity, email, "Le mot de passe doit contenir au moins 8 caractères dont un chiffre.")
	}

	err := h.Auth.SignUp(c.UserContext(), email, c.FormValue("password"))
	var aerr *domain.AuthError
	if errors.As(err, &aerr) {
		if aerr.Kind == domain.AuthAlreadyRegistered {
			applog.Security(c, "auth.signup.fail", map[string]any{"email": email, "reason": "already_registered"})
			return h.fail(c, fiber.StatusConflict, email, "Un compte existe déjà avec cette adresse.")
		}
		applog.Error(c, "auth.signup.error", err, map[string]any{"email": email})
		return h.fail(c, fiber.StatusServiceUnavailable, email, "Inscription impossible pour le moment. Veuillez réessayer.")
	}
	if err != nil {
		return err
	}
	applog.Audit(c, "auth.signup.success", map[string]any{"email": email})
	return render(c, "auth", fiber.Map{"Title": "Connexion", "Email": email, "Notice": "Compte créé. Vous pouvez vous connecter."})
}

// SignOut redirects only after the session row is unbound.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	sid := c.Cookies(sessionCookie)
	if err := h.Auth.SignOut(c.UserContext(), sid); err != nil {
		applog.Error(c, "auth.signout.error", err, nil)
		return err
	}
	h.setSID(c, "", time.Now().Add(-time.Hour))
	applog.Audit(c, "auth.signout", nil)
	return c.Redirect("/", fiber.StatusSeeOther)
}
