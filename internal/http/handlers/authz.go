package handlers

import (
	"github.com/gofiber/fiber/v2"

	"jetroc/internal/domain"
	applog "jetroc/internal/log"
	"jetroc/internal/services"
)

const sessionCookie = "sid"

// Sessions resolves the visitor's session for templates and logs. It never
// blocks a request; admin routes check again through RequireAdmin.
func Sessions(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies(sessionCookie); sid != "" {
			if s, err := auth.ResolveSession(c.UserContext(), sid); s != nil {
				setSession(c, s)
			} else if err != nil {
				applog.Error(c, "auth.session.resolve.fail", err, nil)
			}
		}
		return c.Next()
	}
}

// RequireAdmin re-resolves the session and its role on every request. Any
// failure, including a store error, denies.
func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(sessionCookie)
		if sid == "" {
			return &domain.AuthorizationError{Reason: "no session"}
		}
		s, err := auth.ResolveSession(c.UserContext(), sid)
		if err != nil {
			applog.Error(c, "auth.role.resolve.fail", err, nil)
			return &domain.AuthorizationError{Reason: "role lookup failed"}
		}
		if s == nil {
			return &domain.AuthorizationError{Reason: "session expired"}
		}
		setSession(c, s)
		if !s.IsAdmin {
			applog.Security(c, "access.denied.admin", map[string]any{"email": s.Email})
			return &domain.AuthorizationError{Reason: "not an admin"}
		}
		return c.Next()
	}
}

func setSession(c *fiber.Ctx, s *domain.Session) {
	c.Locals("session", s)
	c.Locals("user_id", s.UserID)
}

func sessionOf(c *fiber.Ctx) *domain.Session {
	s, _ := c.Locals("session").(*domain.Session)
	return s
}
