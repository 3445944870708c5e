package services

import "jetroc/internal/domain"

// IsAdmin reports whether grants contain an admin row for identity. Anything
// else, including an empty identity or no rows at all, is a denial.
func IsAdmin(identity string, grants []domain.RoleGrant) bool {
	if identity == "" {
		return false
	}
	for _, g := range grants {
		if g.UserID == identity && g.Role == domain.RoleAdmin {
			return true
		}
	}
	return false
}
