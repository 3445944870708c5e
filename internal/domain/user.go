package domain

type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Hash  string `db:"password_hash"`
}

const RoleAdmin = "admin"

// RoleGrant is one row of the user_roles relation.
type RoleGrant struct {
	UserID string `db:"user_id"`
	Role   string `db:"role"`
}

// Session is resolved per request from the sid cookie. IsAdmin is derived from
// the user_roles relation at resolution time and is never persisted.
type Session struct {
	ID      string
	UserID  string
	Email   string
	IsAdmin bool
}
