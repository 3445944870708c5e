package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"jetroc/internal/domain"
)

// RoleRepo reads and writes the user_roles membership relation.
type RoleRepo struct{ db *sqlx.DB }

func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) Grants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	var out []domain.RoleGrant
	err := r.db.SelectContext(ctx, &out, `SELECT user_id, role FROM user_roles WHERE user_id = ?`, userID)
	return out, err
}

// Grant is idempotent.
func (r *RoleRepo) Grant(ctx context.Context, userID, role string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles(user_id, role) VALUES(?, ?)
		ON CONFLICT(user_id, role) DO NOTHING`, userID, role)
	return err
}

func (r *RoleRepo) Revoke(ctx context.Context, userID, role string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role = ?`, userID, role)
	return err
}
