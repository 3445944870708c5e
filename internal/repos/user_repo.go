package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"jetroc/internal/domain"
)

var ErrEmailTaken = errors.New("email already registered")

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT id,email,password_hash FROM users WHERE LOWER(email)=LOWER(?)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create stores a new user and returns its id. ErrEmailTaken reports a
// case-insensitive duplicate.
func (r *UserRepo) Create(ctx context.Context, email, hash string) (string, error) {
	id := uuid.NewString()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users(id,email,password_hash)
		SELECT ?,?,?
		WHERE NOT EXISTS (SELECT 1 FROM users WHERE LOWER(email)=LOWER(?))`,
		id, email, hash, email)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrEmailTaken
	}
	return id, nil
}

func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(id,user_id,last_seen)
                          VALUES(?,?,CURRENT_TIMESTAMP)
                          ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=CURRENT_TIMESTAMP`, sid, userID)
	return err
}

// SessionUser returns domain.ErrNotFound when the sid is unknown or unbound.
func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `
      SELECT u.id,u.email,u.password_hash
      FROM sessions s
      JOIN users u ON u.id=s.user_id
      WHERE s.id=?`, sid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE sessions SET user_id=NULL,last_seen=CURRENT_TIMESTAMP WHERE id=?`, sid)
	if err != nil {
		return fmt.Errorf("UserRepo.UnbindSession: %w", err)
	}
	return nil
}
