package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"jetroc/internal/domain"
	"jetroc/internal/repos"
)

type AuthService struct {
	Users *repos.UserRepo
	Roles *repos.RoleRepo
	// Cost is the bcrypt cost for new passwords; zero means bcrypt.DefaultCost.
	Cost int
}

func NewAuthService(users *repos.UserRepo, roles *repos.RoleRepo) *AuthService {
	return &AuthService{Users: users, Roles: roles}
}

// ResolveSession maps a sid cookie to a session. It returns (nil, nil) for
// anonymous visitors. When the role lookup fails the session is still returned,
// with IsAdmin false, alongside the error.
func (s *AuthService) ResolveSession(ctx context.Context, sid string) (*domain.Session, error) {
	if sid == "" {
		return nil, nil
	}
	u, err := s.Users.SessionUser(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "resolve session", Err: err}
	}
	sess := &domain.Session{ID: sid, UserID: u.ID, Email: u.Email}

	grants, err := s.Roles.Grants(ctx, u.ID)
	if err != nil {
		return sess, &domain.StoreError{Op: "resolve roles", Err: err}
	}
	sess.IsAdmin = IsAdmin(u.ID, grants)
	return sess, nil
}

func (s *AuthService) SignIn(ctx context.Context, sid, email, password string) (*domain.Session, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.AuthError{Kind: domain.AuthInvalidCredentials}
	}
	if err != nil {
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, &domain.AuthError{Kind: domain.AuthInvalidCredentials}
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	sess, err := s.ResolveSession(ctx, sid)
	if err != nil || sess == nil {
		// The sid must not stay bound when the sign-in is reported failed.
		_ = s.Users.UnbindSession(ctx, sid)
		if err == nil {
			err = domain.ErrNotFound
		}
		return nil, &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	return sess, nil
}

// SignUp registers an identity. It never grants a role.
func (s *AuthService) SignUp(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	if _, err := s.Users.Create(ctx, email, string(hash)); err != nil {
		if errors.Is(err, repos.ErrEmailTaken) {
			return &domain.AuthError{Kind: domain.AuthAlreadyRegistered}
		}
		return &domain.AuthError{Kind: domain.AuthUnknown, Err: err}
	}
	return nil
}

// SignOut returns only once the session row is unbound.
func (s *AuthService) SignOut(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) GrantAdmin(ctx context.Context, email string) error {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("grant admin %s: %w", email, err)
	}
	return s.Roles.Grant(ctx, u.ID, domain.RoleAdmin)
}

// EnsureAdmin registers email if needed and grants it the admin role.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	err := s.SignUp(ctx, email, password)
	var aerr *domain.AuthError
	if err != nil && !(errors.As(err, &aerr) && aerr.Kind == domain.AuthAlreadyRegistered) {
		return err
	}
	return s.GrantAdmin(ctx, email)
}

func (s *AuthService) cost() int {
	if s.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return s.Cost
}
