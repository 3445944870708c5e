package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

// ValidationError is local: it is raised before any store call.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, msg string) { e.Fields[field] = msg }

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type AuthErrorKind string

const (
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthAlreadyRegistered  AuthErrorKind = "already_registered"
	AuthUnknown            AuthErrorKind = "unknown"
)

type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return "auth: " + string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StoreError wraps any failure of the persistent store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

type UploadError struct {
	Reason string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
	}
	return "upload: " + e.Reason
}

func (e *UploadError) Unwrap() error { return e.Err }

// AuthorizationError ends the current navigation; handlers redirect to sign-in.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return "not authorized: " + e.Reason }
