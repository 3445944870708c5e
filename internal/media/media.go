// Package media stores uploaded product images on the local disk.
package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jetroc/internal/domain"
)

const (
	MaxUploadBytes = 5 << 20

	// URLPrefix is where the HTTP layer serves Dir.
	URLPrefix  = "/media"
	productDir = "products"
)

// LocalStore writes files under Dir and hands back their public URL.
type LocalStore struct {
	Dir string
	log *zap.Logger
}

func NewLocalStore(dir string, log *zap.Logger) (*LocalStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(dir, productDir), 0o755); err != nil {
		return nil, fmt.Errorf("media: create %s: %w", dir, err)
	}
	return &LocalStore{Dir: dir, log: log.Named("media")}, nil
}

// Upload checks the declared type and size, sniffs the content, then writes
// it atomically. A failed upload leaves nothing behind.
func (s *LocalStore) Upload(ctx context.Context, filename, declaredType string, size int64, r io.Reader) (string, error) {
	if size > MaxUploadBytes {
		return "", &domain.UploadError{Reason: "file larger than 5 MiB"}
	}
	if mt, _, err := mime.ParseMediaType(declaredType); err != nil || !strings.HasPrefix(mt, "image/") {
		return "", &domain.UploadError{Reason: "not an image"}
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", &domain.UploadError{Reason: "read failed", Err: err}
	}
	if len(data) > MaxUploadBytes {
		return "", &domain.UploadError{Reason: "file larger than 5 MiB"}
	}
	if len(data) == 0 {
		return "", &domain.UploadError{Reason: "empty file"}
	}
	sniffed := mimetype.Detect(data)
	if !strings.HasPrefix(sniffed.String(), "image/") {
		return "", &domain.UploadError{Reason: "content is " + sniffed.String() + ", not an image"}
	}
	if err := ctx.Err(); err != nil {
		return "", &domain.UploadError{Reason: "cancelled", Err: err}
	}

	name := uuid.NewString() + sniffed.Extension()
	dir := filepath.Join(s.Dir, productDir)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", &domain.UploadError{Reason: "store failed", Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &domain.UploadError{Reason: "store failed", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &domain.UploadError{Reason: "store failed", Err: err}
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", &domain.UploadError{Reason: "store failed", Err: err}
	}

	u := path.Join(URLPrefix, productDir, name)
	s.log.Info("image stored", zap.String("url", u), zap.String("client_name", filepath.Base(filename)), zap.Int("bytes", len(data)))
	return u, nil
}
