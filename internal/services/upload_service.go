package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/domain"
	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// UploadRepo defines the repository contract required by UploadService.
type UploadRepo interface {
	CreateUpload(ctx context.Context, db *gorm.DB, filename string, size int64, sum string) (*domain.Upload, error)
}

// UploadService digests incoming files and records their metadata.
type UploadService struct {
	DB   *gorm.DB
	Repo UploadRepo
}

// Save reads r to the end, hashing it, and stores the file metadata. Reading
// stops as soon as ctx is done.
func (s *UploadService) Save(ctx context.Context, filename string, r io.Reader) (*domain.Upload, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return nil, resilience.Validation("Validation failed", map[string]any{"file": "filename is required"})
	}

	h := sha256.New()
	n, err := io.Copy(h, ctxReader{ctx: ctx, r: r})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, err
	}
	return s.Repo.CreateUpload(ctx, s.DB, name, n, hex.EncodeToString(h.Sum(nil)))
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
