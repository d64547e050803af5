package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/domain"
)

// CreateUpload records metadata for a received file.
func CreateUpload(ctx context.Context, db *gorm.DB, filename string, size int64, sum string) (*domain.Upload, error) {
	u := &domain.Upload{
		ID:        uuid.NewString(),
		Filename:  filename,
		Size:      size,
		SHA256:    sum,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, wrap("create upload", err)
	}
	return u, nil
}
