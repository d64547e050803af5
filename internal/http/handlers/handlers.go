package handlers

import (
	"context"
	"io"

	"github.com/tbourn/go-resilient-api/internal/domain"
)

// ItemService defines item operations consumed by the endpoints.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation.
type ItemService interface {
	Create(ctx context.Context, name, note string) (*domain.Item, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Item, int64, error)
	Delete(ctx context.Context, id string) error
}

// UploadService stores uploaded file metadata.
type UploadService interface {
	Save(ctx context.Context, filename string, r io.Reader) (*domain.Upload, error)
}

// Stats reports the item count and latest update time, used for ETags.
type Stats func(ctx context.Context) (count int64, maxUpdatedAt int64, err error)

// Pinger checks a backing dependency.
type Pinger func(ctx context.Context) error

// Handlers groups the API endpoints.
type Handlers struct {
	items   ItemService
	uploads UploadService
	stats   Stats
	ping    Pinger
}

// New constructs Handlers. stats and ping may be nil.
func New(items ItemService, uploads UploadService, stats Stats, ping Pinger) *Handlers {
	useJSONFieldNames()
	return &Handlers{items: items, uploads: uploads, stats: stats, ping: ping}
}
