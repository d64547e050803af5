// Package httpapi wires the HTTP transport (Gin) to the endpoints and the
// resilience pipeline. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, access logging, panic recovery, metrics, rate limiting,
// compression and CORS.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/config"
	"github.com/tbourn/go-resilient-api/internal/domain"
	"github.com/tbourn/go-resilient-api/internal/http/handlers"
	"github.com/tbourn/go-resilient-api/internal/http/middleware"
	"github.com/tbourn/go-resilient-api/internal/repo"
	"github.com/tbourn/go-resilient-api/internal/services"
)

// itemRepoShim adapts the repository free functions to services.ItemRepo.
type itemRepoShim struct{}

func (itemRepoShim) CreateItem(ctx context.Context, db *gorm.DB, name, nameKey, note string) (*domain.Item, error) {
	return repo.CreateItem(ctx, db, name, nameKey, note)
}

func (itemRepoShim) GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.Item, error) {
	return repo.GetItem(ctx, db, id)
}

func (itemRepoShim) CountItems(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountItems(ctx, db)
}

func (itemRepoShim) ListItemsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Item, error) {
	return repo.ListItemsPage(ctx, db, offset, limit)
}

func (itemRepoShim) DeleteItem(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteItem(ctx, db, id)
}

// uploadRepoShim adapts repo.CreateUpload to services.UploadRepo.
type uploadRepoShim struct{}

func (uploadRepoShim) CreateUpload(ctx context.Context, db *gorm.DB, filename string, size int64, sum string) (*domain.Upload, error) {
	return repo.CreateUpload(ctx, db, filename, size, sum)
}

var corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}

// RegisterRoutes attaches all middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: one structured line per request
//  4. Recovery: panics from later middleware become error envelopes
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (429 through the error pipeline)
//  8. Gzip (optional) and CORS
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, log zerolog.Logger) {
	r.HandleMethodNotAllowed = true
	p := middleware.NewPipeline(cfg.Resilience, log)

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))
	r.Use(p.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler(p.Fail))

	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}
	r.Use(corsMiddleware(cfg.CORS))

	r.NoRoute(p.NoRoute())
	r.NoMethod(p.NoMethod())

	h := handlers.New(
		services.NewItemService(db, itemRepoShim{}),
		&services.UploadService{DB: db, Repo: uploadRepoShim{}},
		func(ctx context.Context) (int64, int64, error) {
			n, ts, err := repo.ItemsStats(ctx, db)
			if err != nil || ts == nil {
				return n, 0, err
			}
			return n, ts.UnixNano(), nil
		},
		func(ctx context.Context) error { return repo.Ping(ctx, db) },
	)

	r.GET("/health", p.Short(h.Health))

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/items", p.Default(middleware.Detach(h.CreateItem)))
		api.GET("/items", p.Default(h.ListItems))
		api.GET("/items/:id", p.Default(h.GetItem))
		api.DELETE("/items/:id", p.Default(middleware.Detach(h.DeleteItem)))

		api.POST("/uploads", p.Upload(middleware.Detach(h.CreateUpload)))
	}
}

// corsMiddleware allows every origin when no allowlist is configured.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  corsHeaders,
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Reads past the cap fail with *http.MaxBytesError, which endpoints report
// as 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
