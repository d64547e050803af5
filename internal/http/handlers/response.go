// Package handlers provides HTTP endpoint implementations for the public API.
//
// Endpoints never write responses themselves. Each one returns the success
// value (or a middleware.Result) and an error; the resilience pipeline renders
// both, so every failure shares the same error envelope:
//
//	HTTP/1.1 422 Unprocessable Entity
//	{
//	  "success": false,
//	  "error": "VALIDATION_ERROR",
//	  "message": "Validation failed",
//	  "details": {"name": "required"},
//	  "timestamp": "2024-01-01T00:00:00.000Z",
//	  "path": "/api/v1/items",
//	  "method": "POST",
//	  "requestId": "123e4567-e89b-12d3-a456-426614174000"
//	}
//
// This file holds the helpers shared by all endpoints: binding-error
// translation and pagination.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/go-resilient-api/internal/resilience"
	"github.com/tbourn/go-resilient-api/internal/services"
	"github.com/tbourn/go-resilient-api/internal/utils"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors report json tag names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindError translates a gin binding failure into an HTTP error: malformed
// bodies are 400, rule violations are 422 with one detail per field.
func bindError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		details := make(map[string]any, len(ves))
		for _, fe := range ves {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			details[fe.Field()] = rule
		}
		return resilience.Validation("Validation failed", details)
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return services.ErrPayloadTooLarge
	}

	var (
		syn *json.SyntaxError
		typ *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return resilience.BadRequest("Request body is empty", nil)
	case errors.As(err, &syn):
		return resilience.BadRequest("Invalid JSON body", map[string]any{"offset": syn.Offset})
	case errors.As(err, &typ):
		return resilience.Validation("Validation failed", map[string]any{typ.Field: "must be " + typ.Type.String()})
	}
	return resilience.BadRequest("Invalid request", nil)
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.QueryInt(c.Query("page"), defaultPage, 1, 0)
	pageSize = utils.QueryInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}
