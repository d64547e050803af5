// Package services: ItemService
//
// ItemService normalizes item names and coordinates repository calls for
// creating, reading, listing (paginated) and deleting items. Name uniqueness
// is left to the database: a duplicate surfaces as a unique-constraint
// failure from the driver.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/domain"
	"github.com/tbourn/go-resilient-api/internal/repo"
	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// ItemRepo defines the repository contract required by ItemService.
type ItemRepo interface {
	CreateItem(ctx context.Context, db *gorm.DB, name, nameKey, note string) (*domain.Item, error)
	GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.Item, error)
	CountItems(ctx context.Context, db *gorm.DB) (int64, error)
	ListItemsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Item, error)
	DeleteItem(ctx context.Context, db *gorm.DB, id string) error
}

// MaxNameLen caps item names by rune length.
const MaxNameLen = 120

// ItemService provides item operations.
type ItemService struct {
	DB   *gorm.DB
	Repo ItemRepo
}

// NewItemService constructs an ItemService.
func NewItemService(db *gorm.DB, r ItemRepo) *ItemService {
	return &ItemService{DB: db, Repo: r}
}

// Create stores a new item. Names are trimmed and inner whitespace collapsed;
// the uniqueness key is the case-folded name.
func (s *ItemService) Create(ctx context.Context, name, note string) (*domain.Item, error) {
	name = normalizeName(name)
	switch {
	case name == "":
		return nil, resilience.Validation("Validation failed", map[string]any{"name": "required"})
	case utf8.RuneCountInString(name) > MaxNameLen:
		return nil, resilience.Validation("Validation failed", map[string]any{"name": fmt.Sprintf("max length is %d", MaxNameLen)})
	}
	return s.Repo.CreateItem(ctx, s.DB, name, s.NameKey(name), strings.TrimSpace(note))
}

// NameKey returns the uniqueness key for name.
func (s *ItemService) NameKey(name string) string {
	// Casers are stateful; one per call keeps the service safe for concurrent use.
	return cases.Fold().String(normalizeName(name))
}

// Get returns the item with id or ErrItemNotFound.
func (s *ItemService) Get(ctx context.Context, id string) (*domain.Item, error) {
	it, err := s.Repo.GetItem(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	return it, err
}

// ListPage returns a page of items and the total count. Invalid page and
// pageSize values fall back to 1 and 20.
func (s *ItemService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Item, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := s.Repo.CountItems(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Item{}, 0, nil
	}
	items, err := s.Repo.ListItemsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Delete removes the item with id or returns ErrItemNotFound.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteItem(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}

// normalizeName trims whitespace and collapses runs of whitespace to one space.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
