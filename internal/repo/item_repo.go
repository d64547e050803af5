package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-resilient-api/internal/domain"
)

// CreateItem inserts a new Item. The ID is a random UUID and CreatedAt is set
// to UTC now. A duplicate NameKey fails with the driver's unique-constraint
// error wrapped as a DatabaseError.
func CreateItem(ctx context.Context, db *gorm.DB, name, nameKey, note string) (*domain.Item, error) {
	now := time.Now().UTC()
	it := &domain.Item{
		ID:        uuid.NewString(),
		Name:      name,
		NameKey:   nameKey,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(it).Error; err != nil {
		return nil, wrap("create item", err)
	}
	return it, nil
}

// GetItem fetches an Item by ID, or ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.Item, error) {
	var it domain.Item
	if err := db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, wrap("get item", err)
	}
	return &it, nil
}

// CountItems returns the total number of items.
func CountItems(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Item{}).Count(&total).Error
	return total, wrap("count items", err)
}

// ListItemsPage returns a page of items, most recent first.
func ListItemsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Item, error) {
	var out []domain.Item
	err := db.WithContext(ctx).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, wrap("list items", err)
}

// DeleteItem removes an Item by ID. It returns ErrNotFound when no row
// matched.
func DeleteItem(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Item{})
	if res.Error != nil {
		return wrap("delete item", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemsStats returns the number of items and the latest UpdatedAt among
// them (nil when there are none). Handlers derive weak ETags from it.
func ItemsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Item{})
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, wrap("items stats", err)
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Order+Limit instead of MAX(), which SQLite returns as TEXT.
	var row struct{ UpdatedAt time.Time }
	if err = db.WithContext(ctx).Model(&domain.Item{}).
		Select("updated_at").
		Order("updated_at desc").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, wrap("items stats", err)
	}
	ts := row.UpdatedAt.UTC()
	return count, &ts, nil
}
