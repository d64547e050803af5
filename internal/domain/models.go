// Package domain defines the persistence models served by the API. These
// types are mapped with GORM.
package domain

import "time"

// Item is a named catalog entry. Names are unique after case folding; the
// folded form is stored in NameKey and carries the unique index, so a
// duplicate surfaces as a constraint failure from the database.
type Item struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(120);not null"`
	NameKey   string    `json:"-"          gorm:"type:varchar(120);not null;uniqueIndex:ux_items_name_key"`
	Note      string    `json:"note"       gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// Upload records metadata of a received file. The content itself is hashed
// and discarded.
type Upload struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Filename  string    `json:"filename"   gorm:"type:varchar(255);not null"`
	Size      int64     `json:"size"       gorm:"not null;check:size >= 0"`
	SHA256    string    `json:"sha256"     gorm:"type:char(64);not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Upload.
func (Upload) TableName() string { return "uploads" }
