// Package sqlite keeps collection snapshots in a SQLite table through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mikepea/stockpile/pkg/stockpile/backing"
	"github.com/mikepea/stockpile/pkg/stockpile/database"
)

// Snapshot is one serialized collection.
type Snapshot struct {
	Bucket    string `gorm:"primaryKey;size:64"`
	Payload   []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table name.
func (Snapshot) TableName() string { return "snapshots" }

// Backing stores snapshots in the snapshots table.
type Backing struct {
	db *gorm.DB
}

// Open connects to the database at path and migrates the snapshots table.
func Open(path string) (*Backing, error) {
	db, err := database.Connect(path, &Snapshot{})
	if err != nil {
		return nil, err
	}
	return &Backing{db: db}, nil
}

// Load returns the payload stored for collection.
func (b *Backing) Load(ctx context.Context, collection string) ([]byte, error) {
	var snap Snapshot
	err := b.db.WithContext(ctx).Where("bucket = ?", collection).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backing.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	return snap.Payload, nil
}

// Save upserts the payload for collection.
func (b *Backing) Save(ctx context.Context, collection string, payload []byte) error {
	snap := Snapshot{Bucket: collection, Payload: payload, UpdatedAt: time.Now().UTC()}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&snap).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return nil
}

// Close closes the database.
func (b *Backing) Close() error {
	return database.Close(b.db)
}
