package sequence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Counter is the persisted row behind a named sequence.
type Counter struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null;default:0"`
}

// TableName pins the table name regardless of gorm naming strategy.
func (Counter) TableName() string { return "sequence_counters" }

const upsertIncrement = `INSERT INTO sequence_counters (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = sequence_counters.value + 1
RETURNING value`

// PostgresGenerator allocates values with a single upsert statement. The row
// lock taken by ON CONFLICT DO UPDATE serializes concurrent callers.
type PostgresGenerator struct {
	db *gorm.DB
}

// NewPostgresGenerator wraps an open gorm connection.
func NewPostgresGenerator(db *gorm.DB) *PostgresGenerator {
	return &PostgresGenerator{db: db}
}

// AutoMigrate creates the counters table when missing.
func (g *PostgresGenerator) AutoMigrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&Counter{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Next increments the counter and returns the new value.
func (g *PostgresGenerator) Next(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.db == nil {
		return 0, ErrStoreUnavailable
	}

	var value int64
	if err := g.db.WithContext(ctx).Raw(upsertIncrement, name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: upsert returned no row", ErrStoreUnavailable)
	}
	return value, nil
}

// Current reads the counter without modifying it.
func (g *PostgresGenerator) Current(ctx context.Context, name string) (int64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	if g == nil || g.db == nil {
		return 0, ErrStoreUnavailable
	}

	var row Counter
	err := g.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return row.Value, nil
}
