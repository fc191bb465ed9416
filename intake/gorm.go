package intake

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// GormRepository stores registrations in the opd_registrations table.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the table.
func (r *GormRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Record{})
}

func (r *GormRepository) Insert(ctx context.Context, rec *Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormRepository) LatestByEmail(ctx context.Context, email string) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
