package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/model"
)

type EventRepository interface {
	Record(ctx context.Context, e *model.Event) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error)
	ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Record(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *GormEventRepository) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

// EventDetails сериализует детали события; ошибка маршалинга даёт пустой объект.
func EventDetails(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
