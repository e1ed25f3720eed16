package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-platform/internal/model"
)

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Бронирование, созданное по сессии шлюза (ключ идемпотентности).
	GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error)
	// Условная смена статуса; fields дописываются в тот же UPDATE.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, fields map[string]any) error
	// nil снимает оценку.
	SetRating(ctx context.Context, id uuid.UUID, rating *int) error
	CountByConsultation(ctx context.Context, consultationID uuid.UUID) (int64, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]model.Booking, int64, error)
	// Бронирования консультаций, которыми владеет консультант.
	ListByConsultant(ctx context.Context, consultantID uuid.UUID, limit, offset int) ([]model.Booking, int64, error)
	ListByStatus(ctx context.Context, status model.BookingStatus, limit, offset int) ([]model.Booking, int64, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "payment_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.BookingStatus,
	fields map[string]any,
) error {
	update := map[string]any{
		"status": to,
	}
	for k, v := range fields {
		update[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *GormBookingRepository) SetRating(ctx context.Context, id uuid.UUID, rating *int) error {
	var value any
	if rating != nil {
		value = *rating
	}
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"rating": value}).Error
}

func (r *GormBookingRepository) CountByConsultation(ctx context.Context, consultationID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("consultation_id = ?", consultationID).
		Count(&n).Error
	return n, err
}

func (r *GormBookingRepository) ListByClient(
	ctx context.Context,
	clientID uuid.UUID,
	limit, offset int,
) ([]model.Booking, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("client_id = ?", clientID)
	return r.page(q, limit, offset)
}

func (r *GormBookingRepository) ListByConsultant(
	ctx context.Context,
	consultantID uuid.UUID,
	limit, offset int,
) ([]model.Booking, int64, error) {
	owned := r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Select("id").
		Where("owner_id = ?", consultantID)
	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("consultation_id IN (?)", owned)
	return r.page(q, limit, offset)
}

func (r *GormBookingRepository) ListByStatus(
	ctx context.Context,
	status model.BookingStatus,
	limit, offset int,
) ([]model.Booking, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("status = ?", status)
	return r.page(q, limit, offset)
}

func (r *GormBookingRepository) page(q *gorm.DB, limit, offset int) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Preload("Consultation").Order("booked_at DESC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}
