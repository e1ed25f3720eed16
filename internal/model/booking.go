package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending              BookingStatus = "pending"
	BookingStatusInProgress           BookingStatus = "in_progress"
	BookingStatusAwaitingConfirmation BookingStatus = "awaiting_confirmation"
	BookingStatusCompleted            BookingStatus = "completed"
	BookingStatusDisputed             BookingStatus = "disputed"
	BookingStatusRefunded             BookingStatus = "refunded"
)

// IsTerminal: из Completed и Refunded переходов нет.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusRefunded
}

// bookings
type Booking struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClientID       uuid.UUID `gorm:"type:uuid;not null;index"`
	ConsultationID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Сессия шлюза, по которой создано бронирование. Ключ идемпотентности.
	PaymentSessionID string `gorm:"type:varchar(255);not null;uniqueIndex"`
	// Платёж шлюза, нужен для возврата.
	PaymentIntentID string `gorm:"type:varchar(255)"`
	AmountMinor     int64  `gorm:"not null"`
	Currency        string `gorm:"type:varchar(8);not null"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	BookedAt    time.Time `gorm:"not null;index"`
	CompletedAt *time.Time

	Rating             *int    `gorm:"type:smallint"`
	ProblemDescription *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Client       *User         `gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Consultation *Consultation `gorm:"foreignKey:ConsultationID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
