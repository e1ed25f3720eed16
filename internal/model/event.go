package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeConsultationCreated   EventType = "consultation_created"
	EventTypeConsultationUpdated   EventType = "consultation_updated"
	EventTypeConsultationDeleted   EventType = "consultation_deleted"
	EventTypeConsultationSubmitted EventType = "consultation_submitted"
	EventTypeConsultationApproved  EventType = "consultation_approved"
	EventTypeConsultationRejected  EventType = "consultation_rejected"

	EventTypeBookingCreated             EventType = "booking_created"
	EventTypeBookingStarted             EventType = "booking_started"
	EventTypeBookingCompletionRequested EventType = "booking_completion_requested"
	EventTypeBookingCompleted           EventType = "booking_completed"
	EventTypeBookingDisputed            EventType = "booking_disputed"
	EventTypeBookingRefunded            EventType = "booking_refunded"
	EventTypeBookingRated               EventType = "booking_rated"
	EventTypeBookingRatingRemoved       EventType = "booking_rating_removed"
	EventTypeConsultantRequested        EventType = "consultant_requested"
	EventTypeConsultantApproved         EventType = "consultant_approved"
	EventTypeConsultantRejected         EventType = "consultant_rejected"
)

// events: журнал аудита, пишется в той же транзакции, что и переход.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	BookingID      *uuid.UUID `gorm:"type:uuid;index"`
	ConsultationID *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
