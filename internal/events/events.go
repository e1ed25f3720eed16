// Package events публикует доменные события после коммита переходов.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Routing keys.
const (
	KeyConsultationSubmitted = "consultation.submitted"
	KeyConsultationApproved  = "consultation.approved"
	KeyConsultationRejected  = "consultation.rejected"
	KeyBookingCreated        = "booking.created"
	KeyBookingStarted        = "booking.started"
	KeyBookingAwaiting       = "booking.awaiting_confirmation"
	KeyBookingCompleted      = "booking.completed"
	KeyBookingDisputed       = "booking.disputed"
	KeyBookingRefunded       = "booking.refunded"
	KeyBookingRated          = "booking.rated"
	KeyConsultantRequested   = "consultant.requested"
	KeyConsultantApproved    = "consultant.approved"
	KeyConsultantRejected    = "consultant.rejected"
)

// Publisher отправляет JSON-сообщение по routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Message: конверт, который уходит в брокер.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	Key            string     `json:"key"`
	OccurredAt     time.Time  `json:"occurred_at"`
	ActorID        uuid.UUID  `json:"actor_id"`
	ConsultationID *uuid.UUID `json:"consultation_id,omitempty"`
	BookingID      *uuid.UUID `json:"booking_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Status         string     `json:"status,omitempty"`
}

// Nop глотает события; используется, когда брокер не настроен.
type Nop struct{}

func (Nop) PublishJSON(context.Context, string, any) error { return nil }
