package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

const maxProblemDescriptionLen = 2000

var bookingEvents = map[lifecycle.BookingOp]struct {
	audit model.EventType
	key   string
}{
	lifecycle.BookingStartWorking:      {model.EventTypeBookingStarted, events.KeyBookingStarted},
	lifecycle.BookingRequestCompletion: {model.EventTypeBookingCompletionRequested, events.KeyBookingAwaiting},
	lifecycle.BookingConfirmCompletion: {model.EventTypeBookingCompleted, events.KeyBookingCompleted},
	lifecycle.BookingReportProblem:     {model.EventTypeBookingDisputed, events.KeyBookingDisputed},
	lifecycle.BookingResolveApprove:    {model.EventTypeBookingCompleted, events.KeyBookingCompleted},
	lifecycle.BookingResolveRefund:     {model.EventTypeBookingRefunded, events.KeyBookingRefunded},
}

// bookingMachine применяет переходы бронирования: проверка прав и статуса
// из lifecycle, затем условный UPDATE по исходному статусу.
type bookingMachine struct {
	base
}

// loadParties читает бронирование и владельца консультации.
func loadParties(ctx context.Context, r repository.Repositories, id uuid.UUID) (*model.Booking, lifecycle.BookingParties, error) {
	b, err := r.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, lifecycle.BookingParties{}, storeErr(err, "booking")
	}
	c, err := r.Consultations.GetByID(ctx, b.ConsultationID)
	if err != nil {
		return nil, lifecycle.BookingParties{}, storeErr(err, "consultation")
	}
	return b, lifecycle.BookingParties{ClientID: b.ClientID, ConsultantID: c.OwnerID}, nil
}

// apply; fields получает now и возвращает дополнительные колонки UPDATE.
func (m bookingMachine) apply(
	ctx context.Context,
	actor lifecycle.Actor,
	id uuid.UUID,
	op lifecycle.BookingOp,
	fields func(now time.Time) map[string]any,
	details map[string]any,
) (*model.Booking, error) {
	var (
		b       *model.Booking
		parties lifecycle.BookingParties
	)
	err := m.inTx(ctx, func(r repository.Repositories) error {
		var err error
		if b, parties, err = loadParties(ctx, r, id); err != nil {
			return err
		}

		from := b.Status
		to, err := lifecycle.BookingTransition(op, actor, parties, from)
		if err != nil {
			return err
		}

		var extra map[string]any
		if fields != nil {
			extra = fields(m.now())
		}
		if err := r.Bookings.UpdateStatus(ctx, id, from, to, extra); err != nil {
			return storeErr(err, "booking")
		}

		audit := map[string]any{"from": from, "to": to}
		for k, v := range details {
			audit[k] = v
		}
		if err := record(ctx, r, bookingEvents[op].audit, actor.ID, &id, &b.ConsultationID, audit); err != nil {
			return err
		}

		b, err = r.Bookings.GetByID(ctx, id)
		return storeErr(err, "booking")
	})
	if err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "booking status changed", "booking_id", id, "op", op, "status", b.Status)
	m.publish(ctx, bookingEvents[op].key, events.Message{
		ActorID:        actor.ID,
		BookingID:      &id,
		ConsultationID: &b.ConsultationID,
		UserID:         &parties.ClientID,
		Status:         string(b.Status),
	})
	return b, nil
}

// BookingService: исполнение бронирования консультантом и клиентом.
type BookingService struct {
	machine bookingMachine
}

func NewBookingService(db *gorm.DB, pub events.Publisher, log *slog.Logger) *BookingService {
	return &BookingService{machine: bookingMachine{base: newBase(db, pub, log)}}
}

// StartWorking: Pending -> InProgress, владелец консультации.
func (s *BookingService) StartWorking(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Booking, error) {
	return s.machine.apply(ctx, actor, id, lifecycle.BookingStartWorking, nil, nil)
}

// RequestCompletion: InProgress -> AwaitingConfirmation, владелец консультации.
func (s *BookingService) RequestCompletion(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Booking, error) {
	return s.machine.apply(ctx, actor, id, lifecycle.BookingRequestCompletion, nil, nil)
}

// ConfirmCompletion: клиент закрывает бронирование, проставляется completedAt.
func (s *BookingService) ConfirmCompletion(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Booking, error) {
	return s.machine.apply(ctx, actor, id, lifecycle.BookingConfirmCompletion, completedAt, nil)
}

// ReportProblem переводит бронирование в Disputed с описанием проблемы.
func (s *BookingService) ReportProblem(
	ctx context.Context,
	actor lifecycle.Actor,
	id uuid.UUID,
	description string,
) (*model.Booking, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperr.New(apperr.CodeValidation, "problem description is required").
			WithMetadata("field", "description")
	}
	if utf8.RuneCountInString(description) > maxProblemDescriptionLen {
		return nil, apperr.Newf(apperr.CodeValidation, "problem description exceeds %d characters", maxProblemDescriptionLen).
			WithMetadata("field", "description")
	}

	return s.machine.apply(ctx, actor, id, lifecycle.BookingReportProblem,
		func(time.Time) map[string]any {
			return map[string]any{"problem_description": description}
		}, nil)
}

// Get: бронирование видят клиент, владелец консультации и админ.
func (s *BookingService) Get(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Booking, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	b, parties, err := loadParties(ctx, s.machine.repos, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != parties.ClientID && actor.ID != parties.ConsultantID && !actor.Has(lifecycle.RoleAdmin) {
		return nil, apperr.New(apperr.CodeForbidden, "not a party of this booking")
	}
	return b, nil
}

// ListMine: бронирования клиента, новые сверху.
func (s *BookingService) ListMine(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.Booking], error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return pagination.Page[model.Booking]{}, err
	}
	limit, offset := page.LimitOffset()
	items, total, err := s.machine.repos.Bookings.ListByClient(ctx, actor.ID, limit, offset)
	if err != nil {
		return pagination.Page[model.Booking]{}, storeErr(err, "booking")
	}
	return pagination.New(items, page, total), nil
}

// ListForConsultant: входящие бронирования консультанта по bookedAt desc.
func (s *BookingService) ListForConsultant(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.Booking], error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleConsultant); err != nil {
		return pagination.Page[model.Booking]{}, err
	}
	limit, offset := page.LimitOffset()
	items, total, err := s.machine.repos.Bookings.ListByConsultant(ctx, actor.ID, limit, offset)
	if err != nil {
		return pagination.Page[model.Booking]{}, storeErr(err, "booking")
	}
	return pagination.New(items, page, total), nil
}

func completedAt(now time.Time) map[string]any {
	return map[string]any{"completed_at": now}
}
