package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/lock"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
	"github.com/Leganyst/consultation-platform/internal/payment"
)

// DisputeService: админский разбор спорных бронирований.
type DisputeService struct {
	machine bookingMachine
	gateway payment.Gateway
	locker  lock.Locker
	timeout time.Duration
}

func NewDisputeService(
	db *gorm.DB,
	gateway payment.Gateway,
	locker lock.Locker,
	gatewayTimeout time.Duration,
	pub events.Publisher,
	log *slog.Logger,
) *DisputeService {
	return &DisputeService{
		machine: bookingMachine{base: newBase(db, pub, log)},
		gateway: gateway,
		locker:  locker,
		timeout: gatewayTimeout,
	}
}

// ListDisputes: все бронирования в Disputed.
func (s *DisputeService) ListDisputes(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.Booking], error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return pagination.Page[model.Booking]{}, err
	}
	limit, offset := page.LimitOffset()
	items, total, err := s.machine.repos.Bookings.ListByStatus(ctx, model.BookingStatusDisputed, limit, offset)
	if err != nil {
		return pagination.Page[model.Booking]{}, storeErr(err, "booking")
	}
	return pagination.New(items, page, total), nil
}

// Resolve: approve закрывает бронирование как Completed, иначе платёж
// возвращается через шлюз и бронирование уходит в Refunded. Если возврат не
// прошёл, бронирование остаётся Disputed.
func (s *DisputeService) Resolve(
	ctx context.Context,
	actor lifecycle.Actor,
	id uuid.UUID,
	approveCompletion bool,
) (*model.Booking, error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return nil, err
	}
	// approve и refund по одному бронированию идут строго по очереди
	release, err := s.locker.Acquire(ctx, "dispute:"+id.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConflict, "dispute is being resolved", err)
	}
	defer release()

	if approveCompletion {
		return s.machine.apply(ctx, actor, id, lifecycle.BookingResolveApprove, completedAt, nil)
	}

	b, parties, err := loadParties(ctx, s.machine.repos, id)
	if err != nil {
		return nil, err
	}
	// проверяем переход до похода в шлюз, чтобы не вернуть деньги по закрытому бронированию
	if _, err := lifecycle.BookingTransition(lifecycle.BookingResolveRefund, actor, parties, b.Status); err != nil {
		return nil, err
	}

	intent, err := s.paymentIntent(ctx, b)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	// повтор после сбоя записи шлюз не проводит второй раз
	if err := s.gateway.Refund(gctx, intent, RefundKey(id)); err != nil {
		s.machine.log.WarnContext(ctx, "refund failed", "booking_id", id, "error", err)
		return nil, asGatewayErr("refund", err)
	}

	return s.machine.apply(ctx, actor, id, lifecycle.BookingResolveRefund,
		func(time.Time) map[string]any {
			return map[string]any{"payment_intent_id": intent}
		},
		map[string]any{"payment_intent_id": intent, "amount_minor": b.AmountMinor})
}

// RefundKey: ключ идемпотентности возврата по бронированию.
func RefundKey(bookingID uuid.UUID) string {
	return "refund:" + bookingID.String()
}

// paymentIntent берёт id платежа из бронирования, а если его нет, спрашивает шлюз.
func (s *DisputeService) paymentIntent(ctx context.Context, b *model.Booking) (string, error) {
	if b.PaymentIntentID != "" {
		return b.PaymentIntentID, nil
	}
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	st, err := s.gateway.GetSession(gctx, b.PaymentSessionID)
	if err != nil {
		return "", asGatewayErr("get checkout session", err)
	}
	if st.PaymentIntentID == "" {
		return "", apperr.New(apperr.CodeGateway, "payment gateway returned no payment intent for booking")
	}
	return st.PaymentIntentID, nil
}
