package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/lock"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/payment"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

// PaymentConfig: параметры оплаты, приходят из конфига приложения.
type PaymentConfig struct {
	Origin   *url.URL
	Currency string
	Timeout  time.Duration
}

// PaymentService: покупка консультации. Бронирование создаётся только после
// того, как шлюз подтвердил оплату конкретной сессии.
type PaymentService struct {
	base
	gateway payment.Gateway
	locker  lock.Locker
	cfg     PaymentConfig
	tracer  trace.Tracer
}

func NewPaymentService(
	db *gorm.DB,
	gateway payment.Gateway,
	locker lock.Locker,
	cfg PaymentConfig,
	pub events.Publisher,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		base:    newBase(db, pub, log),
		gateway: gateway,
		locker:  locker,
		cfg:     cfg,
		tracer:  otel.Tracer("github.com/Leganyst/consultation-platform/internal/service"),
	}
}

// Initiate создаёт checkout-сессию для одобренной консультации. Локальное
// состояние не меняется.
func (s *PaymentService) Initiate(ctx context.Context, actor lifecycle.Actor, consultationID uuid.UUID) (payment.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "payment.initiate",
		trace.WithAttributes(attribute.String("consultation.id", consultationID.String())))
	defer span.End()

	out, err := s.initiate(ctx, actor, consultationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
	}
	return out, err
}

func (s *PaymentService) initiate(ctx context.Context, actor lifecycle.Actor, consultationID uuid.UUID) (payment.CheckoutSession, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return payment.CheckoutSession{}, err
	}

	c, err := s.repos.Consultations.GetByID(ctx, consultationID)
	if err != nil {
		return payment.CheckoutSession{}, storeErr(err, "consultation")
	}
	if c.Status != model.ConsultationStatusApproved {
		return payment.CheckoutSession{}, apperr.Newf(apperr.CodeInvalidState,
			"consultation in status %s cannot be purchased", c.Status)
	}
	if c.OwnerID == actor.ID {
		return payment.CheckoutSession{}, apperr.New(apperr.CodeForbidden, "consultants cannot purchase their own consultation")
	}

	req, err := payment.BuildCheckoutRequest(*c, actor.ID, s.cfg.Origin, s.cfg.Currency)
	if err != nil {
		return payment.CheckoutSession{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	sess, err := s.gateway.CreateCheckoutSession(gctx, req)
	if err != nil {
		s.log.WarnContext(ctx, "checkout session failed", "consultation_id", consultationID, "error", err)
		return payment.CheckoutSession{}, asGatewayErr("create checkout session", err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		"consultation_id", consultationID, "client_id", actor.ID, "session_id", sess.ID)
	return sess, nil
}

// ConfirmSuccess вызывается, когда браузер клиента вернулся по success URL.
func (s *PaymentService) ConfirmSuccess(
	ctx context.Context,
	actor lifecycle.Actor,
	consultationID uuid.UUID,
	sessionID string,
) (*model.Booking, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.confirm(ctx, consultationID, actor.ID, sessionID)
}

// HandleWebhook: уведомление шлюза ведёт в тот же идемпотентный путь.
// Прочие типы событий игнорируются (nil, nil).
func (s *PaymentService) HandleWebhook(ctx context.Context, ev payment.WebhookEvent) (*model.Booking, error) {
	if ev.Type != payment.EventCheckoutCompleted {
		return nil, nil
	}
	consultationID, err := uuid.Parse(ev.Metadata[payment.MetaConsultationID])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "webhook without consultation id", err)
	}
	clientID, err := uuid.Parse(ev.Metadata[payment.MetaClientID])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "webhook without client id", err)
	}
	return s.confirm(ctx, consultationID, clientID, ev.SessionID)
}

// errSessionTaken: сессию уже превратил в бронирование кто-то другой.
var errSessionTaken = errors.New("payment session already materialized")

func (s *PaymentService) confirm(
	ctx context.Context,
	consultationID, clientID uuid.UUID,
	sessionID string,
) (_ *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.confirm", trace.WithAttributes(
		attribute.String("consultation.id", consultationID.String()),
		attribute.String("payment.session_id", sessionID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
		}
		span.End()
	}()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || sessionID == payment.SessionIDPlaceholder {
		return nil, apperr.New(apperr.CodeValidation, "payment session id is required").WithMetadata("field", "session_id")
	}

	release, err := s.locker.Acquire(ctx, "confirm:"+consultationID.String()+":"+clientID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConflict, "payment confirmation already in progress", err)
	}
	defer release()

	// повторная доставка: бронирование по этой сессии уже есть
	if b, err := s.existing(ctx, s.repos, consultationID, clientID, sessionID); err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return b, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	st, err := s.gateway.GetSession(gctx, sessionID)
	if err != nil {
		return nil, asGatewayErr("get checkout session", err)
	}
	if st.Metadata[payment.MetaConsultationID] != consultationID.String() ||
		st.Metadata[payment.MetaClientID] != clientID.String() {
		return nil, apperr.New(apperr.CodeForbidden, "payment session belongs to another purchase")
	}
	if !st.Paid {
		return nil, apperr.New(apperr.CodeInvalidState, "payment is not completed").WithMetadata("session_id", sessionID)
	}

	booking := &model.Booking{
		ClientID:         clientID,
		ConsultationID:   consultationID,
		PaymentSessionID: sessionID,
		PaymentIntentID:  st.PaymentIntentID,
		AmountMinor:      st.AmountMinor,
		Currency:         st.Currency,
		Status:           model.BookingStatusPending,
		BookedAt:         s.now(),
	}

	err = s.inTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Consultations.GetByIDForUpdate(ctx, consultationID); err != nil {
			return storeErr(err, "consultation")
		}
		if err := r.Bookings.Create(ctx, booking); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errSessionTaken
			}
			return storeErr(err, "booking")
		}
		if err := r.Consultations.IncrementClients(ctx, consultationID); err != nil {
			return storeErr(err, "consultation")
		}
		return record(ctx, r, model.EventTypeBookingCreated, clientID, &booking.ID, &consultationID,
			map[string]any{"session_id": sessionID, "amount_minor": st.AmountMinor, "currency": st.Currency})
	})
	if errors.Is(err, errSessionTaken) {
		// другой инстанс успел раньше; его бронирование и есть ответ
		return s.existing(ctx, s.repos, consultationID, clientID, sessionID)
	}
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "booking created",
		"booking_id", booking.ID, "consultation_id", consultationID, "client_id", clientID)
	s.publish(ctx, events.KeyBookingCreated, events.Message{
		ActorID:        clientID,
		BookingID:      &booking.ID,
		ConsultationID: &consultationID,
		UserID:         &clientID,
		Status:         string(booking.Status),
	})
	return booking, nil
}

func (s *PaymentService) existing(
	ctx context.Context,
	r repository.Repositories,
	consultationID, clientID uuid.UUID,
	sessionID string,
) (*model.Booking, error) {
	b, err := r.Bookings.GetByPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	if b.ConsultationID != consultationID || b.ClientID != clientID {
		return nil, apperr.New(apperr.CodeForbidden, "payment session belongs to another purchase")
	}
	return b, nil
}
