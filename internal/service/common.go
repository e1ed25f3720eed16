package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

// base: общее для всех сервисов. Транзакции открываются на db,
// репозитории внутри собираются из tx.
type base struct {
	db    *gorm.DB
	repos repository.Repositories
	pub   events.Publisher
	log   *slog.Logger
	now   func() time.Time
}

func newBase(db *gorm.DB, pub events.Publisher, log *slog.Logger) base {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return base{
		db:    db,
		repos: repository.NewGormRepositories(db),
		pub:   pub,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// inTx выполняет fn в транзакции с репозиториями поверх tx.
func (b base) inTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repository.NewGormRepositories(tx))
	})
}

// publish после коммита: ошибка брокера только логируется.
func (b base) publish(ctx context.Context, key string, msg events.Message) {
	msg.ID = uuid.New()
	msg.Key = key
	msg.OccurredAt = b.now()
	if err := b.pub.PublishJSON(ctx, key, msg); err != nil {
		b.log.WarnContext(ctx, "publish event failed", "key", key, "error", err)
	}
}

func storeErr(err error, entity string) error {
	if errors.Is(err, repository.ErrStatusChanged) {
		return apperr.Wrap(apperr.CodeConflict, entity+" was modified concurrently", err)
	}
	return apperr.FromStore(err, entity)
}

func record(
	ctx context.Context,
	r repository.Repositories,
	t model.EventType,
	actorID uuid.UUID,
	bookingID, consultationID *uuid.UUID,
	details any,
) error {
	e := &model.Event{
		EventType:      t,
		UserID:         &actorID,
		BookingID:      bookingID,
		ConsultationID: consultationID,
		Details:        repository.EventDetails(details),
	}
	if err := r.Events.Record(ctx, e); err != nil {
		return storeErr(err, "event")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// asGatewayErr: типизированные ошибки шлюза пропускаем, остальное (таймаут,
// сеть) превращаем в GatewayError.
func asGatewayErr(op string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Wrap(apperr.CodeGateway, "payment gateway: "+op+" failed", err)
}
