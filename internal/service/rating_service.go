package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

// RatingResult: оценка бронирования и агрегаты консультации после операции.
type RatingResult struct {
	BookingID      uuid.UUID
	ConsultationID uuid.UUID
	Rating         *int
	TotalRating    int64
	TotalVotes     int64
	AverageRating  float64
}

// RatingService ведёт агрегаты рейтинга. Каждая операция: одна транзакция,
// строка консультации берётся под FOR UPDATE, затем строка бронирования.
type RatingService struct {
	base
}

func NewRatingService(db *gorm.DB, pub events.Publisher, log *slog.Logger) *RatingService {
	return &RatingService{base: newBase(db, pub, log)}
}

// AddOrUpdate ставит оценку или заменяет прежнюю.
func (s *RatingService) AddOrUpdate(ctx context.Context, actor lifecycle.Actor, bookingID uuid.UUID, rating int) (RatingResult, error) {
	if err := lifecycle.ValidateRating(rating); err != nil {
		return RatingResult{}, err
	}
	return s.mutate(ctx, actor, bookingID, model.EventTypeBookingRated,
		func(t lifecycle.RatingTotals, prev *int) (lifecycle.RatingTotals, *int, error) {
			next, err := lifecycle.ApplyRating(t, prev, rating)
			return next, ptr(rating), err
		})
}

// Remove снимает оценку; без оценки: NotFound, ничего не меняется.
func (s *RatingService) Remove(ctx context.Context, actor lifecycle.Actor, bookingID uuid.UUID) (RatingResult, error) {
	return s.mutate(ctx, actor, bookingID, model.EventTypeBookingRatingRemoved,
		func(t lifecycle.RatingTotals, prev *int) (lifecycle.RatingTotals, *int, error) {
			next, err := lifecycle.RemoveRating(t, prev)
			return next, nil, err
		})
}

type ratingChange func(t lifecycle.RatingTotals, prev *int) (lifecycle.RatingTotals, *int, error)

func (s *RatingService) mutate(
	ctx context.Context,
	actor lifecycle.Actor,
	bookingID uuid.UUID,
	audit model.EventType,
	change ratingChange,
) (RatingResult, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return RatingResult{}, err
	}

	// consultation_id бронирования не меняется, его можно прочитать до блокировок
	snapshot, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return RatingResult{}, storeErr(err, "booking")
	}
	if snapshot.ClientID != actor.ID {
		return RatingResult{}, apperr.New(apperr.CodeForbidden, "only the booking owner may rate it")
	}

	var res RatingResult
	err = s.inTx(ctx, func(r repository.Repositories) error {
		c, err := r.Consultations.GetByIDForUpdate(ctx, snapshot.ConsultationID)
		if err != nil {
			return storeErr(err, "consultation")
		}
		b, err := r.Bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking")
		}

		totals, next, err := change(lifecycle.RatingTotals{Sum: c.TotalRating, Votes: c.TotalVotes}, b.Rating)
		if err != nil {
			return err
		}

		if err := r.Consultations.SetRatingTotals(ctx, c.ID, totals.Sum, totals.Votes); err != nil {
			return storeErr(err, "consultation")
		}
		if err := r.Bookings.SetRating(ctx, b.ID, next); err != nil {
			return storeErr(err, "booking")
		}
		if err := record(ctx, r, audit, actor.ID, &b.ID, &c.ID,
			map[string]any{"previous": b.Rating, "rating": next}); err != nil {
			return err
		}

		res = RatingResult{
			BookingID:      b.ID,
			ConsultationID: c.ID,
			Rating:         next,
			TotalRating:    totals.Sum,
			TotalVotes:     totals.Votes,
			AverageRating:  totals.Average(),
		}
		return nil
	})
	if err != nil {
		return RatingResult{}, err
	}

	s.publish(ctx, events.KeyBookingRated, events.Message{
		ActorID:        actor.ID,
		BookingID:      &res.BookingID,
		ConsultationID: &res.ConsultationID,
	})
	return res, nil
}
