package service

import (
	"context"
	"log/slog"
	"strings"
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

const (
	maxBioLen            = 2000
	maxSpecializationLen = 255
)

var consultantEvents = map[lifecycle.ConsultantOp]struct {
	event model.EventType
	key   string
}{
	lifecycle.ConsultantRequest: {model.EventTypeConsultantRequested, events.KeyConsultantRequested},
	lifecycle.ConsultantApprove: {model.EventTypeConsultantApproved, events.KeyConsultantApproved},
	lifecycle.ConsultantReject:  {model.EventTypeConsultantRejected, events.KeyConsultantRejected},
}

// ConsultantService: заявки пользователей на роль консультанта.
type ConsultantService struct {
	base
}

func NewConsultantService(db *gorm.DB, pub events.Publisher, log *slog.Logger) *ConsultantService {
	return &ConsultantService{base: newBase(db, pub, log)}
}

// SubmitRequest подаёт (или переподаёт после отказа) заявку с профилем.
func (s *ConsultantService) SubmitRequest(
	ctx context.Context,
	actor lifecycle.Actor,
	bio, specialization string,
) (*model.User, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	bio = strings.TrimSpace(bio)
	specialization = strings.TrimSpace(specialization)
	switch {
	case bio == "":
		return nil, apperr.New(apperr.CodeValidation, "bio is required").WithMetadata("field", "bio")
	case utf8.RuneCountInString(bio) > maxBioLen:
		return nil, apperr.Newf(apperr.CodeValidation, "bio exceeds %d characters", maxBioLen).WithMetadata("field", "bio")
	case specialization == "":
		return nil, apperr.New(apperr.CodeValidation, "specialization is required").WithMetadata("field", "specialization")
	case utf8.RuneCountInString(specialization) > maxSpecializationLen:
		return nil, apperr.Newf(apperr.CodeValidation, "specialization exceeds %d characters", maxSpecializationLen).
			WithMetadata("field", "specialization")
	}

	return s.transition(ctx, actor, actor.ID, lifecycle.ConsultantRequest, func(r repository.Repositories) error {
		if err := r.Users.UpdateConsultantProfile(ctx, actor.ID, bio, specialization); err != nil {
			return storeErr(err, "user")
		}
		return nil
	})
}

// ListRequests: очередь заявок для админа.
func (s *ConsultantService) ListRequests(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.User], error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return pagination.Page[model.User]{}, err
	}
	limit, offset := page.LimitOffset()
	users, total, err := s.repos.Users.ListByConsultantStatus(ctx, model.ConsultantStatusPending, limit, offset)
	if err != nil {
		return pagination.Page[model.User]{}, storeErr(err, "user")
	}
	return pagination.New(users, page, total), nil
}

// Approve выдаёт роль consultant в той же транзакции.
func (s *ConsultantService) Approve(ctx context.Context, actor lifecycle.Actor, userID uuid.UUID) (*model.User, error) {
	return s.transition(ctx, actor, userID, lifecycle.ConsultantApprove, func(r repository.Repositories) error {
		if err := r.Users.AddRole(ctx, userID, model.RoleCodeConsultant); err != nil {
			return storeErr(err, "user role")
		}
		return nil
	})
}

func (s *ConsultantService) Reject(ctx context.Context, actor lifecycle.Actor, userID uuid.UUID) (*model.User, error) {
	return s.transition(ctx, actor, userID, lifecycle.ConsultantReject, nil)
}

func (s *ConsultantService) transition(
	ctx context.Context,
	actor lifecycle.Actor,
	userID uuid.UUID,
	op lifecycle.ConsultantOp,
	extra func(r repository.Repositories) error,
) (*model.User, error) {
	var out *model.User
	err := s.inTx(ctx, func(r repository.Repositories) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return storeErr(err, "user")
		}
		to, err := lifecycle.ConsultantTransition(op, actor, u.ConsultantStatus)
		if err != nil {
			return err
		}
		if err := r.Users.UpdateConsultantStatus(ctx, userID, u.ConsultantStatus, to); err != nil {
			return storeErr(err, "user")
		}
		if extra != nil {
			if err := extra(r); err != nil {
				return err
			}
		}
		if err := record(ctx, r, consultantEvents[op].event, actor.ID, nil, nil,
			map[string]any{"user_id": userID.String(), "from": u.ConsultantStatus, "to": to}); err != nil {
			return err
		}
		out, err = r.Users.GetByID(ctx, userID)
		return storeErr(err, "user")
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "consultant application updated",
		"op", op, "user_id", userID, "status", out.ConsultantStatus)
	s.publish(ctx, consultantEvents[op].key, events.Message{
		ActorID: actor.ID,
		UserID:  &userID,
		Status:  string(out.ConsultantStatus),
	})
	return out, nil
}
