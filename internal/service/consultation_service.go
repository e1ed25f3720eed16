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
	"github.com/Leganyst/consultation-platform/internal/media"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

const maxTitleLen = 255

// ConsultationInput: поля, которые задаёт консультант. Cover необязателен.
type ConsultationInput struct {
	Title       string
	Description string
	Price       int64
	CategoryID  uuid.UUID
	Cover       *media.Upload
}

func (in *ConsultationInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.Title == "":
		return apperr.New(apperr.CodeValidation, "title is required").WithMetadata("field", "title")
	case utf8.RuneCountInString(in.Title) > maxTitleLen:
		return apperr.Newf(apperr.CodeValidation, "title exceeds %d characters", maxTitleLen).WithMetadata("field", "title")
	case in.Description == "":
		return apperr.New(apperr.CodeValidation, "description is required").WithMetadata("field", "description")
	case in.Price <= 0:
		return apperr.New(apperr.CodeValidation, "price must be a positive integer").WithMetadata("field", "price")
	case in.CategoryID == uuid.Nil:
		return apperr.New(apperr.CodeValidation, "category is required").WithMetadata("field", "category_id")
	}
	return nil
}

// ListFilter: фильтр публичного каталога.
type ListFilter struct {
	CategoryID uuid.UUID
	Query      string
}

// ConsultationService: авторство, модерация и чтение каталога.
type ConsultationService struct {
	base
	images media.ImageStore
}

func NewConsultationService(
	db *gorm.DB,
	images media.ImageStore,
	pub events.Publisher,
	log *slog.Logger,
) *ConsultationService {
	return &ConsultationService{base: newBase(db, pub, log), images: images}
}

// Create заводит консультацию в Draft с нулевыми счётчиками.
func (s *ConsultationService) Create(ctx context.Context, actor lifecycle.Actor, in ConsultationInput) (*model.Consultation, error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleConsultant); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.repos.Categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, storeErr(err, "category")
	}

	cover, err := s.storeCover(ctx, in.Cover)
	if err != nil {
		return nil, err
	}

	c := &model.Consultation{
		Title:         in.Title,
		Description:   in.Description,
		Price:         in.Price,
		CoverImageURL: cover,
		CategoryID:    in.CategoryID,
		OwnerID:       actor.ID,
		Status:        model.ConsultationStatusDraft,
	}

	err = s.inTx(ctx, func(r repository.Repositories) error {
		if err := r.Consultations.Create(ctx, c); err != nil {
			return storeErr(err, "consultation")
		}
		return record(ctx, r, model.EventTypeConsultationCreated, actor.ID, nil, &c.ID, map[string]any{"title": c.Title})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "consultation created", "consultation_id", c.ID, "owner_id", actor.ID)
	return c, nil
}

// Update правит поля черновика или отклонённой консультации. Статус не меняется.
func (s *ConsultationService) Update(
	ctx context.Context,
	actor lifecycle.Actor,
	id uuid.UUID,
	in ConsultationInput,
) (*model.Consultation, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	current, err := s.repos.Consultations.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "consultation")
	}
	if err := checkEditable(actor, current); err != nil {
		return nil, err
	}
	if _, err := s.repos.Categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, storeErr(err, "category")
	}

	cover := current.CoverImageURL
	if in.Cover != nil {
		if cover, err = s.storeCover(ctx, in.Cover); err != nil {
			return nil, err
		}
	}

	var updated *model.Consultation
	err = s.inTx(ctx, func(r repository.Repositories) error {
		c, err := r.Consultations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, "consultation")
		}
		// статус мог смениться, пока грузилась обложка
		if err := checkEditable(actor, c); err != nil {
			return err
		}

		c.Title = in.Title
		c.Description = in.Description
		c.Price = in.Price
		c.CategoryID = in.CategoryID
		c.CoverImageURL = cover
		if err := r.Consultations.UpdateDetails(ctx, c); err != nil {
			return storeErr(err, "consultation")
		}
		if err := record(ctx, r, model.EventTypeConsultationUpdated, actor.ID, nil, &c.ID, nil); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func checkEditable(actor lifecycle.Actor, c *model.Consultation) error {
	if c.OwnerID != actor.ID {
		return apperr.New(apperr.CodeForbidden, "only the owner may edit this consultation")
	}
	if !lifecycle.ConsultationEditable(c.Status) {
		return apperr.Newf(apperr.CodeInvalidState, "consultation in status %s cannot be edited", c.Status)
	}
	return nil
}

// Delete удаляет консультацию без бронирований. С бронированиями: Conflict,
// история исполнения не стирается.
func (s *ConsultationService) Delete(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) error {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return err
	}

	return s.inTx(ctx, func(r repository.Repositories) error {
		c, err := r.Consultations.GetByIDForUpdate(ctx, id)
		if err != nil {
			return storeErr(err, "consultation")
		}
		if c.OwnerID != actor.ID && !actor.Has(lifecycle.RoleAdmin) {
			return apperr.New(apperr.CodeForbidden, "only the owner or an admin may delete this consultation")
		}

		n, err := r.Bookings.CountByConsultation(ctx, id)
		if err != nil {
			return storeErr(err, "booking")
		}
		if n > 0 {
			return apperr.Newf(apperr.CodeConflict, "consultation has %d bookings", n).
				WithMetadata("bookings", itoa(n))
		}

		if err := r.Consultations.Delete(ctx, id); err != nil {
			return storeErr(err, "consultation")
		}
		return record(ctx, r, model.EventTypeConsultationDeleted, actor.ID, nil, &id, map[string]any{"title": c.Title})
	})
}

// SubmitForReview: Draft|Rejected -> Pending, только владелец.
func (s *ConsultationService) SubmitForReview(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Consultation, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, lifecycle.ConsultationSubmit)
}

// Approve: Pending -> Approved, только админ.
func (s *ConsultationService) Approve(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Consultation, error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, lifecycle.ConsultationApprove)
}

// Reject: Pending -> Rejected, только админ.
func (s *ConsultationService) Reject(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Consultation, error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, lifecycle.ConsultationReject)
}

var consultationEvents = map[lifecycle.ConsultationOp]struct {
	audit model.EventType
	key   string
}{
	lifecycle.ConsultationSubmit:  {model.EventTypeConsultationSubmitted, events.KeyConsultationSubmitted},
	lifecycle.ConsultationApprove: {model.EventTypeConsultationApproved, events.KeyConsultationApproved},
	lifecycle.ConsultationReject:  {model.EventTypeConsultationRejected, events.KeyConsultationRejected},
}

func (s *ConsultationService) transition(
	ctx context.Context,
	actor lifecycle.Actor,
	id uuid.UUID,
	op lifecycle.ConsultationOp,
) (*model.Consultation, error) {
	var c *model.Consultation
	err := s.inTx(ctx, func(r repository.Repositories) error {
		var err error
		if c, err = r.Consultations.GetByID(ctx, id); err != nil {
			return storeErr(err, "consultation")
		}

		from := c.Status
		to, err := lifecycle.ConsultationTransition(op, actor, c.OwnerID, from)
		if err != nil {
			return err
		}
		if err := r.Consultations.UpdateStatus(ctx, id, from, to); err != nil {
			return storeErr(err, "consultation")
		}
		c.Status = to

		return record(ctx, r, consultationEvents[op].audit, actor.ID, nil, &id,
			map[string]any{"from": from, "to": to})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "consultation status changed", "consultation_id", id, "op", op, "status", c.Status)
	s.publish(ctx, consultationEvents[op].key, events.Message{
		ActorID:        actor.ID,
		ConsultationID: &id,
		UserID:         &c.OwnerID,
		Status:         string(c.Status),
	})
	return c, nil
}

// Get: одобренные видны всем, остальные только владельцу и админу.
func (s *ConsultationService) Get(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Consultation, error) {
	c, err := s.repos.Consultations.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "consultation")
	}
	if !lifecycle.ConsultationVisible(*c, actor) {
		return nil, apperr.New(apperr.CodeNotFound, "consultation not found")
	}
	return c, nil
}

// ListApproved: публичный каталог, только Approved.
func (s *ConsultationService) ListApproved(
	ctx context.Context,
	f ListFilter,
	page pagination.Request,
) (pagination.Page[model.Consultation], error) {
	return s.list(ctx, repository.ConsultationFilter{
		Status:     model.ConsultationStatusApproved,
		CategoryID: f.CategoryID,
		Query:      f.Query,
	}, page)
}

// ListMine: консультации владельца в любом статусе.
func (s *ConsultationService) ListMine(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.Consultation], error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleConsultant); err != nil {
		return pagination.Page[model.Consultation]{}, err
	}
	return s.list(ctx, repository.ConsultationFilter{OwnerID: actor.ID}, page)
}

// ListPending: очередь модерации.
func (s *ConsultationService) ListPending(
	ctx context.Context,
	actor lifecycle.Actor,
	page pagination.Request,
) (pagination.Page[model.Consultation], error) {
	if err := lifecycle.RequireRole(actor, lifecycle.RoleAdmin); err != nil {
		return pagination.Page[model.Consultation]{}, err
	}
	return s.list(ctx, repository.ConsultationFilter{Status: model.ConsultationStatusPending}, page)
}

func (s *ConsultationService) ListCategories(ctx context.Context) ([]model.Category, error) {
	items, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, storeErr(err, "category")
	}
	return items, nil
}

func (s *ConsultationService) list(
	ctx context.Context,
	f repository.ConsultationFilter,
	page pagination.Request,
) (pagination.Page[model.Consultation], error) {
	limit, offset := page.LimitOffset()
	items, total, err := s.repos.Consultations.List(ctx, f, limit, offset)
	if err != nil {
		return pagination.Page[model.Consultation]{}, storeErr(err, "consultation")
	}
	return pagination.New(items, page, total), nil
}

func (s *ConsultationService) storeCover(ctx context.Context, up *media.Upload) (string, error) {
	if up == nil {
		return "", nil
	}
	name, contentType, err := media.CoverObject(*up)
	if err != nil {
		return "", err
	}
	url, err := s.images.Put(ctx, name, contentType, up.Data)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "store cover image", err)
	}
	return url, nil
}
