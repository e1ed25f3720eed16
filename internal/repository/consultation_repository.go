package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-platform/internal/model"
)

// ConsultationFilter: пустые поля не фильтруют.
type ConsultationFilter struct {
	Status     model.ConsultationStatus
	CategoryID uuid.UUID
	OwnerID    uuid.UUID
	// Подстрока в названии, без ранжирования.
	Query string
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *model.Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	// Внутри транзакции берёт строку под SELECT ... FOR UPDATE.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
	UpdateDetails(ctx context.Context, c *model.Consultation) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ConsultationStatus) error
	SetRatingTotals(ctx context.Context, id uuid.UUID, totalRating, totalVotes int64) error
	IncrementClients(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ConsultationFilter, limit, offset int) ([]model.Consultation, int64, error)
}

type GormConsultationRepository struct {
	db *gorm.DB
}

func NewGormConsultationRepository(db *gorm.DB) *GormConsultationRepository {
	return &GormConsultationRepository{db: db}
}

func (r *GormConsultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *GormConsultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormConsultationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	var c model.Consultation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormConsultationRepository) UpdateDetails(ctx context.Context, c *model.Consultation) error {
	return r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"title":           c.Title,
			"description":     c.Description,
			"price":           c.Price,
			"category_id":     c.CategoryID,
			"cover_image_url": c.CoverImageURL,
		}).Error
}

func (r *GormConsultationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.ConsultationStatus,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *GormConsultationRepository) SetRatingTotals(ctx context.Context, id uuid.UUID, totalRating, totalVotes int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_rating": totalRating,
			"total_votes":  totalVotes,
		}).Error
}

func (r *GormConsultationRepository) IncrementClients(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ?", id).
		Update("number_of_clients", gorm.Expr("number_of_clients + ?", 1)).Error
}

func (r *GormConsultationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Consultation{}, "id = ?", id).Error
}

// экранируем через '!': в mysql обратный слеш внутри литерала сам является escape.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *GormConsultationRepository) List(
	ctx context.Context,
	f ConsultationFilter,
	limit, offset int,
) ([]model.Consultation, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Consultation{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CategoryID != uuid.Nil {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.OwnerID != uuid.Nil {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(s))+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var items []model.Consultation
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
