package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-platform/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Коды ролей пользователя.
	ListRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Идемпотентно добавляет роль; справочник ролей дополняется при необходимости.
	AddRole(ctx context.Context, userID uuid.UUID, roleCode string) error
	UpdateConsultantStatus(ctx context.Context, id uuid.UUID, from, to model.ConsultantStatus) error
	UpdateConsultantProfile(ctx context.Context, id uuid.UUID, bio, specialization string) error
	ListByConsultantStatus(ctx context.Context, status model.ConsultantStatus, limit, offset int) ([]model.User, int64, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *GormUserRepository) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	n := normalizeEmail(email)
	if n == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("email = ?", n).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) ListRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&model.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.code ASC").
		Pluck("roles.code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *GormUserRepository) AddRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	// ensure role exists
	var role model.Role
	if err := r.db.WithContext(ctx).Where("code = ?", roleCode).First(&role).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		role = model.Role{Code: roleCode, Name: roleCode}
		if err := r.db.WithContext(ctx).Create(&role).Error; err != nil {
			return err
		}
	}

	ur := model.UserRole{RoleID: role.ID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ur).Error
}

func (r *GormUserRepository) UpdateConsultantStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to model.ConsultantStatus,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND consultant_status = ?", id, from).
		Update("consultant_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *GormUserRepository) UpdateConsultantProfile(ctx context.Context, id uuid.UUID, bio, specialization string) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"bio":            bio,
			"specialization": specialization,
		}).Error
}

func (r *GormUserRepository) ListByConsultantStatus(
	ctx context.Context,
	status model.ConsultantStatus,
	limit, offset int,
) ([]model.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("consultant_status = ?", status)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var users []model.User
	if err := q.Order("updated_at ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
