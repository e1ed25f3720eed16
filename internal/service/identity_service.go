package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/repository"
)

// Profile: пользователь вместе с его ролями.
type Profile struct {
	User  *model.User
	Roles []string
}

// IdentityService заводит пользователей по валидному токену и отдаёт профиль.
type IdentityService struct {
	base
	admins map[string]struct{}
}

// adminEmails получают роль admin при первом входе.
func NewIdentityService(db *gorm.DB, adminEmails []string, log *slog.Logger) *IdentityService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &IdentityService{base: newBase(db, events.Nop{}, log), admins: admins}
}

// Provision создаёт пользователя с ролью client или возвращает существующего.
// Сигнатура совпадает с auth.Provisioner.
func (s *IdentityService) Provision(ctx context.Context, id uuid.UUID, email, displayName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required").WithMetadata("field", "email")
	}

	var out *model.User
	err := s.inTx(ctx, func(r repository.Repositories) error {
		u, err := r.Users.GetByID(ctx, id)
		if err == nil {
			out = u
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeErr(err, "user")
		}

		u = &model.User{
			ID:          id,
			Email:       email,
			DisplayName: strings.TrimSpace(displayName),
		}
		if err := r.Users.Create(ctx, u); err != nil {
			return storeErr(err, "user")
		}
		if err := r.Users.AddRole(ctx, id, model.RoleCodeClient); err != nil {
			return storeErr(err, "user role")
		}
		if _, ok := s.admins[email]; ok {
			if err := r.Users.AddRole(ctx, id, model.RoleCodeAdmin); err != nil {
				return storeErr(err, "user role")
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user provisioned", "user_id", out.ID)
	return out, nil
}

// Profile текущего пользователя.
func (s *IdentityService) Profile(ctx context.Context, actor lifecycle.Actor) (Profile, error) {
	if err := lifecycle.RequireAuthenticated(actor); err != nil {
		return Profile{}, err
	}
	u, err := s.repos.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return Profile{}, storeErr(err, "user")
	}
	roles, err := s.repos.Users.ListRoles(ctx, actor.ID)
	if err != nil {
		return Profile{}, storeErr(err, "user role")
	}
	return Profile{User: u, Roles: roles}, nil
}
