package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
)

// Источник данных о пользователях.
// В реале это репозиторий поверх БД, в тестах мок.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListRoles(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Provisioner заводит пользователя, впервые пришедшего с валидным токеном.
type Provisioner func(ctx context.Context, id uuid.UUID, email, displayName string) (*model.User, error)

// Resolver строит Actor по токену.
type Resolver struct {
	tokens    *Tokens
	users     UserStore
	provision Provisioner
}

// provision может быть nil: тогда неизвестный пользователь получает Unauthorized.
func NewResolver(tokens *Tokens, users UserStore, provision Provisioner) *Resolver {
	return &Resolver{tokens: tokens, users: users, provision: provision}
}

// Resolve:
//   - проверяет подпись и срок токена;
//   - вытаскивает пользователя из хранилища (или заводит по email из токена);
//   - отсекает заблокированных;
//   - собирает набор ролей (client есть у всех).
func (r *Resolver) Resolve(ctx context.Context, token string) (lifecycle.Actor, error) {
	claims, err := r.tokens.Parse(token)
	if err != nil {
		return lifecycle.Actor{}, apperr.Wrap(apperr.CodeUnauthorized, "invalid token", err)
	}

	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return lifecycle.Actor{}, apperr.Wrap(apperr.CodeUnauthorized, "invalid subject", err)
	}

	u, err := r.users.GetByID(ctx, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound) && r.provision != nil && claims.Email != "":
		u, err = r.provision(ctx, id, claims.Email, claims.Name)
		if err != nil {
			return lifecycle.Actor{}, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return lifecycle.Actor{}, apperr.New(apperr.CodeUnauthorized, "unknown user")
	case err != nil:
		return lifecycle.Actor{}, apperr.FromStore(err, "user")
	}
	if u.Blocked {
		return lifecycle.Actor{}, apperr.New(apperr.CodeForbidden, "user is blocked")
	}

	codes, err := r.users.ListRoles(ctx, id)
	if err != nil {
		return lifecycle.Actor{}, apperr.FromStore(err, "roles")
	}

	roles := []lifecycle.Role{lifecycle.RoleClient}
	for _, c := range codes {
		if role := lifecycle.Role(c); role != lifecycle.RoleClient {
			roles = append(roles, role)
		}
	}
	return lifecycle.NewActor(u.ID, roles...), nil
}
