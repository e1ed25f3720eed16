// Package lifecycle содержит чистую логику переходов: кто и из какого статуса
// может выполнить операцию. Ввода-вывода здесь нет.
package lifecycle

import (
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
)

// Role пользователя в системе.
type Role string

const (
	RoleClient     Role = model.RoleCodeClient
	RoleConsultant Role = model.RoleCodeConsultant
	RoleAdmin      Role = model.RoleCodeAdmin
)

// Actor: аутентифицированный участник операции (id + набор ролей).
// Нулевой Actor означает анонимный запрос.
type Actor struct {
	ID    uuid.UUID
	Roles []Role
}

func NewActor(id uuid.UUID, roles ...Role) Actor {
	return Actor{ID: id, Roles: roles}
}

func (a Actor) Authenticated() bool {
	return a.ID != uuid.Nil
}

func (a Actor) Has(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireAuthenticated возвращает Unauthorized для анонимного актора.
func RequireAuthenticated(a Actor) error {
	if !a.Authenticated() {
		return apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireRole: Unauthorized для анонима, Forbidden без роли.
func RequireRole(a Actor, role Role) error {
	if err := RequireAuthenticated(a); err != nil {
		return err
	}
	if !a.Has(role) {
		return apperr.Newf(apperr.CodeForbidden, "role %s required", role)
	}
	return nil
}
