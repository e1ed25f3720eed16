package lifecycle

import (
	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
)

type ConsultantOp string

const (
	ConsultantRequest ConsultantOp = "request"
	ConsultantApprove ConsultantOp = "approve"
	ConsultantReject  ConsultantOp = "reject"
)

var consultantTransitions = map[ConsultantOp]struct {
	from map[model.ConsultantStatus]struct{}
	to   model.ConsultantStatus
}{
	ConsultantRequest: {statusSet(model.ConsultantStatusNone, model.ConsultantStatusRejected), model.ConsultantStatusPending},
	ConsultantApprove: {statusSet(model.ConsultantStatusPending), model.ConsultantStatusApproved},
	ConsultantReject:  {statusSet(model.ConsultantStatusPending), model.ConsultantStatusRejected},
}

// ConsultantTransition: заявка подаётся самим пользователем, решение принимает админ.
func ConsultantTransition(op ConsultantOp, actor Actor, from model.ConsultantStatus) (model.ConsultantStatus, error) {
	tr, ok := consultantTransitions[op]
	if !ok {
		return "", apperr.Newf(apperr.CodeValidation, "unknown consultant operation %q", op)
	}
	if op == ConsultantRequest {
		if err := RequireAuthenticated(actor); err != nil {
			return "", err
		}
	} else if err := RequireRole(actor, RoleAdmin); err != nil {
		return "", err
	}
	if _, ok := tr.from[from]; !ok {
		return "", apperr.Newf(apperr.CodeInvalidState, "cannot %s consultant application in status %s", op, from)
	}
	return tr.to, nil
}
