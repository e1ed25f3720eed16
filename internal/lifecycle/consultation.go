package lifecycle

import (
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
)

// ConsultationOp: операция модерации консультации.
type ConsultationOp string

const (
	ConsultationSubmit  ConsultationOp = "submit"
	ConsultationApprove ConsultationOp = "approve"
	ConsultationReject  ConsultationOp = "reject"
)

type consultationRule struct {
	from map[model.ConsultationStatus]struct{}
	to   model.ConsultationStatus
	// true: только админ, false: только владелец
	admin bool
}

var consultationRules = map[ConsultationOp]consultationRule{
	ConsultationSubmit: {
		from: statusSet(model.ConsultationStatusDraft, model.ConsultationStatusRejected),
		to:   model.ConsultationStatusPending,
	},
	ConsultationApprove: {
		from:  statusSet(model.ConsultationStatusPending),
		to:    model.ConsultationStatusApproved,
		admin: true,
	},
	ConsultationReject: {
		from:  statusSet(model.ConsultationStatusPending),
		to:    model.ConsultationStatusRejected,
		admin: true,
	},
}

// ConsultationTransition проверяет актора, затем исходный статус, и возвращает целевой.
func ConsultationTransition(
	op ConsultationOp,
	actor Actor,
	ownerID uuid.UUID,
	from model.ConsultationStatus,
) (model.ConsultationStatus, error) {
	rule, ok := consultationRules[op]
	if !ok {
		return "", apperr.Newf(apperr.CodeValidation, "unknown consultation operation %q", op)
	}

	if rule.admin {
		if err := RequireRole(actor, RoleAdmin); err != nil {
			return "", err
		}
	} else {
		if err := RequireAuthenticated(actor); err != nil {
			return "", err
		}
		if actor.ID != ownerID {
			return "", apperr.New(apperr.CodeForbidden, "only the owner may do this")
		}
	}

	if _, ok := rule.from[from]; !ok {
		return "", apperr.Newf(apperr.CodeInvalidState, "cannot %s consultation in status %s", op, from).
			WithMetadata("status", string(from))
	}
	return rule.to, nil
}

// ConsultationEditable: править можно только черновик или отклонённую.
func ConsultationEditable(s model.ConsultationStatus) bool {
	return s == model.ConsultationStatusDraft || s == model.ConsultationStatusRejected
}

// ConsultationVisible: неодобренные видят только владелец и админ.
func ConsultationVisible(c model.Consultation, actor Actor) bool {
	if c.Status == model.ConsultationStatusApproved {
		return true
	}
	return actor.Authenticated() && (actor.ID == c.OwnerID || actor.Has(RoleAdmin))
}

func statusSet[S comparable](ss ...S) map[S]struct{} {
	m := make(map[S]struct{}, len(ss))
	for _, s := range ss {
		m[s] = struct{}{}
	}
	return m
}
