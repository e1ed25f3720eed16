package lifecycle

import (
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
)

type BookingOp string

const (
	BookingStartWorking      BookingOp = "start_working"
	BookingRequestCompletion BookingOp = "request_completion"
	BookingConfirmCompletion BookingOp = "confirm_completion"
	BookingReportProblem     BookingOp = "report_problem"
	BookingResolveApprove    BookingOp = "resolve_approve"
	BookingResolveRefund     BookingOp = "resolve_refund"
)

// Party: кто вправе выполнять операцию над бронированием.
type Party int

const (
	PartyConsultant Party = iota + 1 // владелец консультации
	PartyClient                      // владелец бронирования
	PartyAdmin
)

type bookingRule struct {
	from  map[model.BookingStatus]struct{}
	to    model.BookingStatus
	party Party
}

var bookingRules = map[BookingOp]bookingRule{
	BookingStartWorking: {
		from:  statusSet(model.BookingStatusPending),
		to:    model.BookingStatusInProgress,
		party: PartyConsultant,
	},
	BookingRequestCompletion: {
		from:  statusSet(model.BookingStatusInProgress),
		to:    model.BookingStatusAwaitingConfirmation,
		party: PartyConsultant,
	},
	BookingConfirmCompletion: {
		from: statusSet(
			model.BookingStatusPending,
			model.BookingStatusInProgress,
			model.BookingStatusAwaitingConfirmation,
		),
		to:    model.BookingStatusCompleted,
		party: PartyClient,
	},
	BookingReportProblem: {
		from: statusSet(
			model.BookingStatusPending,
			model.BookingStatusInProgress,
			model.BookingStatusAwaitingConfirmation,
		),
		to:    model.BookingStatusDisputed,
		party: PartyClient,
	},
	// выйти из Disputed можно только через решение админа
	BookingResolveApprove: {
		from:  statusSet(model.BookingStatusDisputed),
		to:    model.BookingStatusCompleted,
		party: PartyAdmin,
	},
	BookingResolveRefund: {
		from:  statusSet(model.BookingStatusDisputed),
		to:    model.BookingStatusRefunded,
		party: PartyAdmin,
	},
}

// BookingParties: снимок участников бронирования для проверки прав.
type BookingParties struct {
	ClientID     uuid.UUID
	ConsultantID uuid.UUID
}

// BookingTransition проверяет права актора, затем исходный статус.
func BookingTransition(
	op BookingOp,
	actor Actor,
	parties BookingParties,
	from model.BookingStatus,
) (model.BookingStatus, error) {
	rule, ok := bookingRules[op]
	if !ok {
		return "", apperr.Newf(apperr.CodeValidation, "unknown booking operation %q", op)
	}
	if err := authorizeParty(rule.party, actor, parties); err != nil {
		return "", err
	}
	if from.IsTerminal() {
		return "", apperr.Newf(apperr.CodeInvalidState, "booking is closed as %s", from).
			WithMetadata("status", string(from))
	}
	if _, ok := rule.from[from]; !ok {
		return "", apperr.Newf(apperr.CodeInvalidState, "cannot %s booking in status %s", op, from).
			WithMetadata("status", string(from))
	}
	return rule.to, nil
}

// OperationParty сообщает, кто выполняет операцию; нужен сервисам для аудита.
func OperationParty(op BookingOp) Party {
	return bookingRules[op].party
}

func authorizeParty(p Party, actor Actor, parties BookingParties) error {
	if err := RequireAuthenticated(actor); err != nil {
		return err
	}
	switch p {
	case PartyConsultant:
		if actor.ID != parties.ConsultantID {
			return apperr.New(apperr.CodeForbidden, "only the consultation owner may do this")
		}
	case PartyClient:
		if actor.ID != parties.ClientID {
			return apperr.New(apperr.CodeForbidden, "only the booking owner may do this")
		}
	case PartyAdmin:
		if !actor.Has(RoleAdmin) {
			return apperr.New(apperr.CodeForbidden, "admin role required")
		}
	default:
		return apperr.New(apperr.CodeForbidden, "operation not permitted")
	}
	return nil
}
