package service

import (
	"context"
	"strings"
	"testing"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
)

func TestBookingService_HappyPath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.purchase(t, e.client)

	b, err := e.bookings.StartWorking(ctx, e.consultant, b.ID)
	if err != nil || b.Status != model.BookingStatusInProgress {
		t.Fatalf("start: %v %v", b, err)
	}
	b, err = e.bookings.RequestCompletion(ctx, e.consultant, b.ID)
	if err != nil || b.Status != model.BookingStatusAwaitingConfirmation {
		t.Fatalf("request completion: %v %v", b, err)
	}
	b, err = e.bookings.ConfirmCompletion(ctx, e.client, b.ID)
	if err != nil || b.Status != model.BookingStatusCompleted {
		t.Fatalf("confirm: %v %v", b, err)
	}
	if b.CompletedAt == nil {
		t.Fatalf("completedAt must be set")
	}

	// из терминального статуса дальше никуда
	_, err = e.bookings.ReportProblem(ctx, e.client, b.ID, "late")
	wantCode(t, err, apperr.CodeInvalidState)

	keys := e.pub.Keys()
	for _, k := range []string{events.KeyBookingStarted, events.KeyBookingAwaiting, events.KeyBookingCompleted} {
		if countKey(keys, k) != 1 {
			t.Fatalf("expected one %s event, got %v", k, keys)
		}
	}

	var audit int64
	e.db.Model(&model.Event{}).Where("booking_id = ?", b.ID).Count(&audit)
	if audit != 4 {
		t.Fatalf("expected 4 audit events (created + 3 transitions), got %d", audit)
	}
}

func TestBookingService_StartWorkingTwice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.purchase(t, e.client)

	if _, err := e.bookings.StartWorking(ctx, e.consultant, b.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := e.bookings.StartWorking(ctx, e.consultant, b.ID)
	wantCode(t, err, apperr.CodeInvalidState)

	if got := e.reloadBooking(t, b.ID); got.Status != model.BookingStatusInProgress {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestBookingService_WrongParty(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.purchase(t, e.client)

	_, err := e.bookings.ConfirmCompletion(ctx, e.other, b.ID)
	wantCode(t, err, apperr.CodeForbidden)

	_, err = e.bookings.StartWorking(ctx, e.client, b.ID)
	wantCode(t, err, apperr.CodeForbidden)

	_, err = e.bookings.StartWorking(ctx, lifecycle.Actor{}, b.ID)
	wantCode(t, err, apperr.CodeUnauthorized)

	if got := e.reloadBooking(t, b.ID); got.Status != model.BookingStatusPending {
		t.Fatalf("status changed to %s", got.Status)
	}
}

func TestBookingService_ReportProblem(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.purchase(t, e.client)

	_, err := e.bookings.ReportProblem(ctx, e.client, b.ID, "   ")
	wantCode(t, err, apperr.CodeValidation)

	_, err = e.bookings.ReportProblem(ctx, e.client, b.ID, strings.Repeat("x", 2001))
	wantCode(t, err, apperr.CodeValidation)

	got, err := e.bookings.ReportProblem(ctx, e.client, b.ID, "  consultant never replied ")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if got.Status != model.BookingStatusDisputed {
		t.Fatalf("expected disputed, got %s", got.Status)
	}
	if got.ProblemDescription == nil || *got.ProblemDescription != "consultant never replied" {
		t.Fatalf("unexpected description %v", got.ProblemDescription)
	}

	_, err = e.bookings.ConfirmCompletion(ctx, e.client, b.ID)
	wantCode(t, err, apperr.CodeInvalidState)
}

func TestBookingService_GetAndLists(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := e.purchase(t, e.client)
	e.purchase(t, e.other)

	for _, a := range []lifecycle.Actor{e.client, e.consultant, e.admin} {
		if _, err := e.bookings.Get(ctx, a, b.ID); err != nil {
			t.Fatalf("get as %s: %v", a.ID, err)
		}
	}
	_, err := e.bookings.Get(ctx, e.other, b.ID)
	wantCode(t, err, apperr.CodeForbidden)

	mine, err := e.bookings.ListMine(ctx, e.client, pagination.Request{})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if mine.Total != 1 || mine.Items[0].ID != b.ID {
		t.Fatalf("unexpected client bookings: %+v", mine)
	}

	incoming, err := e.bookings.ListForConsultant(ctx, e.consultant, pagination.Request{PageSize: 1})
	if err != nil {
		t.Fatalf("list for consultant: %v", err)
	}
	if incoming.Total != 2 || len(incoming.Items) != 1 || !incoming.HasNext {
		t.Fatalf("unexpected consultant page: %+v", incoming)
	}

	_, err = e.bookings.ListForConsultant(ctx, e.client, pagination.Request{})
	wantCode(t, err, apperr.CodeForbidden)
}
