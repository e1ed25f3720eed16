package service

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
)

func disputed(t *testing.T, e *testEnv) *model.Booking {
	t.Helper()
	b := e.purchase(t, e.client)
	b, err := e.bookings.ReportProblem(context.Background(), e.client, b.ID, "no answer")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	return b
}

func TestDisputeService_ListAndApprove(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)

	list, err := e.disputes.ListDisputes(ctx, e.admin, pagination.Request{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 1 || list.Items[0].ID != b.ID {
		t.Fatalf("unexpected disputes: %+v", list)
	}

	_, err = e.disputes.ListDisputes(ctx, e.client, pagination.Request{})
	wantCode(t, err, apperr.CodeForbidden)

	got, err := e.disputes.Resolve(ctx, e.admin, b.ID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != model.BookingStatusCompleted || got.CompletedAt == nil {
		t.Fatalf("unexpected booking after approve: %+v", got)
	}
	if len(e.gw.refunds) != 0 {
		t.Fatalf("approve must not refund")
	}
}

func TestDisputeService_Refund(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)

	got, err := e.disputes.Resolve(ctx, e.admin, b.ID, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Status != model.BookingStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.Status)
	}
	if len(e.gw.refunds) != 1 || e.gw.refunds[0] != b.PaymentIntentID {
		t.Fatalf("unexpected refunds %v", e.gw.refunds)
	}

	// повторный возврат по терминальному бронированию не идёт в шлюз
	_, err = e.disputes.Resolve(ctx, e.admin, b.ID, false)
	wantCode(t, err, apperr.CodeInvalidState)
	if len(e.gw.refunds) != 1 {
		t.Fatalf("second refund reached the gateway")
	}
}

func TestDisputeService_RefundFailureKeepsDispute(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)
	e.gw.refundErr = errBoom

	_, err := e.disputes.Resolve(ctx, e.admin, b.ID, false)
	wantCode(t, err, apperr.CodeGateway)

	if got := e.reloadBooking(t, b.ID); got.Status != model.BookingStatusDisputed {
		t.Fatalf("expected booking to stay disputed, got %s", got.Status)
	}
}

func TestDisputeService_ApproveWaitsForRefund(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)

	approved := make(chan error, 1)
	e.gw.onRefund = func() {
		go func() {
			_, err := e.disputes.Resolve(ctx, e.admin, b.ID, true)
			approved <- err
		}()
		// пока возврат не записан, второе решение должно ждать
		select {
		case err := <-approved:
			t.Errorf("approve finished while refund was in flight: %v", err)
			approved <- err
		case <-time.After(100 * time.Millisecond):
		}
	}

	got, err := e.disputes.Resolve(ctx, e.admin, b.ID, false)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got.Status != model.BookingStatusRefunded {
		t.Fatalf("expected refunded, got %s", got.Status)
	}

	select {
	case err := <-approved:
		wantCode(t, err, apperr.CodeInvalidState)
	case <-time.After(5 * time.Second):
		t.Fatalf("approve never finished")
	}
	if got := e.reloadBooking(t, b.ID); got.Status != model.BookingStatusRefunded {
		t.Fatalf("refunded booking ended up %s", got.Status)
	}
}

func TestDisputeService_RefundRetryAfterFailedWrite(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)

	failNext := true
	err := e.db.Callback().Update().Before("gorm:update").Register("test:fail_booking_update", func(tx *gorm.DB) {
		if failNext && tx.Statement.Table == "bookings" {
			failNext = false
			tx.AddError(errBoom)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := e.disputes.Resolve(ctx, e.admin, b.ID, false); err == nil {
		t.Fatalf("expected failed write to surface")
	}
	if got := e.reloadBooking(t, b.ID); got.Status != model.BookingStatusDisputed {
		t.Fatalf("expected booking to stay disputed, got %s", got.Status)
	}

	got, err := e.disputes.Resolve(ctx, e.admin, b.ID, false)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != model.BookingStatusRefunded {
		t.Fatalf("expected refunded after retry, got %s", got.Status)
	}
	if len(e.gw.refunds) != 1 || !e.gw.refundKeys[RefundKey(b.ID)] {
		t.Fatalf("payment must be refunded once, got %v", e.gw.refunds)
	}
}

func TestDisputeService_RefundFallsBackToSessionIntent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	b := disputed(t, e)
	if err := e.db.Model(&model.Booking{}).Where("id = ?", b.ID).Update("payment_intent_id", "").Error; err != nil {
		t.Fatalf("clear intent: %v", err)
	}

	got, err := e.disputes.Resolve(ctx, e.admin, b.ID, false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.PaymentIntentID != b.PaymentIntentID {
		t.Fatalf("expected intent %q restored, got %q", b.PaymentIntentID, got.PaymentIntentID)
	}
}

func TestDisputeService_OnlyDisputed(t *testing.T) {
	e := newTestEnv(t)
	b := e.purchase(t, e.client)

	_, err := e.disputes.Resolve(context.Background(), e.admin, b.ID, true)
	wantCode(t, err, apperr.CodeInvalidState)

	_, err = e.disputes.Resolve(context.Background(), e.consultant, b.ID, true)
	wantCode(t, err, apperr.CodeForbidden)
}
