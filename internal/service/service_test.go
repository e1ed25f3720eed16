package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/lock"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/payment"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGateway: платёжный шлюз в памяти.
type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]payment.SessionStatus
	created   []payment.CheckoutRequest
	refunds   []string
	getCalls  int
	hang      bool
	refundErr error
	// ключи уже проведённых возвратов, как у шлюза с идемпотентностью
	refundKeys map[string]bool
	// вызывается после успешного возврата, без g.mu
	onRefund func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]payment.SessionStatus)}
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	if g.hang {
		<-ctx.Done()
		return payment.CheckoutSession{}, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	id := "cs_" + uuid.NewString()
	g.sessions[id] = payment.SessionStatus{
		ID:          id,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}
	return payment.CheckoutSession{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) GetSession(_ context.Context, id string) (payment.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	st, ok := g.sessions[id]
	if !ok {
		return payment.SessionStatus{}, apperr.New(apperr.CodeGateway, "no such session")
	}
	return st, nil
}

func (g *fakeGateway) Refund(_ context.Context, intent, key string) error {
	g.mu.Lock()
	if g.refundErr != nil {
		g.mu.Unlock()
		return g.refundErr
	}
	if g.refundKeys == nil {
		g.refundKeys = make(map[string]bool)
	}
	if !g.refundKeys[key] {
		g.refundKeys[key] = true
		g.refunds = append(g.refunds, intent)
	}
	hook := g.onRefund
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// pay помечает сессию оплаченной.
func (g *fakeGateway) pay(id, intent string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.sessions[id]
	st.Paid = true
	st.PaymentIntentID = intent
	g.sessions[id] = st
}

type testEnv struct {
	db  *gorm.DB
	gw  *fakeGateway
	pub *events.Recorder

	admin      lifecycle.Actor
	consultant lifecycle.Actor
	client     lifecycle.Actor
	other      lifecycle.Actor

	category     model.Category
	consultation model.Consultation

	payments *PaymentService
	bookings *BookingService
	disputes *DisputeService
	ratings  *RatingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)

	users := map[string]*model.User{
		"admin":      {Email: "admin@example.com"},
		"consultant": {Email: "consultant@example.com", ConsultantStatus: model.ConsultantStatusApproved},
		"client":     {Email: "client@example.com"},
		"other":      {Email: "other@example.com"},
	}
	for name, u := range users {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	e := &testEnv{
		db:         db,
		gw:         newFakeGateway(),
		pub:        &events.Recorder{},
		admin:      lifecycle.NewActor(users["admin"].ID, lifecycle.RoleClient, lifecycle.RoleAdmin),
		consultant: lifecycle.NewActor(users["consultant"].ID, lifecycle.RoleClient, lifecycle.RoleConsultant),
		client:     lifecycle.NewActor(users["client"].ID, lifecycle.RoleClient),
		other:      lifecycle.NewActor(users["other"].ID, lifecycle.RoleClient),
		category:   model.Category{Name: "Law"},
	}
	if err := db.Create(&e.category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	e.consultation = model.Consultation{
		Title:         "Contract review",
		Description:   "Review of a lease agreement",
		Price:         100,
		CoverImageURL: "/uploads/cover.png",
		CategoryID:    e.category.ID,
		OwnerID:       e.consultant.ID,
		Status:        model.ConsultationStatusApproved,
	}
	if err := db.Create(&e.consultation).Error; err != nil {
		t.Fatalf("seed consultation: %v", err)
	}

	origin, _ := url.Parse("https://consult.example")
	locker := lock.NewLocal()
	log := quietLogger()
	e.payments = NewPaymentService(db, e.gw, locker, PaymentConfig{
		Origin:   origin,
		Currency: "egp",
		Timeout:  time.Second,
	}, e.pub, log)
	e.bookings = NewBookingService(db, e.pub, log)
	e.disputes = NewDisputeService(db, e.gw, locker, time.Second, e.pub, log)
	e.ratings = NewRatingService(db, e.pub, log)
	return e
}

// purchase проводит клиента через оплату и возвращает созданное бронирование.
func (e *testEnv) purchase(t *testing.T, client lifecycle.Actor) *model.Booking {
	t.Helper()
	ctx := context.Background()
	sess, err := e.payments.Initiate(ctx, client, e.consultation.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	e.gw.pay(sess.ID, "pi_"+sess.ID)
	b, err := e.payments.ConfirmSuccess(ctx, client, e.consultation.ID, sess.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	return b
}

func (e *testEnv) reloadConsultation(t *testing.T) model.Consultation {
	t.Helper()
	var c model.Consultation
	if err := e.db.First(&c, "id = ?", e.consultation.ID).Error; err != nil {
		t.Fatalf("reload consultation: %v", err)
	}
	return c
}

func (e *testEnv) reloadBooking(t *testing.T, id uuid.UUID) model.Booking {
	t.Helper()
	var b model.Booking
	if err := e.db.First(&b, "id = ?", id).Error; err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	return b
}

// recountRatings считает сумму и число оценок по бронированиям с нуля.
func (e *testEnv) recountRatings(t *testing.T) (sum, votes int64) {
	t.Helper()
	var row struct {
		RatingSum   int64
		RatingVotes int64
	}
	err := e.db.Model(&model.Booking{}).
		Select("COALESCE(SUM(rating), 0) AS rating_sum, COUNT(rating) AS rating_votes").
		Where("consultation_id = ? AND rating IS NOT NULL", e.consultation.ID).
		Scan(&row).Error
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	return row.RatingSum, row.RatingVotes
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("expected %s error, got %s (%v)", code, got, err)
	}
}

func countKey(keys []string, key string) int {
	n := 0
	for _, k := range keys {
		if k == key {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
