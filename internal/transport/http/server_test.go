package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/auth"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lock"
	"github.com/Leganyst/consultation-platform/internal/media"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/payment"
	"github.com/Leganyst/consultation-platform/internal/repository"
	"github.com/Leganyst/consultation-platform/internal/service"
)

type stubGateway struct {
	mu       sync.Mutex
	sessions map[string]payment.SessionStatus
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := "cs_" + uuid.NewString()
	// сразу оплачена
	g.sessions[id] = payment.SessionStatus{
		ID: id, Paid: true, AmountMinor: req.AmountMinor, Currency: req.Currency,
		PaymentIntentID: "pi_" + id, Metadata: req.Metadata,
	}
	return payment.CheckoutSession{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (g *stubGateway) GetSession(_ context.Context, id string) (payment.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[id]
	if !ok {
		return payment.SessionStatus{}, apperr.New(apperr.CodeGateway, "unknown session")
	}
	return st, nil
}

func (g *stubGateway) Refund(context.Context, string, string) error { return nil }

type rejectingVerifier struct{}

func (rejectingVerifier) ParseWebhook([]byte, string) (payment.WebhookEvent, error) {
	return payment.WebhookEvent{}, apperr.New(apperr.CodeUnauthorized, "invalid webhook signature")
}

type harness struct {
	router       *gin.Engine
	tokens       *auth.Tokens
	consultation model.Consultation
	admin        model.User
	consultant   model.User
	client       model.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	users := repository.NewGormUserRepository(db)
	h := &harness{
		tokens:     auth.NewTokens("test-secret"),
		admin:      model.User{Email: "admin@example.com"},
		consultant: model.User{Email: "consultant@example.com", ConsultantStatus: model.ConsultantStatusApproved},
		client:     model.User{Email: "client@example.com"},
	}
	for _, u := range []*model.User{&h.admin, &h.consultant, &h.client} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if err := users.AddRole(ctx, h.admin.ID, model.RoleCodeAdmin); err != nil {
		t.Fatalf("seed admin role: %v", err)
	}
	if err := users.AddRole(ctx, h.consultant.ID, model.RoleCodeConsultant); err != nil {
		t.Fatalf("seed consultant role: %v", err)
	}

	category := model.Category{Name: "Law"}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	h.consultation = model.Consultation{
		Title: "Contract review", Description: "desc", Price: 100,
		CategoryID: category.ID, OwnerID: h.consultant.ID, Status: model.ConsultationStatusApproved,
	}
	if err := db.Create(&h.consultation).Error; err != nil {
		t.Fatalf("seed consultation: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := events.Nop{}
	gw := &stubGateway{sessions: map[string]payment.SessionStatus{}}
	locker := lock.NewLocal()
	origin, _ := url.Parse("https://consult.example")
	store, err := media.NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	identity := service.NewIdentityService(db, nil, log)

	h.router = NewRouter(Services{
		Consultations: service.NewConsultationService(db, store, pub, log),
		Payments: service.NewPaymentService(db, gw, locker, service.PaymentConfig{
			Origin: origin, Currency: "egp", Timeout: time.Second,
		}, pub, log),
		Bookings:    service.NewBookingService(db, pub, log),
		Disputes:    service.NewDisputeService(db, gw, locker, time.Second, pub, log),
		Ratings:     service.NewRatingService(db, pub, log),
		Consultants: service.NewConsultantService(db, pub, log),
		Identity:    identity,
	}, Config{
		Resolver: auth.NewResolver(h.tokens, users, identity.Provision),
		Webhooks: rejectingVerifier{},
		Log:      log,
	})
	return h
}

func (h *harness) token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := h.tokens.Issue(u.ID.String(), u.Email, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestRouter_PublicCatalog(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/consultations", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	page := decode[struct {
		Items []consultationDTO `json:"items"`
		Total int64             `json:"total"`
	}](t, w)
	if page.Total != 1 || page.Items[0].ID != h.consultation.ID {
		t.Fatalf("unexpected catalog: %+v", page)
	}

	w = h.do(t, http.MethodGet, "/api/consultations/not-a-uuid", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRouter_AuthErrors(t *testing.T) {
	h := newHarness(t)
	path := "/api/consultations/" + h.consultation.ID.String() + "/checkout"

	w := h.do(t, http.MethodPost, path, "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if body := decode[errorBody](t, w); body.Code != apperr.CodeUnauthorized {
		t.Fatalf("unexpected error body %+v", body)
	}

	w = h.do(t, http.MethodPost, path, "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/api/admin/disputes", h.token(t, h.client), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// владелец не может купить свою консультацию
	w = h.do(t, http.MethodPost, path, h.token(t, h.consultant), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self purchase, got %d", w.Code)
	}
}

func TestRouter_PurchaseAndRate(t *testing.T) {
	h := newHarness(t)
	client := h.token(t, h.client)

	w := h.do(t, http.MethodPost, "/api/consultations/"+h.consultation.ID.String()+"/checkout", client, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", w.Code, w.Body)
	}
	sess := decode[map[string]string](t, w)

	w = h.do(t, http.MethodGet,
		"/api/payment-success?consultationId="+h.consultation.ID.String()+"&session_id="+sess["session_id"], client, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("payment success: %d %s", w.Code, w.Body)
	}
	b := decode[bookingDTO](t, w)
	if b.Status != string(model.BookingStatusPending) || b.AmountMinor != 10000 {
		t.Fatalf("unexpected booking %+v", b)
	}

	w = h.do(t, http.MethodPut, "/api/bookings/"+b.ID.String()+"/rating", client, map[string]int{"rating": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("rate: %d %s", w.Code, w.Body)
	}
	if r := decode[ratingDTO](t, w); r.TotalRating != 4 || r.TotalVotes != 1 {
		t.Fatalf("unexpected rating %+v", r)
	}

	w = h.do(t, http.MethodPost, "/api/bookings/"+b.ID.String()+"/start", h.token(t, h.consultant), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body)
	}
	w = h.do(t, http.MethodPost, "/api/bookings/"+b.ID.String()+"/start", h.token(t, h.consultant), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeated start, got %d", w.Code)
	}
	if body := decode[errorBody](t, w); body.Code != apperr.CodeInvalidState {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestRouter_AdminDisputeResolveValidation(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/admin/disputes/"+uuid.NewString()+"/resolve", h.token(t, h.admin), map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = h.do(t, http.MethodPost, "/api/admin/disputes/"+uuid.NewString()+"/resolve", h.token(t, h.admin),
		map[string]bool{"approve_completion": true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRouter_WebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/payments/webhook", "", map[string]string{"type": "checkout.session.completed"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRouter_ProvisionsNewUser(t *testing.T) {
	h := newHarness(t)
	fresh := model.User{ID: uuid.New(), Email: "new@example.com"}

	w := h.do(t, http.MethodGet, "/api/me", h.token(t, fresh), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d %s", w.Code, w.Body)
	}
	if u := decode[userDTO](t, w); u.ID != fresh.ID || u.Email != "new@example.com" {
		t.Fatalf("unexpected profile %+v", u)
	}
}
