// Package httpapi: HTTP-поверхность платформы поверх gin.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/pagination"
	"github.com/Leganyst/consultation-platform/internal/payment"
	"github.com/Leganyst/consultation-platform/internal/service"
)

// Services: доменные сервисы, которые обслуживает HTTP.
type Services struct {
	Consultations *service.ConsultationService
	Payments      *service.PaymentService
	Bookings      *service.BookingService
	Disputes      *service.DisputeService
	Ratings       *service.RatingService
	Consultants   *service.ConsultantService
	Identity      *service.IdentityService
}

type Config struct {
	Resolver ActorResolver
	Webhooks payment.WebhookVerifier
	// Каталог локальных обложек; пусто, если картинки лежат в S3.
	UploadDir   string
	CORSOrigins []string
	Log         *slog.Logger
}

type Server struct {
	svc Services
	cfg Config
	log *slog.Logger
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(svc Services, cfg Config) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	s := &Server{svc: svc, cfg: cfg, log: cfg.Log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	r.MaxMultipartMemory = 8 << 20

	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	optional := Authenticate(cfg.Resolver, false)
	required := Authenticate(cfg.Resolver, true)

	api := r.Group("/api")
	{
		api.GET("/categories", s.listCategories)
		api.GET("/consultations", s.listConsultations)
		api.GET("/consultations/:id", optional, s.getConsultation)
		api.POST("/payments/webhook", s.paymentWebhook)
	}

	secured := api.Group("")
	secured.Use(required)
	{
		secured.POST("/consultations", s.createConsultation)
		secured.PUT("/consultations/:id", s.updateConsultation)
		secured.DELETE("/consultations/:id", s.deleteConsultation)
		secured.POST("/consultations/:id/submit", s.submitConsultation)
		secured.POST("/consultations/:id/checkout", s.checkout)
		secured.GET("/payment-success", s.paymentSuccess)

		secured.GET("/bookings/:id", s.getBooking)
		secured.POST("/bookings/:id/start", s.startWorking)
		secured.POST("/bookings/:id/request-completion", s.requestCompletion)
		secured.POST("/bookings/:id/confirm", s.confirmCompletion)
		secured.POST("/bookings/:id/report", s.reportProblem)
		secured.PUT("/bookings/:id/rating", s.rateBooking)
		secured.DELETE("/bookings/:id/rating", s.removeRating)

		secured.GET("/me", s.me)
		secured.GET("/me/bookings", s.myBookings)
		secured.GET("/me/consultations", s.myConsultations)
		secured.GET("/me/incoming-bookings", s.incomingBookings)
		secured.POST("/consultant-requests", s.submitConsultantRequest)
	}

	admin := api.Group("/admin")
	admin.Use(required, RequireRole(lifecycle.RoleAdmin))
	{
		admin.GET("/consultations/pending", s.pendingConsultations)
		admin.POST("/consultations/:id/approve", s.approveConsultation)
		admin.POST("/consultations/:id/reject", s.rejectConsultation)

		admin.GET("/disputes", s.listDisputes)
		admin.POST("/disputes/:id/resolve", s.resolveDispute)

		admin.GET("/consultant-requests", s.listConsultantRequests)
		admin.POST("/consultant-requests/:id/approve", s.approveConsultantRequest)
		admin.POST("/consultant-requests/:id/reject", s.rejectConsultantRequest)
	}

	return r
}

// Handler оборачивает роутер в CORS.
func Handler(r *gin.Engine, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id", err)
		return uuid.Nil, false
	}
	return id, true
}

// pageRequest: ?page=&page_size=, мусор заменяется дефолтами.
func pageRequest(c *gin.Context) pagination.Request {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return pagination.Request{Page: page, PageSize: size}.Normalize()
}
