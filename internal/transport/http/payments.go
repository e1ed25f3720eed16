package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
)

// Уведомления шлюза маленькие, остальное не читаем.
const maxWebhookBody = 64 << 10

// POST /api/consultations/:id/checkout
func (s *Server) checkout(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sess, err := s.svc.Payments.Initiate(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID, "url": sess.RedirectURL})
}

// GET /api/payment-success?consultationId=&session_id=
func (s *Server) paymentSuccess(c *gin.Context) {
	consultationID, err := uuid.Parse(c.Query("consultationId"))
	if err != nil {
		badRequest(c, "consultationId", err)
		return
	}
	b, err := s.svc.Payments.ConfirmSuccess(c.Request.Context(), actorFrom(c), consultationID, c.Query("session_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBooking(*b))
}

// POST /api/payments/webhook: подпись проверяется по сырому телу.
func (s *Server) paymentWebhook(c *gin.Context) {
	if s.cfg.Webhooks == nil {
		abortWithError(c, apperr.New(apperr.CodeNotFound, "webhooks are not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "body", err)
		return
	}
	ev, err := s.cfg.Webhooks.ParseWebhook(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	b, err := s.svc.Payments.HandleWebhook(c.Request.Context(), ev)
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := gin.H{"received": true}
	if b != nil {
		resp["booking_id"] = b.ID
	}
	c.JSON(http.StatusOK, resp)
}
