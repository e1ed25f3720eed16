package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/lifecycle"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/pagination"
)

// GET /api/bookings/:id
func (s *Server) getBooking(c *gin.Context) {
	s.bookingAction(c, s.svc.Bookings.Get)
}

// POST /api/bookings/:id/start
func (s *Server) startWorking(c *gin.Context) {
	s.bookingAction(c, s.svc.Bookings.StartWorking)
}

// POST /api/bookings/:id/request-completion
func (s *Server) requestCompletion(c *gin.Context) {
	s.bookingAction(c, s.svc.Bookings.RequestCompletion)
}

// POST /api/bookings/:id/confirm
func (s *Server) confirmCompletion(c *gin.Context) {
	s.bookingAction(c, s.svc.Bookings.ConfirmCompletion)
}

// POST /api/bookings/:id/report
func (s *Server) reportProblem(c *gin.Context) {
	var in struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	s.bookingAction(c, func(ctx context.Context, a lifecycle.Actor, id uuid.UUID) (*model.Booking, error) {
		return s.svc.Bookings.ReportProblem(ctx, a, id, in.Description)
	})
}

type bookingOp func(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*model.Booking, error)

func (s *Server) bookingAction(c *gin.Context, op bookingOp) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := op(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBooking(*b))
}

// PUT /api/bookings/:id/rating {"rating": 1..5}
func (s *Server) rateBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		Rating int `json:"rating"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	res, err := s.svc.Ratings.AddOrUpdate(c.Request.Context(), actorFrom(c), id, in.Rating)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRating(res))
}

// DELETE /api/bookings/:id/rating
func (s *Server) removeRating(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.svc.Ratings.Remove(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRating(res))
}

// GET /api/admin/disputes
func (s *Server) listDisputes(c *gin.Context) {
	s.renderDisputes(c)
}

// POST /api/admin/disputes/:id/resolve {"approve_completion": bool}
func (s *Server) resolveDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		ApproveCompletion *bool `json:"approve_completion"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	if in.ApproveCompletion == nil {
		badRequest(c, "approve_completion", errMissingField)
		return
	}
	if _, err := s.svc.Disputes.Resolve(c.Request.Context(), actorFrom(c), id, *in.ApproveCompletion); err != nil {
		abortWithError(c, err)
		return
	}
	s.renderDisputes(c)
}

func (s *Server) renderDisputes(c *gin.Context) {
	page, err := s.svc.Disputes.ListDisputes(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toBooking))
}
