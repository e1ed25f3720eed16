package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/consultation-platform/internal/pagination"
)

// GET /api/me
func (s *Server) me(c *gin.Context) {
	p, err := s.svc.Identity.Profile(c.Request.Context(), actorFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfile(p))
}

// GET /api/me/bookings
func (s *Server) myBookings(c *gin.Context) {
	page, err := s.svc.Bookings.ListMine(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toBooking))
}

// GET /api/me/incoming-bookings
func (s *Server) incomingBookings(c *gin.Context) {
	page, err := s.svc.Bookings.ListForConsultant(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toBooking))
}

// GET /api/me/consultations
func (s *Server) myConsultations(c *gin.Context) {
	page, err := s.svc.Consultations.ListMine(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toConsultation))
}

// POST /api/consultant-requests {"bio": "...", "specialization": "..."}
func (s *Server) submitConsultantRequest(c *gin.Context) {
	var in struct {
		Bio            string `json:"bio"`
		Specialization string `json:"specialization"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "body", err)
		return
	}
	u, err := s.svc.Consultants.SubmitRequest(c.Request.Context(), actorFrom(c), in.Bio, in.Specialization)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUser(*u))
}

// GET /api/admin/consultant-requests
func (s *Server) listConsultantRequests(c *gin.Context) {
	s.renderConsultantRequests(c)
}

// POST /api/admin/consultant-requests/:id/approve
func (s *Server) approveConsultantRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.svc.Consultants.Approve(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	s.renderConsultantRequests(c)
}

// POST /api/admin/consultant-requests/:id/reject
func (s *Server) rejectConsultantRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.svc.Consultants.Reject(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	s.renderConsultantRequests(c)
}

func (s *Server) renderConsultantRequests(c *gin.Context) {
	page, err := s.svc.Consultants.ListRequests(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toUser))
}
