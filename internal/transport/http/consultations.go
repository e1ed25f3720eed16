package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/media"
	"github.com/Leganyst/consultation-platform/internal/pagination"
	"github.com/Leganyst/consultation-platform/internal/service"
)

// GET /api/categories
func (s *Server) listCategories(c *gin.Context) {
	items, err := s.svc.Consultations.ListCategories(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]categoryDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toCategory(it))
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/consultations?category_id=&q=&page=&page_size=
func (s *Server) listConsultations(c *gin.Context) {
	var f service.ListFilter
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "category_id", err)
			return
		}
		f.CategoryID = id
	}
	f.Query = c.Query("q")

	page, err := s.svc.Consultations.ListApproved(c.Request.Context(), f, pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toConsultation))
}

// GET /api/consultations/:id
func (s *Server) getConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := s.svc.Consultations.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultation(*out))
}

// POST /api/consultations (multipart: title, description, price, category_id, cover)
func (s *Server) createConsultation(c *gin.Context) {
	in, ok := consultationForm(c)
	if !ok {
		return
	}
	out, err := s.svc.Consultations.Create(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConsultation(*out))
}

// PUT /api/consultations/:id
func (s *Server) updateConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	in, ok := consultationForm(c)
	if !ok {
		return
	}
	out, err := s.svc.Consultations.Update(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultation(*out))
}

// DELETE /api/consultations/:id
func (s *Server) deleteConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Consultations.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/consultations/:id/submit
func (s *Server) submitConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := s.svc.Consultations.SubmitForReview(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConsultation(*out))
}

// consultationForm читает multipart или urlencoded форму. Обложка опциональна.
func consultationForm(c *gin.Context) (service.ConsultationInput, bool) {
	var in service.ConsultationInput
	in.Title = c.PostForm("title")
	in.Description = c.PostForm("description")

	price, err := strconv.ParseInt(c.PostForm("price"), 10, 64)
	if err != nil {
		badRequest(c, "price", err)
		return in, false
	}
	in.Price = price

	categoryID, err := uuid.Parse(c.PostForm("category_id"))
	if err != nil {
		badRequest(c, "category_id", err)
		return in, false
	}
	in.CategoryID = categoryID

	fh, err := c.FormFile("cover")
	if err != nil {
		// без обложки
		return in, true
	}
	if fh.Size > media.MaxCoverSize {
		abortWithError(c, apperr.Newf(apperr.CodeValidation, "cover exceeds %d bytes", media.MaxCoverSize).
			WithMetadata("field", "cover"))
		return in, false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cover", err)
		return in, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, media.MaxCoverSize+1))
	if err != nil {
		badRequest(c, "cover", fmt.Errorf("read cover: %w", err))
		return in, false
	}
	in.Cover = &media.Upload{Filename: fh.Filename, Data: data}
	return in, true
}

// GET /api/admin/consultations/pending
func (s *Server) pendingConsultations(c *gin.Context) {
	s.renderPending(c)
}

// POST /api/admin/consultations/:id/approve
func (s *Server) approveConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.svc.Consultations.Approve(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	s.renderPending(c)
}

// POST /api/admin/consultations/:id/reject
func (s *Server) rejectConsultation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := s.svc.Consultations.Reject(c.Request.Context(), actorFrom(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	s.renderPending(c)
}

// renderPending: админские мутации отвечают обновлённой очередью.
func (s *Server) renderPending(c *gin.Context) {
	page, err := s.svc.Consultations.ListPending(c.Request.Context(), actorFrom(c), pageRequest(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Map(page, toConsultation))
}
