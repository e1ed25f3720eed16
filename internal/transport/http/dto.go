package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/service"
)

type categoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

func toCategory(c model.Category) categoryDTO {
	return categoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

type consultationDTO struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	CoverImageURL   string    `json:"cover_image_url,omitempty"`
	CategoryID      uuid.UUID `json:"category_id"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Status          string    `json:"status"`
	TotalRating     int64     `json:"total_rating"`
	TotalVotes      int64     `json:"total_votes"`
	AverageRating   float64   `json:"average_rating"`
	NumberOfClients int64     `json:"number_of_clients"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toConsultation(c model.Consultation) consultationDTO {
	return consultationDTO{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Price:           c.Price,
		CoverImageURL:   c.CoverImageURL,
		CategoryID:      c.CategoryID,
		OwnerID:         c.OwnerID,
		Status:          string(c.Status),
		TotalRating:     c.TotalRating,
		TotalVotes:      c.TotalVotes,
		AverageRating:   c.AverageRating(),
		NumberOfClients: c.NumberOfClients,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type bookingDTO struct {
	ID                 uuid.UUID        `json:"id"`
	ClientID           uuid.UUID        `json:"client_id"`
	ConsultationID     uuid.UUID        `json:"consultation_id"`
	Consultation       *consultationDTO `json:"consultation,omitempty"`
	Status             string           `json:"status"`
	AmountMinor        int64            `json:"amount_minor"`
	Currency           string           `json:"currency"`
	BookedAt           time.Time        `json:"booked_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	Rating             *int             `json:"rating,omitempty"`
	ProblemDescription *string          `json:"problem_description,omitempty"`
}

func toBooking(b model.Booking) bookingDTO {
	out := bookingDTO{
		ID:                 b.ID,
		ClientID:           b.ClientID,
		ConsultationID:     b.ConsultationID,
		Status:             string(b.Status),
		AmountMinor:        b.AmountMinor,
		Currency:           b.Currency,
		BookedAt:           b.BookedAt,
		CompletedAt:        b.CompletedAt,
		Rating:             b.Rating,
		ProblemDescription: b.ProblemDescription,
	}
	if b.Consultation != nil {
		c := toConsultation(*b.Consultation)
		out.Consultation = &c
	}
	return out
}

type userDTO struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name,omitempty"`
	Bio              string    `json:"bio,omitempty"`
	Specialization   string    `json:"specialization,omitempty"`
	ConsultantStatus string    `json:"consultant_status"`
	Roles            []string  `json:"roles,omitempty"`
}

func toUser(u model.User) userDTO {
	return userDTO{
		ID:               u.ID,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		Bio:              u.Bio,
		Specialization:   u.Specialization,
		ConsultantStatus: string(u.ConsultantStatus),
	}
}

func toProfile(p service.Profile) userDTO {
	out := toUser(*p.User)
	out.Roles = p.Roles
	return out
}

type ratingDTO struct {
	BookingID      uuid.UUID `json:"booking_id"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	Rating         *int      `json:"rating"`
	TotalRating    int64     `json:"total_rating"`
	TotalVotes     int64     `json:"total_votes"`
	AverageRating  float64   `json:"average_rating"`
}

func toRating(r service.RatingResult) ratingDTO {
	return ratingDTO(r)
}
