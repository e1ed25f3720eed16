package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус модерации консультации.
type ConsultationStatus string

const (
	ConsultationStatusDraft    ConsultationStatus = "draft"
	ConsultationStatusPending  ConsultationStatus = "pending"
	ConsultationStatusApproved ConsultationStatus = "approved"
	ConsultationStatusRejected ConsultationStatus = "rejected"
)

// consultations
type Consultation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Title       string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text;not null"`

	// Цена в целых единицах валюты, в шлюз уходит price*100.
	Price int64 `gorm:"not null"`

	// Может быть как абсолютным URL, так и путём относительно origin.
	CoverImageURL string `gorm:"type:varchar(1024)"`

	CategoryID uuid.UUID `gorm:"type:uuid;not null;index"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index"`

	Status ConsultationStatus `gorm:"type:varchar(32);not null;index"`

	// Агрегаты рейтинга: сумма оценок и число оценённых бронирований.
	TotalRating int64 `gorm:"not null;default:0"`
	TotalVotes  int64 `gorm:"not null;default:0"`

	NumberOfClients int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Owner    *User     `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (c *Consultation) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// AverageRating: 0 без оценок, иначе сумма / количество.
func (c Consultation) AverageRating() float64 {
	if c.TotalVotes <= 0 {
		return 0
	}
	return float64(c.TotalRating) / float64(c.TotalVotes)
}
