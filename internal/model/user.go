package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Статус заявки пользователя на роль консультанта.
type ConsultantStatus string

const (
	ConsultantStatusNone     ConsultantStatus = "none"
	ConsultantStatusPending  ConsultantStatus = "pending"
	ConsultantStatusApproved ConsultantStatus = "approved"
	ConsultantStatusRejected ConsultantStatus = "rejected"
)

// users
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName string `gorm:"type:varchar(255)"`

	// Профиль консультанта, заполняется вместе с заявкой.
	Bio            string `gorm:"type:text"`
	Specialization string `gorm:"type:varchar(255)"`

	ConsultantStatus ConsultantStatus `gorm:"type:varchar(32);not null;default:'none';index"`

	Blocked bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	if u.ConsultantStatus == "" {
		u.ConsultantStatus = ConsultantStatusNone
	}
	return nil
}
