package repository

import "gorm.io/gorm"

// Repositories: набор репозиториев поверх одного *gorm.DB. Внутри транзакции
// собирается заново из tx.
type Repositories struct {
	Users         UserRepository
	Categories    CategoryRepository
	Consultations ConsultationRepository
	Bookings      BookingRepository
	Events        EventRepository
}

func NewGormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:         NewGormUserRepository(db),
		Categories:    NewGormCategoryRepository(db),
		Consultations: NewGormConsultationRepository(db),
		Bookings:      NewGormBookingRepository(db),
		Events:        NewGormEventRepository(db),
	}
}
