package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей платформы и заводит справочник ролей.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Role{},
		&UserRole{},
		&Category{},
		&Consultation{},
		&Booking{},
		&Event{},
	); err != nil {
		return err
	}

	for _, code := range []string{RoleCodeClient, RoleCodeConsultant, RoleCodeAdmin} {
		role := Role{Code: code, Name: code}
		if err := db.Where(Role{Code: code}).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}
