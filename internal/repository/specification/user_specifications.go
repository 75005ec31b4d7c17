package specification

import "gorm.io/gorm"

type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}

type VerifiedUsers struct{}

func (s VerifiedUsers) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_verified = ?", true)
}
