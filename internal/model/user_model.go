package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email            string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash     string    `gorm:"type:varchar(255);not null"`
	VerificationCode string    `gorm:"type:varchar(16)"`
	IsVerified       bool      `gorm:"default:false"`
	VerifiedAt       *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Id == uuid.Nil {
		u.Id = uuid.New()
	}
	return nil
}
