package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id               uuid.UUID
	Email            string
	PasswordHash     string
	VerificationCode string
	IsVerified       bool
	VerifiedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
