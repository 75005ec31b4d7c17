package mapper

import (
	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	return &entity.User{
		Id:               u.Id,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		VerificationCode: u.VerificationCode,
		IsVerified:       u.IsVerified,
		VerifiedAt:       u.VerifiedAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (m *UserMapper) ToModel(u *entity.User) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Id:               u.Id,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		VerificationCode: u.VerificationCode,
		IsVerified:       u.IsVerified,
		VerifiedAt:       u.VerifiedAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
