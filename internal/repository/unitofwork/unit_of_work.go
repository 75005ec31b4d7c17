package unitofwork

import (
	"context"

	"vision-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ThreadRepository() contract.ThreadRepository
	DetectionRepository() contract.DetectionRepository
	MessageRepository() contract.MessageRepository
}
