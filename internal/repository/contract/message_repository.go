package contract

import (
	"context"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/repository/specification"
)

type MessageRepository interface {
	// Save inserts the message unless its id is already stored. On a duplicate the
	// stored row is copied into msg and isExisting is true.
	Save(ctx context.Context, msg *entity.Message) (isExisting bool, err error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// FirstContentByRole maps each thread to the content of its earliest message
	// with role. Threads without one are absent.
	FirstContentByRole(ctx context.Context, threadIds []string, role string) (map[string]string, error)
	DeleteByThreadId(ctx context.Context, threadId string) error
}
