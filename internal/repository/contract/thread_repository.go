package contract

import (
	"context"
	"time"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ThreadRepository lookups return (nil, nil) when nothing matches.
type ThreadRepository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error)

	// End and Reactivate are single conditional updates keyed on (thread_id, owner_id).
	End(ctx context.Context, threadId string, ownerId uuid.UUID, endedAt time.Time) (*entity.Thread, error)
	Reactivate(ctx context.Context, threadId string, ownerId uuid.UUID) (*entity.Thread, error)

	// UpdateTitleIfDefault only overwrites a title nobody has set yet.
	UpdateTitleIfDefault(ctx context.Context, threadId string, title string) (bool, error)
	Delete(ctx context.Context, threadId string) error
}

type DetectionRepository interface {
	Append(ctx context.Context, detection *entity.Detection) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Detection, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByThreadId(ctx context.Context, threadId string) error
}
