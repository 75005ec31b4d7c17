package implementation

import (
	"context"
	"errors"
	"time"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/mapper"
	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/repository/contract"
	"vision-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ThreadRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ThreadMapper
}

func NewThreadRepository(db *gorm.DB) contract.ThreadRepository {
	return &ThreadRepositoryImpl{
		db:     db,
		mapper: mapper.NewThreadMapper(),
	}
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ThreadRepositoryImpl) Create(ctx context.Context, thread *entity.Thread) error {
	m := r.mapper.ThreadToModel(thread)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*thread = *r.mapper.ThreadToEntity(m)
	return nil
}

func (r *ThreadRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error) {
	var m model.Thread
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ThreadToEntity(&m), nil
}

func (r *ThreadRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error) {
	var models []*model.Thread
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Thread, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ThreadToEntity(m)
	}
	return entities, nil
}

func (r *ThreadRepositoryImpl) End(ctx context.Context, threadId string, ownerId uuid.UUID, endedAt time.Time) (*entity.Thread, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("thread_id = ? AND owner_id = ?", threadId, ownerId).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  endedAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindOne(ctx, specification.ByThreadID{ThreadID: threadId}, specification.OwnedBy{OwnerID: ownerId})
}

func (r *ThreadRepositoryImpl) Reactivate(ctx context.Context, threadId string, ownerId uuid.UUID) (*entity.Thread, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("thread_id = ? AND owner_id = ? AND is_active = ?", threadId, ownerId, false).
		Updates(map[string]interface{}{
			"is_active": true,
			"ended_at":  nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	// Zero rows means another request already reactivated it; the fresh read covers both cases.
	return r.FindOne(ctx, specification.ByThreadID{ThreadID: threadId}, specification.OwnedBy{OwnerID: ownerId})
}

func (r *ThreadRepositoryImpl) UpdateTitleIfDefault(ctx context.Context, threadId string, title string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Thread{}).
		Where("thread_id = ? AND title = ?", threadId, model.DefaultThreadTitle).
		Update("title", title)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ThreadRepositoryImpl) Delete(ctx context.Context, threadId string) error {
	return r.db.WithContext(ctx).Where("thread_id = ?", threadId).Delete(&model.Thread{}).Error
}
