package implementation

import (
	"context"
	"time"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/mapper"
	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/repository/contract"
	"vision-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
)

type DetectionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ThreadMapper
}

func NewDetectionRepository(db *gorm.DB) contract.DetectionRepository {
	return &DetectionRepositoryImpl{
		db:     db,
		mapper: mapper.NewThreadMapper(),
	}
}

// Append is a single INSERT so concurrent appends to one thread never overwrite each other.
func (r *DetectionRepositoryImpl) Append(ctx context.Context, detection *entity.Detection) error {
	if detection.RecordedAt.IsZero() {
		detection.RecordedAt = time.Now().UTC()
	}
	m := r.mapper.DetectionToModel(detection)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*detection = *r.mapper.DetectionToEntity(m)
	return nil
}

func (r *DetectionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Detection, error) {
	var models []*model.ThreadDetection
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Detection, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DetectionToEntity(m)
	}
	return entities, nil
}

func (r *DetectionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.ThreadDetection{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DetectionRepositoryImpl) DeleteByThreadId(ctx context.Context, threadId string) error {
	return r.db.WithContext(ctx).Where("thread_id = ?", threadId).Delete(&model.ThreadDetection{}).Error
}
