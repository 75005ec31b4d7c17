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

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ThreadMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewThreadMapper(),
	}
}

func (r *MessageRepositoryImpl) Save(ctx context.Context, msg *entity.Message) (bool, error) {
	m := r.mapper.MessageToModel(msg)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		var existing model.Message
		if err := r.db.WithContext(ctx).Where("message_id = ?", msg.MessageId).First(&existing).Error; err != nil {
			return false, err
		}
		*msg = *r.mapper.MessageToEntity(&existing)
		return true, nil
	}

	*msg = *r.mapper.MessageToEntity(m)
	return false, nil
}

func (r *MessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	var m model.Message
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.MessageToEntity(&m), nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.MessagesToEntities(models), nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) FirstContentByRole(ctx context.Context, threadIds []string, role string) (map[string]string, error) {
	firsts := make(map[string]string, len(threadIds))
	if len(threadIds) == 0 {
		return firsts, nil
	}

	earliest := r.db.Model(&model.Message{}).
		Select("thread_id, MIN(created_at) AS first_at").
		Where("role = ? AND thread_id IN ?", role, threadIds).
		Group("thread_id")

	var rows []struct {
		ThreadId string
		Content  string
	}
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.thread_id, m.content").
		Joins("JOIN (?) AS f ON f.thread_id = m.thread_id AND f.first_at = m.created_at", earliest).
		Where("m.role = ?", role).
		Order("m.thread_id, m.message_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// Messages sharing the first timestamp resolve to the lowest message id.
	for _, row := range rows {
		if _, seen := firsts[row.ThreadId]; !seen {
			firsts[row.ThreadId] = row.Content
		}
	}
	return firsts, nil
}

func (r *MessageRepositoryImpl) DeleteByThreadId(ctx context.Context, threadId string) error {
	return r.db.WithContext(ctx).Where("thread_id = ?", threadId).Delete(&model.Message{}).Error
}
