package mapper

import (
	"encoding/json"

	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/model"

	"gorm.io/datatypes"
)

type ThreadMapper struct{}

func NewThreadMapper() *ThreadMapper {
	return &ThreadMapper{}
}

func (m *ThreadMapper) ThreadToEntity(t *model.Thread) *entity.Thread {
	if t == nil {
		return nil
	}
	return &entity.Thread{
		ThreadId:  t.ThreadId,
		OwnerId:   t.OwnerId,
		Title:     t.Title,
		IsActive:  t.IsActive,
		EndedAt:   t.EndedAt,
		Metadata:  decodeJSON(t.Metadata),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (m *ThreadMapper) ThreadToModel(t *entity.Thread) *model.Thread {
	if t == nil {
		return nil
	}
	title := t.Title
	if title == "" {
		title = model.DefaultThreadTitle
	}
	return &model.Thread{
		ThreadId:  t.ThreadId,
		OwnerId:   t.OwnerId,
		Title:     title,
		IsActive:  t.IsActive,
		EndedAt:   t.EndedAt,
		Metadata:  encodeJSON(t.Metadata),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (m *ThreadMapper) DetectionToEntity(d *model.ThreadDetection) *entity.Detection {
	if d == nil {
		return nil
	}
	return &entity.Detection{
		Id:         d.Id,
		ThreadId:   d.ThreadId,
		RecordedAt: d.RecordedAt,
		Payload:    decodeJSON(d.Payload),
	}
}

func (m *ThreadMapper) DetectionToModel(d *entity.Detection) *model.ThreadDetection {
	if d == nil {
		return nil
	}
	payload := encodeJSON(d.Payload)
	if payload == nil {
		payload = datatypes.JSON("{}")
	}
	return &model.ThreadDetection{
		Id:         d.Id,
		ThreadId:   d.ThreadId,
		RecordedAt: d.RecordedAt,
		Payload:    payload,
	}
}

func (m *ThreadMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}
	return &entity.Message{
		MessageId: msg.MessageId,
		ThreadId:  msg.ThreadId,
		Role:      msg.Role,
		Content:   msg.Content,
		Metadata:  decodeJSON(msg.Metadata),
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ThreadMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}
	return &model.Message{
		MessageId: msg.MessageId,
		ThreadId:  msg.ThreadId,
		Role:      msg.Role,
		Content:   msg.Content,
		Metadata:  encodeJSON(msg.Metadata),
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ThreadMapper) MessagesToEntities(msgs []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(msgs))
	for i, msg := range msgs {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}

func encodeJSON(v map[string]interface{}) datatypes.JSON {
	if len(v) == 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func decodeJSON(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
