package model

import (
	"time"

	"gorm.io/datatypes"
)

type Message struct {
	// MessageId is supplied by the caller and doubles as the idempotency key.
	MessageId string         `gorm:"type:varchar(128);primaryKey"`
	ThreadId  string         `gorm:"type:varchar(64);not null;index:idx_messages_thread_created,priority:1"`
	Role      string         `gorm:"type:varchar(16);not null"`
	Content   string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON
	CreatedAt time.Time      `gorm:"not null;index:idx_messages_thread_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}
