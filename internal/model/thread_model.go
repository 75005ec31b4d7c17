package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultThreadTitle = "New Session"

type Thread struct {
	ThreadId  string         `gorm:"type:varchar(64);primaryKey"`
	OwnerId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title     string         `gorm:"type:text;not null;default:'New Session'"`
	IsActive  bool           `gorm:"not null;default:true;index"`
	EndedAt   *time.Time     `gorm:"index"`
	Metadata  datatypes.JSON
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (Thread) TableName() string {
	return "threads"
}

// ThreadDetection is one entry of a thread's append-only detection log.
type ThreadDetection struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ThreadId   string         `gorm:"type:varchar(64);not null;index"`
	RecordedAt time.Time      `gorm:"not null;index"`
	Payload    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
}

func (ThreadDetection) TableName() string {
	return "thread_detections"
}

func (d *ThreadDetection) BeforeCreate(tx *gorm.DB) error {
	if d.Id == uuid.Nil {
		d.Id = uuid.New()
	}
	return nil
}
