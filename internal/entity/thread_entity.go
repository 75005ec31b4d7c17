package entity

import (
	"time"

	"github.com/google/uuid"
)

type Thread struct {
	ThreadId  string
	OwnerId   uuid.UUID
	Title     string
	IsActive  bool
	EndedAt   *time.Time
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Detection struct {
	Id         uuid.UUID
	ThreadId   string
	RecordedAt time.Time
	Payload    map[string]interface{}
}
