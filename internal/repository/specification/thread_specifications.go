package specification

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ByThreadID struct {
	ThreadID string
}

func (s ByThreadID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("thread_id = ?", s.ThreadID)
}

type OwnedBy struct {
	OwnerID uuid.UUID
}

func (s OwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_id = ?", s.OwnerID)
}

type ActiveThreads struct{}

func (s ActiveThreads) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", s.Role)
}

// HasMetadataKey matches rows whose JSON metadata column carries the key.
type HasMetadataKey struct {
	Key string
}

func (s HasMetadataKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(datatypes.JSONQuery("metadata").HasKey(s.Key))
}

// MetadataEquals matches rows whose JSON metadata holds Value under Key.
type MetadataEquals struct {
	Key   string
	Value interface{}
}

func (s MetadataEquals) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(datatypes.JSONQuery("metadata").Equals(s.Value, s.Key))
}
