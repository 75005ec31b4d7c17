package specification

import "gorm.io/gorm"

// Specification narrows a repository query. Repositories apply them in order.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
