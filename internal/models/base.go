package models

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the identity shared by all persisted documents. IDs are
// opaque UUID strings stored directly as the Mongo _id.
type Base struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`
}

// GenIDIfEmpty assigns a fresh ID unless one is already set.
func (m *Base) GenIDIfEmpty() {
	if m.ID == "" {
		m.GenID()
	}
}

// GenID assigns a fresh ID.
func (m *Base) GenID() {
	m.ID = uuid.NewString()
}

func NewBase() Base {
	return Base{ID: uuid.NewString()}
}

// Timestamps records creation/modification times; UTC throughout.
type Timestamps struct {
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
