package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id primitive.ObjectID)
}

// Base carries the identity and timestamps shared by all stored documents.
type Base struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID.IsZero() {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = primitive.NewObjectID()
}

func (m *Base) SetID(id primitive.ObjectID) {
	m.ID = id
}

// Touch sets UpdatedAt, and CreatedAt when it is still zero.
func (m *Base) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

func NewBase(now time.Time) Base {
	return Base{
		ID:        primitive.NewObjectID(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
