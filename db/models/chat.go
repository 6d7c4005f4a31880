package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type GroupDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	GroupID       string             `bson:"group_id"`
	Name          string             `bson:"name"`
	CharacterKeys []string           `bson:"character_keys"`
	CreatedAt     time.Time          `bson:"created_at"`
}

type MessageDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	GroupID   string             `bson:"group_id"`
	Sender    string             `bson:"sender"` // character key or "user"
	Text      string             `bson:"text"`
	Timestamp time.Time          `bson:"timestamp"`
	Index     int                `bson:"index"` // Position in conversation
}
