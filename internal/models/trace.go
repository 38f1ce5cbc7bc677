package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatTrace records how a chat request was served. It never holds message content.
type ChatTrace struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID      string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	ConversationID string             `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	ConsentMode    ConsentMode        `bson:"consent_mode,omitempty" json:"consent_mode,omitempty"`
	Source         string             `bson:"source" json:"source"`   // cache|llm
	Outcome        string             `bson:"outcome" json:"outcome"` // answered|cached|pricing|degraded
	Tokens         int                `bson:"tokens,omitempty" json:"tokens,omitempty"`
	LatencyMS      int64              `bson:"latency_ms" json:"latency_ms"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
