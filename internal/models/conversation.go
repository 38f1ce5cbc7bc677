package models

import (
	"time"

	"gorm.io/gorm"
)

type ConsentMode string

const (
	ConsentStandard  ConsentMode = "standard"
	ConsentPrivacy   ConsentMode = "privacy"
	ConsentAnonymous ConsentMode = "anonymous"
)

// StandardRetention is how long a standard-mode conversation is kept.
const StandardRetention = 120 * 24 * time.Hour

func (m ConsentMode) Valid() bool {
	switch m {
	case ConsentStandard, ConsentPrivacy, ConsentAnonymous:
		return true
	}
	return false
}

// RetainsContent reports whether message content is stored (encrypted) under m.
func (m ConsentMode) RetainsContent() bool { return m == ConsentStandard }

// ExpiresAt returns the expiry for a conversation created at now, or nil when
// nothing is retained.
func (m ConsentMode) ExpiresAt(now time.Time) *time.Time {
	if m != ConsentStandard {
		return nil
	}
	t := now.Add(StandardRetention)
	return &t
}

type Conversation struct {
	ID           string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID       *string        `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	SessionToken string         `gorm:"column:session_token;type:text;uniqueIndex" json:"session_token"`
	ConsentMode  ConsentMode    `gorm:"column:consent_mode;type:text" json:"consent_mode"`
	CreatedAt    time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at;type:timestamptz;index" json:"expires_at,omitempty"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Conversation) TableName() string { return "chat_conversations" }

// OwnedBy reports whether userID may continue this conversation. Anonymous
// conversations can be continued by whoever holds the session token.
func (c *Conversation) OwnedBy(userID string) bool {
	if c.UserID == nil {
		return true
	}
	return *c.UserID == userID
}
