package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Feedback string

const (
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
	FeedbackNone    Feedback = "none"
)

func (f Feedback) Valid() bool {
	return f == FeedbackLike || f == FeedbackDislike || f == FeedbackNone
}

// Content is what a stored message holds: Plain, Encrypted or Redacted.
type Content interface{ isContent() }

type Plain struct{ Text string }

type Encrypted struct{ Token string }

type Redacted struct{}

func (Plain) isContent()     {}
func (Encrypted) isContent() {}
func (Redacted) isContent()  {}

// ChatMessage is one conversation turn. Content and EncryptedContent are never
// both set; go through SetContent and StoredContent instead of the columns.
type ChatMessage struct {
	ID               string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID   string    `gorm:"column:conversation_id;type:uuid;index:idx_chat_messages_conv_created,priority:1" json:"conversation_id"`
	Role             Role      `gorm:"column:role;type:text" json:"role"`
	Content          *string   `gorm:"column:content;type:text" json:"-"`
	EncryptedContent *string   `gorm:"column:encrypted_content;type:text" json:"-"`
	Feedback         Feedback  `gorm:"column:feedback;type:text;default:none" json:"feedback"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;index:idx_chat_messages_conv_created,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

func (m *ChatMessage) SetContent(c Content) {
	m.Content, m.EncryptedContent = nil, nil
	switch v := c.(type) {
	case Plain:
		s := v.Text
		m.Content = &s
	case Encrypted:
		s := v.Token
		m.EncryptedContent = &s
	}
}

func (m *ChatMessage) StoredContent() Content {
	switch {
	case m.EncryptedContent != nil:
		return Encrypted{Token: *m.EncryptedContent}
	case m.Content != nil:
		return Plain{Text: *m.Content}
	default:
		return Redacted{}
	}
}
