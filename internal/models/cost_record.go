package models

import (
	"time"

	"gorm.io/datatypes"
)

// CostRecord is one completion call. Rows are append-only.
type CostRecord struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID *string        `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id,omitempty"`
	TokenCount     int            `gorm:"column:token_count" json:"token_count"`
	Cost           float64        `gorm:"column:cost;type:numeric(14,8)" json:"cost"`
	Model          string         `gorm:"column:model;type:text;index" json:"model"`
	Usage          datatypes.JSON `gorm:"column:usage;type:jsonb" json:"usage"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (CostRecord) TableName() string { return "chat_cost_records" }

// CostSummary aggregates cost records per model.
type CostSummary struct {
	Model      string  `json:"model"`
	Calls      int64   `json:"calls"`
	TokenCount int64   `json:"token_count"`
	Cost       float64 `json:"cost"`
}
