package models

import (
	"time"

	"github.com/lib/pq"
)

// CacheEntry memoizes an advisor answer for a keyword set.
type CacheEntry struct {
	ID               string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	QuestionHash     string         `gorm:"column:question_hash;type:varchar(64);uniqueIndex" json:"question_hash"`
	Keywords         pq.StringArray `gorm:"column:keywords;type:text[]" json:"keywords"`
	QuestionSample   string         `gorm:"column:question_sample;type:text" json:"question_sample"`
	Answer           string         `gorm:"column:answer;type:text" json:"answer"`
	HitCount         int64          `gorm:"column:hit_count;not null;default:0" json:"hit_count"`
	LikeCount        int64          `gorm:"column:like_count;not null;default:0" json:"like_count"`
	DislikeCount     int64          `gorm:"column:dislike_count;not null;default:0" json:"dislike_count"`
	SatisfactionRate float64        `gorm:"column:satisfaction_rate;not null;default:0" json:"satisfaction_rate"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	ExpiresAt        time.Time      `gorm:"column:expires_at;type:timestamptz;index" json:"expires_at"`
}

func (CacheEntry) TableName() string { return "chat_cache_entries" }
