package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// SourceStatus tracks a knowledge source through the ingestion pipeline.
// Transitions are one-directional; completed and failed are terminal.
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// KnowledgeSource represents one uploaded file in the knowledge base.
// Using KSUID for time-ordered IDs and better database index performance.
type KnowledgeSource struct {
	ID           string       `json:"id" gorm:"type:char(27);primaryKey"`
	FileName     string       `json:"file_name" gorm:"type:text;not null"`
	OriginalName string       `json:"original_name" gorm:"type:text;not null"`
	FileSize     int64        `json:"file_size" gorm:"not null"`
	FileType     string       `json:"file_type" gorm:"type:varchar(100);not null"`
	Category     string       `json:"category" gorm:"type:varchar(100);not null;default:'general'"`
	Status       SourceStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ChunksCount  int          `json:"chunks_count" gorm:"not null;default:0"`
	ErrorMessage string       `json:"error_message,omitempty" gorm:"type:text"`
	StoragePath  string       `json:"storage_path" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate hook generates KSUID before inserting
func (s *KnowledgeSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = ksuid.New().String()
	}
	return nil
}

// SourceUpdate carries a partial update for a knowledge source record.
// Nil fields are left untouched.
type SourceUpdate struct {
	Status       *SourceStatus `json:"status,omitempty"`
	ChunksCount  *int          `json:"chunks_count,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
}
