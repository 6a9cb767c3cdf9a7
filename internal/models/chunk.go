package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// ChunkMetadata is a free-form JSONB map attached to every chunk.
// Keys written by the ingestion pipeline: chunk_index, total_chunks,
// char_start, char_end, source_id, estimated_tokens.
type ChunkMetadata map[string]any

// Value implements driver.Valuer so gorm can persist the map as JSONB.
func (m ChunkMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for reading JSONB back into the map.
func (m *ChunkMetadata) Scan(value any) error {
	if value == nil {
		*m = ChunkMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for ChunkMetadata: %T", value)
	}
	return json.Unmarshal(data, m)
}

// KnowledgeChunk is a bounded span of text derived from one knowledge source,
// stored with its embedding vector. Chunks are immutable once written and are
// deleted only as part of source deletion.
type KnowledgeChunk struct {
	ID        string          `json:"id" gorm:"type:char(27);primaryKey"`
	SourceID  string          `json:"source_id" gorm:"type:char(27);not null;index"`
	Title     string          `json:"title" gorm:"type:text"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Source    string          `json:"source" gorm:"type:text;not null"`
	Category  string          `json:"category" gorm:"type:varchar(100);not null;default:'general'"`
	Embedding pgvector.Vector `json:"embedding" gorm:"type:vector(1536);not null"`
	Metadata  ChunkMetadata   `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time       `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	// Relationship
	KnowledgeSource KnowledgeSource `json:"-" gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate hook generates KSUID before inserting
func (c *KnowledgeChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// SearchResult is an ephemeral retrieval result; it is never persisted.
// Similarity is in [0,1]; the text-fallback path reports a fixed 0.5 since no
// true distance is computed there.
type SearchResult struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}
