package model

import (
	"time"
)

// Document 用户上传的资料，出题时作为参考
type Document struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	ReferenceID string    `gorm:"size:500;not null;uniqueIndex" json:"reference_id"` // OSS object key
	ContentType string    `gorm:"size:100" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}
