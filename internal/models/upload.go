package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

type Upload struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement;comment:upload id"`
	UploadedAt   time.Time      `gorm:"type:timestamptz;not null;comment:upload time"`
	Filename     string         `gorm:"type:text;not null;comment:original filename"`
	Status       string         `gorm:"type:text;not null;comment:processing status"`
	RowsIngested int            `gorm:"not null;default:0;comment:rows turned into observations"`
	RowsUpdated  int            `gorm:"not null;default:0;comment:listings touched"`
	Errors       datatypes.JSON `gorm:"type:jsonb;comment:file-level errors"`
	RowErrors    datatypes.JSON `gorm:"type:jsonb;comment:per-row rejections"`
	ProcessedAt  *time.Time     `gorm:"type:timestamptz;comment:processing finish time"`
}

func (Upload) TableName() string {
	return "uploads"
}
