package models

import "time"

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSuccess   = "success"
	JobStatusPartial   = "partial"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type ScrapeJob struct {
	ID           string     `gorm:"primaryKey;type:uuid;comment:job id"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;comment:creation time"`
	StartedAt    *time.Time `gorm:"type:timestamptz;comment:start time"`
	CompletedAt  *time.Time `gorm:"type:timestamptz;comment:completion time"`
	Model        string     `gorm:"type:text;not null;index;comment:target model"`
	Region       *string    `gorm:"type:text;comment:region filter"`
	Status       string     `gorm:"type:text;not null;index;comment:job status"`
	TargetCount  int        `gorm:"not null;default:0;comment:number of tasks"`
	SuccessCount int        `gorm:"not null;default:0;comment:tasks ended success"`
	FailCount    int        `gorm:"not null;default:0;comment:tasks ended failed"`
	EmptyCount   int        `gorm:"not null;default:0;comment:tasks ended empty"`
	Notes        *string    `gorm:"type:text;comment:operator notes"`
}

func (ScrapeJob) TableName() string {
	return "scrape_jobs"
}
