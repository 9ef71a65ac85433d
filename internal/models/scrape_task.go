package models

import "time"

// Task terminal states are success, failed, and empty. Only the fetch
// orchestrator writes task rows.
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusRetry   = "retry"
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
	TaskStatusEmpty   = "empty"
)

type ScrapeTask struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement;comment:task id"`
	JobID       string     `gorm:"type:uuid;not null;index;comment:owning job"`
	DealerID    uint       `gorm:"not null;index;comment:dealer id"`
	URL         string     `gorm:"type:text;not null;comment:inventory URL"`
	Attempt     int        `gorm:"not null;default:1;comment:attempt count"`
	Status      string     `gorm:"type:text;not null;comment:task status"`
	HTTPStatus  *int       `gorm:"comment:last HTTP status"`
	Error       *string    `gorm:"type:text;comment:last error"`
	StartedAt   *time.Time `gorm:"type:timestamptz;comment:start time"`
	CompletedAt *time.Time `gorm:"type:timestamptz;comment:completion time"`
}

func (ScrapeTask) TableName() string {
	return "scrape_tasks"
}
