package models

import "time"

type Dealer struct {
	ID                   uint       `gorm:"primaryKey;comment:dealer id"`
	Name                 string     `gorm:"type:text;not null;comment:dealer display name"`
	Code                 *string    `gorm:"type:text;uniqueIndex;comment:distributor dealer code"`
	Region               *string    `gorm:"type:text;index;comment:sales region"`
	HomepageURL          string     `gorm:"type:text;comment:dealer homepage"`
	BackendType          string     `gorm:"type:text;not null;index;comment:normalized CMS backend"`
	InventoryURLTemplate string     `gorm:"type:text;comment:inventory URL template"`
	TemplateScope        string     `gorm:"type:text;not null;default:relative;comment:absolute or relative template"`
	Active               bool       `gorm:"not null;default:true;comment:included in scrape jobs"`
	LastScrapedAt        *time.Time `gorm:"type:timestamptz;comment:last successful scrape"`
}

func (Dealer) TableName() string {
	return "dealers"
}
