package db

import (
	"dealerwatch/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Dealer{},
		&models.Vehicle{},
		&models.Observation{},
		&models.Listing{},
		&models.PriceEvent{},
		&models.ScrapeJob{},
		&models.ScrapeTask{},
		&models.Upload{},
	)
}
