package database

import (
	"gorm.io/gorm"

	"github.com/visitdesk/visitdesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Host{},
		&models.User{},
		&models.Visit{},
		&models.NotificationJob{},
	)
}

// SeedData populates the default service accounts the gateways require: a
// building admin, a reception desk, and the kiosk service account.
func SeedData(db *gorm.DB) error {
	users := []models.User{
		{
			BaseModel: models.BaseModel{ID: "admin"},
			Name:      "Building Administrator",
			Email:     "admin@visitdesk.local",
			Role:      models.RoleAdmin,
			Active:    true,
		},
		{
			BaseModel: models.BaseModel{ID: "reception"},
			Name:      "Front Desk",
			Email:     "reception@visitdesk.local",
			Role:      models.RoleReception,
			Active:    true,
		},
		{
			BaseModel: models.BaseModel{ID: "kiosk"},
			Name:      "Lobby Kiosk",
			Email:     "kiosk@visitdesk.local",
			Role:      models.RoleKiosk,
			Active:    true,
		},
	}

	for _, user := range users {
		if err := db.Where(models.User{BaseModel: models.BaseModel{ID: user.ID}}).
			Attrs(user).
			FirstOrCreate(&models.User{}).Error; err != nil {
			return err
		}
	}

	return nil
}
