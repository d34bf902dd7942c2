package initializers

import (
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func SyncDatabase(db *gorm.DB, logger *logrus.Logger) error {
	err := db.AutoMigrate(
		&models.User{}, &models.CustomerProfile{}, &models.VendorProfile{}, &models.DriverProfile{},
		&models.Product{}, &models.ProductImage{},
		&models.Order{}, &models.OrderItem{},
		&models.Delivery{},
		&models.ProcessedWebhookEvent{},
	)
	if err != nil {
		return err
	}
	logger.Info("Database synced successfully.")
	return nil
}
