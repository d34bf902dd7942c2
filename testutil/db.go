// Package testutil builds throwaway sqlite databases and fixtures for package tests.
package testutil

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/Kariqs/greenleaf-api/initializers"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// NewDB returns a migrated file-backed sqlite database removed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_foreign_keys=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initializers.SyncDatabase(db, Logger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	t.Helper()
	user := models.User{Email: email, Password: "x", FirstName: "Test", LastName: string(role), Role: role, IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func CreateDriver(t *testing.T, db *gorm.DB, email string) (models.User, models.DriverProfile) {
	t.Helper()
	user := CreateUser(t, db, email, models.RoleDriver)
	driver := models.DriverProfile{UserID: user.ID, LicenseNumber: "DL-" + email, VehicleType: "SCOOTER", IsAvailable: true}
	if err := db.Create(&driver).Error; err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return user, driver
}

func CreateProduct(t *testing.T, db *gorm.DB, vendorID uint, name, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		VendorID: vendorID,
		Name:     name,
		Category: "FLOWER",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func ProductStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}
