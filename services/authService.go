package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

type RegisterInput struct {
	Email     string      `json:"email" binding:"required,email"`
	Password  string      `json:"password" binding:"required,min=8"`
	FirstName string      `json:"firstName" binding:"required"`
	LastName  string      `json:"lastName" binding:"required"`
	Phone     string      `json:"phone"`
	Role      models.Role `json:"role"`

	DateOfBirth *time.Time `json:"dateOfBirth"`

	BusinessName  string   `json:"businessName"`
	BusinessType  string   `json:"businessType"`
	LicenseNumber string   `json:"licenseNumber"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude     *float64 `json:"longitude" binding:"omitempty,longitude"`

	VehicleType  string `json:"vehicleType"`
	VehiclePlate string `json:"vehiclePlate"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

type AuthService struct {
	DB     *gorm.DB
	Tokens *utils.TokenIssuer
	Logger *logrus.Logger
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func comparePasswords(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Register creates the user and the profile that goes with its role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() || role == models.RoleAdmin {
		return nil, fmt.Errorf("role %q cannot be registered: %w", role, ErrInvalidInput)
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Password:  hashed,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      role,
		IsActive:  true,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateEmail
		}

		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail
			}
			return err
		}

		switch role {
		case models.RoleCustomer:
			return tx.Create(&models.CustomerProfile{UserID: user.ID, DateOfBirth: in.DateOfBirth}).Error
		case models.RoleVendor:
			return tx.Create(&models.VendorProfile{
				UserID:        user.ID,
				BusinessName:  in.BusinessName,
				BusinessType:  in.BusinessType,
				LicenseNumber: in.LicenseNumber,
				Address:       in.Address,
				Latitude:      in.Latitude,
				Longitude:     in.Longitude,
			}).Error
		case models.RoleDriver:
			return tx.Create(&models.DriverProfile{
				UserID:        user.ID,
				LicenseNumber: in.LicenseNumber,
				VehicleType:   in.VehicleType,
				VehiclePlate:  in.VehiclePlate,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.Logger.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return &AuthResult{Token: token, User: user.Summary()}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := comparePasswords(user.Password, in.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account deactivated: %w", ErrInvalidCredentials)
	}

	token, err := s.Tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Token: token, User: user.Summary()}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Preload("CustomerProfile").
		Preload("VendorProfile").
		Preload("DriverProfile").
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
