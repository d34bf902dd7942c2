package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleVendor   Role = "VENDOR"
	RoleDriver   Role = "DRIVER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Email     string `json:"email" gorm:"uniqueIndex;size:191;not null"`
	Password  string `json:"-" gorm:"not null"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role" gorm:"size:16;not null;default:CUSTOMER"`
	IsActive  bool   `json:"isActive" gorm:"not null;default:true"`

	CustomerProfile *CustomerProfile `json:"customerProfile,omitempty"`
	VendorProfile   *VendorProfile   `json:"vendorProfile,omitempty"`
	DriverProfile   *DriverProfile   `json:"driverProfile,omitempty"`
}

type CustomerProfile struct {
	gorm.Model
	UserID      uint       `json:"userId" gorm:"uniqueIndex;not null"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Verified    bool       `json:"verified"`
}

type VendorProfile struct {
	gorm.Model
	UserID        uint     `json:"userId" gorm:"uniqueIndex;not null"`
	BusinessName  string   `json:"businessName"`
	BusinessType  string   `json:"businessType"`
	LicenseNumber string   `json:"licenseNumber"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}

type DriverProfile struct {
	gorm.Model
	UserID          uint    `json:"userId" gorm:"uniqueIndex;not null"`
	LicenseNumber   string  `json:"licenseNumber"`
	VehicleType     string  `json:"vehicleType"`
	VehiclePlate    string  `json:"vehiclePlate"`
	IsAvailable     bool    `json:"isAvailable" gorm:"not null;default:false"`
	Rating          float64 `json:"rating" gorm:"not null;default:5"`
	TotalDeliveries int     `json:"totalDeliveries" gorm:"not null;default:0"`
	User            *User   `json:"user,omitempty"`
}

// UserSummary is the public part of a user embedded in auth responses.
type UserSummary struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}
