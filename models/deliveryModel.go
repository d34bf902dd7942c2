package models

import (
	"time"

	"gorm.io/gorm"
)

type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "ASSIGNED"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryAssigned, DeliveryInTransit, DeliveryDelivered:
		return true
	}
	return false
}

// CanTransition allows exactly one step forward: ASSIGNED -> IN_TRANSIT -> DELIVERED.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	switch s {
	case DeliveryAssigned:
		return to == DeliveryInTransit
	case DeliveryInTransit:
		return to == DeliveryDelivered
	}
	return false
}

type Delivery struct {
	gorm.Model
	OrderID          uint           `json:"orderId" gorm:"uniqueIndex;not null"`
	DriverID         uint           `json:"driverId" gorm:"index;not null"`
	Status           DeliveryStatus `json:"status" gorm:"size:16;not null"`
	EstimatedArrival *time.Time     `json:"estimatedArrival,omitempty"`
	ActualArrival    *time.Time     `json:"actualArrival,omitempty"`
	Driver           *DriverProfile `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Order            *Order         `json:"order,omitempty"`
}
