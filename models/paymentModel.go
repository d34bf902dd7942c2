package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProcessedWebhookEvent records gateway events that have already been applied.
type ProcessedWebhookEvent struct {
	gorm.Model
	EventID   string         `json:"eventId" gorm:"uniqueIndex;size:191;not null"`
	EventType string         `json:"eventType" gorm:"size:64"`
	OrderID   uint           `json:"orderId" gorm:"index"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
}
