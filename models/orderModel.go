package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderPreparing      OrderStatus = "PREPARING"
	OrderReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// orderTransitions lists the statuses reachable from each status. CANCELLED is
// reachable from every non-terminal status and is added in CanTransition.
// PENDING_PAYMENT only leaves through a confirmed payment or a cancellation.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderConfirmed, OrderPreparing},
	OrderConfirmed:      {OrderPreparing, OrderReadyForPickup, OrderOutForDelivery},
	OrderPreparing:      {OrderReadyForPickup, OrderOutForDelivery},
	OrderReadyForPickup: {OrderOutForDelivery},
	OrderOutForDelivery: {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPendingPayment, OrderConfirmed, OrderPreparing,
		OrderReadyForPickup, OrderOutForDelivery, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() || !to.Valid() {
		return false
	}
	if to == OrderCancelled {
		return true
	}
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	gorm.Model
	UserID          uint            `json:"userId" gorm:"index;not null"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee" gorm:"type:decimal(12,2);not null"`
	TaxAmount       decimal.Decimal `json:"taxAmount" gorm:"type:decimal(12,2);not null"`
	FinalAmount     decimal.Decimal `json:"finalAmount" gorm:"type:decimal(12,2);not null"`
	DeliveryAddress string          `json:"deliveryAddress"`
	DeliveryLat     *float64        `json:"deliveryLat,omitempty"`
	DeliveryLng     *float64        `json:"deliveryLng,omitempty"`
	Notes           string          `json:"notes"`
	Status          OrderStatus     `json:"status" gorm:"size:32;index;not null"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty" gorm:"index"`
	StockCommitted  bool            `json:"-" gorm:"not null;default:false"`
	User            *User           `json:"user,omitempty"`
	Items           []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery        *Delivery       `json:"delivery,omitempty"`
}

type OrderItem struct {
	gorm.Model
	OrderID   uint            `json:"orderId" gorm:"index;not null"`
	ProductID uint            `json:"productId" gorm:"index;not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	Product   *Product        `json:"product,omitempty"`
}

// Dispatchable reports whether a driver can still be assigned to an order in this status.
func (s OrderStatus) Dispatchable() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReadyForPickup:
		return true
	}
	return false
}
