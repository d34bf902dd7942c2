package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrStatusConflict          = errors.New("status changed concurrently")
	ErrDeliveryAlreadyAssigned = errors.New("delivery already assigned for this order")
	ErrDriverBusy              = errors.New("driver has an active delivery")
	ErrDuplicateEmail          = errors.New("user already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
)

// InsufficientStockError identifies the product that cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID uint
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (product %d): requested %d, available %d",
		e.Name, e.ProductID, e.Requested, e.Available)
}
