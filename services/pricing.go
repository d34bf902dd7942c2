package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type LineRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

type Totals struct {
	TotalAmount decimal.Decimal `json:"totalAmount"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	FinalAmount decimal.Decimal `json:"finalAmount"`
}

// Pricing holds the fee and tax applied to every order.
type Pricing struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		DeliveryFee: decimal.NewFromFloat(5),
		TaxRate:     decimal.NewFromFloat(0.08),
	}
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Totals derives fee, tax and final amount from the sum of line totals.
// Tax is rounded half away from zero to cents.
func (p Pricing) Totals(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	fee := p.DeliveryFee.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)

	return Totals{
		TotalAmount: subtotal,
		DeliveryFee: fee,
		TaxAmount:   tax,
		FinalAmount: subtotal.Add(fee).Add(tax),
	}
}

// mergeLines folds repeated products into one line and sorts by product id so
// concurrent orders touch product rows in the same order.
func mergeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items: %w", ErrInvalidInput)
	}

	byProduct := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || line.Quantity <= 0 {
			return nil, fmt.Errorf("item for product %d has quantity %d: %w", line.ProductID, line.Quantity, ErrInvalidInput)
		}
		byProduct[line.ProductID] += line.Quantity
	}

	merged := make([]LineRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, LineRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })

	return merged, nil
}
