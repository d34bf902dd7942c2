package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kariqs/greenleaf-api/events"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PlaceOrderInput struct {
	Items           []LineRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress string        `json:"deliveryAddress" binding:"required"`
	DeliveryLat     *float64      `json:"deliveryLat" binding:"omitempty,latitude"`
	DeliveryLng     *float64      `json:"deliveryLng" binding:"omitempty,longitude"`
	Notes           string        `json:"notes"`
}

type OrderService struct {
	DB        *gorm.DB
	Pricing   Pricing
	Publisher events.Publisher
	Logger    *logrus.Logger
}

func NewOrderService(db *gorm.DB, pricing Pricing, publisher events.Publisher, logger *logrus.Logger) *OrderService {
	return &OrderService{DB: db, Pricing: pricing, Publisher: publisher, Logger: logger}
}

// Place creates a PENDING order and takes its items out of stock in one transaction.
func (s *OrderService) Place(ctx context.Context, userID uint, in PlaceOrderInput) (*models.Order, error) {
	order, err := s.create(ctx, userID, in, models.OrderPending, true)
	if err != nil {
		return nil, err
	}

	publish(s.Publisher, s.Logger, events.OrderCreatedTopic, order.ID, order)
	return order, nil
}

// create persists an order priced from current catalog prices. With commit set
// the stock of every line is decremented inside the same transaction.
func (s *OrderService) create(ctx context.Context, userID uint, in PlaceOrderInput, status models.OrderStatus, commit bool) (*models.Order, error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, subtotal, err := reserveItems(tx, lines, commit)
		if err != nil {
			return err
		}

		totals := s.Pricing.Totals(subtotal)
		order = models.Order{
			UserID:          userID,
			TotalAmount:     totals.TotalAmount,
			DeliveryFee:     totals.DeliveryFee,
			TaxAmount:       totals.TaxAmount,
			FinalAmount:     totals.FinalAmount,
			DeliveryAddress: in.DeliveryAddress,
			DeliveryLat:     in.DeliveryLat,
			DeliveryLng:     in.DeliveryLng,
			Notes:           in.Notes,
			Status:          status,
			StockCommitted:  commit,
			Items:           items,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"user_id":      userID,
		"status":       order.Status,
		"final_amount": order.FinalAmount.StringFixed(2),
	}).Info("Order created")

	return s.Get(ctx, order.ID)
}

// reserveItems checks every line against the catalog and snapshots its price.
func reserveItems(tx *gorm.DB, lines []LineRequest, commit bool) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for _, line := range lines {
		var product models.Product
		if err := tx.Where("is_active = ?", true).First(&product, line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Zero, fmt.Errorf("product %d: %w", line.ProductID, ErrProductNotFound)
			}
			return nil, decimal.Zero, err
		}

		if product.Stock < line.Quantity {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			}
		}

		if commit {
			if err := decrementStock(tx, product.ID, product.Name, line.Quantity); err != nil {
				return nil, decimal.Zero, err
			}
		}

		total := LineTotal(product.Price, line.Quantity)
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
			Total:     total,
		})
		subtotal = subtotal.Add(total)
	}

	return items, subtotal, nil
}

// decrementStock is a single conditional UPDATE; zero affected rows means another
// order got there first.
func decrementStock(tx *gorm.DB, productID uint, name string, quantity int) error {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var product models.Product
	if err := tx.Unscoped().Select("id", "name", "stock").First(&product, productID).Error; err != nil {
		return err
	}
	if name == "" {
		name = product.Name
	}
	return &InsufficientStockError{
		ProductID: productID,
		Name:      name,
		Requested: quantity,
		Available: product.Stock,
	}
}

func restock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		if err := tx.Model(&models.Product{}).
			Where("id = ?", item.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
			return err
		}
	}
	return nil
}

func orderDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items.Product").
		Preload("Delivery.Driver.User")
}

func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := orderDetails(s.DB.WithContext(ctx)).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

// Visible reports whether the caller may read the order.
func Visible(order *models.Order, userID uint, role models.Role) bool {
	if role == models.RoleAdmin || order.UserID == userID {
		return true
	}
	return order.Delivery != nil && order.Delivery.Driver != nil && order.Delivery.Driver.UserID == userID
}

func (s *OrderService) GetForUser(ctx context.Context, id, userID uint, role models.Role) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Visible(order, userID, role) {
		return nil, fmt.Errorf("order %d: %w", id, ErrForbidden)
	}
	return order, nil
}

// ListAll returns one page of orders, newest first, with the total count.
func (s *OrderService) ListAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 15
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := orderDetails(s.DB.WithContext(ctx)).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&orders).Error
	return orders, count, err
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := orderDetails(s.DB.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&orders).Error
	return orders, err
}

// UpdateStatus moves an order along the transition table. Vendors may only touch
// orders that contain one of their products. Cancelling gives committed stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, id, actorID uint, role models.Role, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	var from models.OrderStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", id, ErrNotFound)
			}
			return err
		}

		if role == models.RoleVendor {
			var owned int64
			if err := tx.Model(&models.OrderItem{}).
				Joins("JOIN products ON products.id = order_items.product_id").
				Where("order_items.order_id = ? AND products.vendor_id = ?", order.ID, actorID).
				Count(&owned).Error; err != nil {
				return err
			}
			if owned == 0 {
				return fmt.Errorf("order %d: %w", id, ErrForbidden)
			}
		}

		if !order.Status.CanTransition(status) {
			return fmt.Errorf("%s -> %s: %w", order.Status, status, ErrInvalidTransition)
		}
		from = order.Status

		if status == models.OrderCancelled {
			var dispatched int64
			if err := tx.Model(&models.Delivery{}).Where("order_id = ?", order.ID).Count(&dispatched).Error; err != nil {
				return err
			}
			if dispatched > 0 {
				return fmt.Errorf("order %d already has a delivery: %w", id, ErrInvalidTransition)
			}
		}

		updates := map[string]interface{}{"status": status}
		cancelCommitted := status == models.OrderCancelled && order.StockCommitted
		if cancelCommitted {
			updates["stock_committed"] = false
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("order %d: %w", id, ErrStatusConflict)
		}

		if cancelCommitted {
			return restock(tx, order.Items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"order_id": id,
		"from":     from,
		"to":       status,
		"actor_id": actorID,
	}).Info("Order status updated")

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	publish(s.Publisher, s.Logger, events.OrderStatusChangedTopic, id, events.StatusChange{
		ID:   id,
		From: string(from),
		To:   string(status),
	})
	return order, nil
}
