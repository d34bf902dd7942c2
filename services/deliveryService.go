package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kariqs/greenleaf-api/events"
	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultETA is used when either end of the trip has no coordinates.
const DefaultETA = 30 * time.Minute

// StatusBroadcaster pushes delivery status changes to connected clients.
type StatusBroadcaster interface {
	BroadcastStatus(deliveryID uint, status models.DeliveryStatus)
}

type DeliveryService struct {
	DB              *gorm.DB
	Publisher       events.Publisher
	Broadcaster     StatusBroadcaster
	Logger          *logrus.Logger
	AverageSpeedKmh float64
	Now             func() time.Time
}

func NewDeliveryService(db *gorm.DB, publisher events.Publisher, logger *logrus.Logger, averageSpeedKmh float64) *DeliveryService {
	return &DeliveryService{
		DB:              db,
		Publisher:       publisher,
		Logger:          logger,
		AverageSpeedKmh: averageSpeedKmh,
		Now:             time.Now,
	}
}

func (s *DeliveryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Assign creates the single delivery of an order and sends the order out.
func (s *DeliveryService) Assign(ctx context.Context, orderID, driverID uint) (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items.Product").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
			}
			return err
		}

		var driver models.DriverProfile
		if err := tx.First(&driver, driverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("driver %d: %w", driverID, ErrNotFound)
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Delivery{}).Where("order_id = ?", order.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("order %d: %w", order.ID, ErrDeliveryAlreadyAssigned)
		}

		if !order.Status.Dispatchable() {
			return fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrInvalidTransition)
		}

		eta := s.now().Add(s.estimateTravel(tx, &order))
		delivery = models.Delivery{
			OrderID:          order.ID,
			DriverID:         driver.ID,
			Status:           models.DeliveryAssigned,
			EstimatedArrival: &eta,
		}
		if err := tx.Create(&delivery).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("order %d: %w", order.ID, ErrDeliveryAlreadyAssigned)
			}
			return err
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", models.OrderOutForDelivery)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("order %d: %w", order.ID, ErrStatusConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"delivery_id":       delivery.ID,
		"order_id":          orderID,
		"driver_id":         driverID,
		"estimated_arrival": delivery.EstimatedArrival,
	}).Info("Delivery assigned")

	assigned, err := s.load(ctx, delivery.ID)
	if err != nil {
		return nil, err
	}
	publish(s.Publisher, s.Logger, events.DeliveryAssignedTopic, assigned.ID, assigned)
	return assigned, nil
}

// estimateTravel uses the straight-line distance from the vendor of the first
// item to the customer. Unknown coordinates fall back to DefaultETA.
func (s *DeliveryService) estimateTravel(tx *gorm.DB, order *models.Order) time.Duration {
	if order.DeliveryLat == nil || order.DeliveryLng == nil || len(order.Items) == 0 || order.Items[0].Product == nil {
		return DefaultETA
	}

	var vendor models.VendorProfile
	err := tx.Where("user_id = ?", order.Items[0].Product.VendorID).First(&vendor).Error
	if err != nil || vendor.Latitude == nil || vendor.Longitude == nil {
		return DefaultETA
	}

	from := geo.Point{Lat: *vendor.Latitude, Lng: *vendor.Longitude}
	to := geo.Point{Lat: *order.DeliveryLat, Lng: *order.DeliveryLng}
	if d := geo.EstimateTravelTime(geo.Distance(from, to), s.AverageSpeedKmh); d > 0 {
		return d
	}
	return DefaultETA
}

// AdvanceStatus moves a delivery one step along ASSIGNED -> IN_TRANSIT -> DELIVERED.
// Only the assigned driver may do so.
func (s *DeliveryService) AdvanceStatus(ctx context.Context, deliveryID, driverUserID uint, to models.DeliveryStatus) (*models.Delivery, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%q: %w", to, ErrInvalidStatus)
	}

	var from models.DeliveryStatus
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var delivery models.Delivery
		if err := tx.Preload("Driver").First(&delivery, deliveryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("delivery %d: %w", deliveryID, ErrNotFound)
			}
			return err
		}
		if delivery.Driver == nil || delivery.Driver.UserID != driverUserID {
			return fmt.Errorf("delivery %d: %w", deliveryID, ErrForbidden)
		}
		if !delivery.Status.CanTransition(to) {
			return fmt.Errorf("%s -> %s: %w", delivery.Status, to, ErrInvalidTransition)
		}
		from = delivery.Status

		updates := map[string]interface{}{"status": to}
		if to == models.DeliveryDelivered {
			updates["actual_arrival"] = s.now()
		}
		result := tx.Model(&models.Delivery{}).
			Where("id = ? AND status = ?", delivery.ID, delivery.Status).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("delivery %d: %w", deliveryID, ErrStatusConflict)
		}

		if to != models.DeliveryDelivered {
			return nil
		}

		if err := tx.Model(&models.DriverProfile{}).
			Where("id = ?", delivery.DriverID).
			UpdateColumn("total_deliveries", gorm.Expr("total_deliveries + ?", 1)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).
			Where("id = ? AND status NOT IN ?", delivery.OrderID, []models.OrderStatus{models.OrderDelivered, models.OrderCancelled}).
			Update("status", models.OrderDelivered).Error
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"delivery_id": deliveryID,
		"from":        from,
		"to":          to,
	}).Info("Delivery status updated")

	if s.Broadcaster != nil {
		s.Broadcaster.BroadcastStatus(deliveryID, to)
	}
	publish(s.Publisher, s.Logger, events.DeliveryStatusChangedTopic, deliveryID, events.StatusChange{
		ID:   deliveryID,
		From: string(from),
		To:   string(to),
	})

	return s.load(ctx, deliveryID)
}

func (s *DeliveryService) load(ctx context.Context, id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	err := s.DB.WithContext(ctx).
		Preload("Order.Items.Product").
		Preload("Driver.User").
		First(&delivery, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("delivery %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func canView(delivery *models.Delivery, userID uint, role models.Role) bool {
	if role == models.RoleAdmin {
		return true
	}
	if delivery.Driver != nil && delivery.Driver.UserID == userID {
		return true
	}
	return delivery.Order != nil && delivery.Order.UserID == userID
}

// Get returns a delivery to its customer, its driver or an admin.
func (s *DeliveryService) Get(ctx context.Context, id, userID uint, role models.Role) (*models.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(delivery, userID, role) {
		return nil, fmt.Errorf("delivery %d: %w", id, ErrForbidden)
	}
	return delivery, nil
}

func (s *DeliveryService) driverFor(ctx context.Context, userID uint) (*models.DriverProfile, error) {
	var driver models.DriverProfile
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("driver profile for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (s *DeliveryService) ListForDriver(ctx context.Context, userID uint) ([]models.Delivery, error) {
	driver, err := s.driverFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	var deliveries []models.Delivery
	err = s.DB.WithContext(ctx).
		Preload("Order.Items.Product").
		Where("driver_id = ?", driver.ID).
		Order("created_at desc, id desc").
		Find(&deliveries).Error
	return deliveries, err
}

// SetAvailability toggles whether a driver takes new work. Going offline with a
// delivery still open is refused.
func (s *DeliveryService) SetAvailability(ctx context.Context, userID uint, available bool) (*models.DriverProfile, error) {
	driver, err := s.driverFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !available {
		var open int64
		if err := s.DB.WithContext(ctx).Model(&models.Delivery{}).
			Where("driver_id = ? AND status <> ?", driver.ID, models.DeliveryDelivered).
			Count(&open).Error; err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, fmt.Errorf("driver %d has %d open deliveries: %w", driver.ID, open, ErrDriverBusy)
		}
	}

	if err := s.DB.WithContext(ctx).Model(driver).Update("is_available", available).Error; err != nil {
		return nil, err
	}
	driver.IsAvailable = available
	return driver, nil
}

func (s *DeliveryService) ListAvailableDrivers(ctx context.Context) ([]models.DriverProfile, error) {
	var drivers []models.DriverProfile
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("is_available = ?", true).
		Order("rating desc, total_deliveries desc").
		Find(&drivers).Error
	return drivers, err
}

// CanJoin allows the order owner, the assigned driver and admins into a delivery room.
func (s *DeliveryService) CanJoin(ctx context.Context, deliveryID, userID uint, role models.Role) error {
	var delivery models.Delivery
	err := s.DB.WithContext(ctx).Preload("Order").Preload("Driver").First(&delivery, deliveryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !canView(&delivery, userID, role) {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrForbidden)
	}
	return nil
}

// CanPublish allows only the assigned driver of an undelivered delivery to post locations.
func (s *DeliveryService) CanPublish(ctx context.Context, deliveryID, userID uint) error {
	var delivery models.Delivery
	err := s.DB.WithContext(ctx).Preload("Driver").First(&delivery, deliveryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if delivery.Driver == nil || delivery.Driver.UserID != userID {
		return fmt.Errorf("delivery %d: %w", deliveryID, ErrForbidden)
	}
	if delivery.Status == models.DeliveryDelivered {
		return fmt.Errorf("delivery %d already delivered: %w", deliveryID, ErrForbidden)
	}
	return nil
}
