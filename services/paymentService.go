package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Kariqs/greenleaf-api/events"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/payments"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier tells a customer that their order has been paid for.
type Notifier interface {
	OrderConfirmed(order *models.Order, user *models.User) error
}

type PaymentIntentInput struct {
	PlaceOrderInput
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type PaymentIntentResult struct {
	ClientSecret string `json:"clientSecret"`
	OrderID      uint   `json:"orderId"`
}

type WebhookOutcome string

const (
	WebhookConfirmed WebhookOutcome = "confirmed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookCancelled WebhookOutcome = "cancelled"
	WebhookIgnored   WebhookOutcome = "ignored"
)

type PaymentService struct {
	DB        *gorm.DB
	Orders    *OrderService
	Gateway   payments.Gateway
	Currency  string
	Publisher events.Publisher
	Notifier  Notifier
	Logger    *logrus.Logger
}

// CreatePaymentIntent stores a PENDING_PAYMENT order priced server-side, then asks
// the gateway for a client secret. Stock is checked here but only taken once the
// payment succeeds.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID uint, in PaymentIntentInput) (*PaymentIntentResult, error) {
	order, err := s.Orders.create(ctx, userID, in.PlaceOrderInput, models.OrderPendingPayment, false)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.Currency
	}

	metadata := make(map[string]string, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["orderId"] = strconv.FormatUint(uint64(order.ID), 10)
	metadata["userId"] = strconv.FormatUint(uint64(userID), 10)

	intent, err := s.Gateway.CreatePaymentIntent(ctx, payments.IntentRequest{
		Amount:         payments.MinorUnits(order.FinalAmount),
		Currency:       currency,
		Metadata:       metadata,
		IdempotencyKey: fmt.Sprintf("order-%d", order.ID),
	})
	if err != nil {
		s.Logger.WithError(err).WithField("order_id", order.ID).Error("Failed to create payment intent")
		return nil, fmt.Errorf("create payment intent for order %d: %w", order.ID, err)
	}

	if err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("payment_intent_id", intent.ID).Error; err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"order_id":          order.ID,
		"payment_intent_id": intent.ID,
		"amount":            intent.Amount,
		"currency":          currency,
	}).Info("Payment intent created")

	return &PaymentIntentResult{ClientSecret: intent.ClientSecret, OrderID: order.ID}, nil
}

// HandleWebhookEvent reconciles a verified gateway event with local state.
func (s *PaymentService) HandleWebhookEvent(ctx context.Context, event payments.Event) (WebhookOutcome, error) {
	log := s.Logger.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

	switch event.Type {
	case payments.EventPaymentSucceeded:
		intent, err := event.PaymentIntent()
		if err != nil {
			return "", err
		}
		return s.ConfirmPayment(ctx, event, intent)

	case payments.EventPaymentFailed:
		intent, err := event.PaymentIntent()
		if err != nil {
			return "", err
		}
		log.WithFields(logrus.Fields{
			"payment_intent_id": intent.ID,
			"order_id":          intent.Metadata["orderId"],
		}).Warn("Payment failed, order left pending payment")
		return WebhookIgnored, nil

	default:
		log.Info("Unhandled webhook event type")
		return WebhookIgnored, nil
	}
}

var errAlreadyProcessed = errors.New("webhook event already processed")

// ConfirmPayment moves the order PENDING_PAYMENT -> CONFIRMED exactly once per
// event id and takes its stock if that has not happened yet. When stock ran out
// since the intent was created the order is cancelled instead.
func (s *PaymentService) ConfirmPayment(ctx context.Context, event payments.Event, intent *payments.PaymentIntent) (WebhookOutcome, error) {
	log := s.Logger.WithFields(logrus.Fields{"event_id": event.ID, "payment_intent_id": intent.ID})

	orderID, err := s.resolveOrderID(ctx, intent)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("Payment succeeded for an unknown order")
			return WebhookIgnored, nil
		}
		return "", err
	}
	log = log.WithField("order_id", orderID)

	outcome := WebhookConfirmed
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recordEvent(tx, event, orderID); err != nil {
			return err
		}

		var order models.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderPendingPayment).
			Update("status", models.OrderConfirmed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			outcome = WebhookDuplicate
			return nil
		}

		if order.StockCommitted {
			return nil
		}
		for _, item := range order.Items {
			if err := decrementStock(tx, item.ProductID, "", item.Quantity); err != nil {
				return err
			}
		}
		return tx.Model(&models.Order{}).Where("id = ?", orderID).Update("stock_committed", true).Error
	})

	var stockErr *InsufficientStockError
	switch {
	case errors.Is(err, errAlreadyProcessed):
		log.Info("Duplicate webhook event ignored")
		return WebhookDuplicate, nil
	case errors.As(err, &stockErr):
		log.WithError(err).Warn("Stock ran out before payment confirmation, cancelling order")
		return s.cancelUnfulfillable(ctx, event, orderID)
	case err != nil:
		return "", err
	}

	if outcome == WebhookDuplicate {
		log.Info("Order no longer pending payment, event recorded")
		return outcome, nil
	}

	log.Info("Payment confirmed")
	s.afterConfirm(ctx, orderID)
	return outcome, nil
}

func (s *PaymentService) cancelUnfulfillable(ctx context.Context, event payments.Event, orderID uint) (WebhookOutcome, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := recordEvent(tx, event, orderID); err != nil {
			return err
		}
		return tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderPendingPayment).
			Update("status", models.OrderCancelled).Error
	})
	if errors.Is(err, errAlreadyProcessed) {
		return WebhookDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	publish(s.Publisher, s.Logger, events.OrderStatusChangedTopic, orderID, events.StatusChange{
		ID:   orderID,
		From: string(models.OrderPendingPayment),
		To:   string(models.OrderCancelled),
	})
	return WebhookCancelled, nil
}

func (s *PaymentService) afterConfirm(ctx context.Context, orderID uint) {
	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		s.Logger.WithError(err).WithField("order_id", orderID).Error("Failed to reload confirmed order")
		return
	}

	publish(s.Publisher, s.Logger, events.OrderConfirmedTopic, order.ID, order)

	if s.Notifier == nil {
		return
	}
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, order.UserID).Error; err != nil {
		s.Logger.WithError(err).WithField("order_id", orderID).Warn("Unable to load customer for confirmation email")
		return
	}
	if err := s.Notifier.OrderConfirmed(order, &user); err != nil {
		s.Logger.WithError(err).WithField("order_id", orderID).Warn("Failed to send order confirmation")
	}
}

// recordEvent inserts the processed-event marker, failing with errAlreadyProcessed on replay.
func recordEvent(tx *gorm.DB, event payments.Event, orderID uint) error {
	var seen int64
	if err := tx.Model(&models.ProcessedWebhookEvent{}).Where("event_id = ?", event.ID).Count(&seen).Error; err != nil {
		return err
	}
	if seen > 0 {
		return errAlreadyProcessed
	}

	record := models.ProcessedWebhookEvent{
		EventID:   event.ID,
		EventType: event.Type,
		OrderID:   orderID,
		Payload:   datatypes.JSON(event.Raw),
	}
	if err := tx.Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errAlreadyProcessed
		}
		return err
	}
	return nil
}

func (s *PaymentService) resolveOrderID(ctx context.Context, intent *payments.PaymentIntent) (uint, error) {
	if raw, ok := intent.Metadata["orderId"]; ok {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err == nil {
			var count int64
			if err := s.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return 0, err
			}
			if count > 0 {
				return uint(id), nil
			}
		}
	}

	if intent.ID == "" {
		return 0, fmt.Errorf("payment intent without id: %w", ErrNotFound)
	}

	var order models.Order
	err := s.DB.WithContext(ctx).Select("id").Where("payment_intent_id = ?", intent.ID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("payment intent %s: %w", intent.ID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}
