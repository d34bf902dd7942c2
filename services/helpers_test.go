package services

import (
	"context"
	"sync"

	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/payments"
	"github.com/Kariqs/greenleaf-api/testutil"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
}

func (p *recordingPublisher) Publish(topic, key string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	statuses []models.DeliveryStatus
}

func (b *recordingBroadcaster) BroadcastStatus(_ uint, status models.DeliveryStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []payments.IntentRequest
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req payments.IntentRequest) (*payments.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &payments.PaymentIntent{
		ID:           "pi_" + req.Metadata["orderId"],
		ClientSecret: "pi_" + req.Metadata["orderId"] + "_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}, nil
}

type recordingNotifier struct {
	orders []uint
}

func (n *recordingNotifier) OrderConfirmed(order *models.Order, _ *models.User) error {
	n.orders = append(n.orders, order.ID)
	return nil
}

func newOrderService(db *gorm.DB, publisher *recordingPublisher) *OrderService {
	return NewOrderService(db, DefaultPricing(), publisher, testutil.Logger())
}

func placeInput(lines ...LineRequest) PlaceOrderInput {
	return PlaceOrderInput{Items: lines, DeliveryAddress: "1 Long Street, Cape Town"}
}

func reloadOrder(db *gorm.DB, id uint) models.Order {
	var order models.Order
	db.First(&order, id)
	return order
}
