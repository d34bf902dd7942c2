package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Kariqs/greenleaf-api/controllers"
	"github.com/Kariqs/greenleaf-api/events"
	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/payments"
	"github.com/Kariqs/greenleaf-api/realtime"
	"github.com/Kariqs/greenleaf-api/services"
	"github.com/Kariqs/greenleaf-api/storage"
	"github.com/Kariqs/greenleaf-api/testutil"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct{}

func (stubGateway) CreatePaymentIntent(_ context.Context, req payments.IntentRequest) (*payments.PaymentIntent, error) {
	id := "pi_" + req.Metadata["orderId"]
	return &payments.PaymentIntent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Currency: req.Currency, Metadata: req.Metadata}, nil
}

type memoryImages struct {
	objects map[string][]byte
}

func (m *memoryImages) Upload(_ context.Context, key, _ string, body io.Reader) (*storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.objects[key] = data
	return &storage.Object{Key: key, Location: "https://images.test/" + key}, nil
}

func (m *memoryImages) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://images.test/" + key + "?signature=abc", nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	tokens *utils.TokenIssuer
	images *memoryImages
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	logger := testutil.Logger()
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	publisher := events.NopPublisher{}
	images := &memoryImages{objects: map[string][]byte{}}

	orders := services.NewOrderService(db, services.DefaultPricing(), publisher, logger)
	deliveries := services.NewDeliveryService(db, publisher, logger, 30)
	hub := realtime.NewHub(deliveries, logger)
	deliveries.Broadcaster = hub

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := gin.New()
	Register(router, tokens, Controllers{
		Auth:    &controllers.AuthController{Auth: &services.AuthService{DB: db, Tokens: tokens, Logger: logger}, Logger: logger},
		Product: &controllers.ProductController{DB: db, Images: images, Logger: logger},
		Order:   &controllers.OrderController{Orders: orders, Deliveries: deliveries, Logger: logger},
		Payment: &controllers.PaymentController{
			Payments: &services.PaymentService{
				DB:        db,
				Orders:    orders,
				Gateway:   stubGateway{},
				Currency:  "zar",
				Publisher: publisher,
				Logger:    logger,
			},
			WebhookSecret: webhookSecret,
			Logger:        logger,
		},
		Delivery: &controllers.DeliveryController{Deliveries: deliveries, Logger: logger},
		Default: &controllers.DefaultController{
			Zone:            geo.Zone{Center: geo.Point{Lat: -33.9249, Lng: 18.4241}, RadiusKm: 25},
			AverageSpeedKmh: 30,
		},
		Hub: hub,
	})

	return &testServer{router: router, db: db, tokens: tokens, images: images}
}

func (s *testServer) token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := s.tokens.Generate(user)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func (s *testServer) orderStatus(t *testing.T, id uint) models.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, s.db.First(&order, id).Error)
	return order.Status
}

func TestHealthAndCoverage(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", body["status"])

	w, body = s.do(t, http.MethodGet, "/zones/coverage?lat=-33.93&lng=18.43", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["withinZone"])

	w, body = s.do(t, http.MethodGet, "/zones/coverage?lat=-26.2041&lng=28.0473", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["withinZone"])

	w, _ = s.do(t, http.MethodGet, "/zones/coverage?lat=north", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "Jane@Example.com",
		"password":  "supersecret",
		"firstName": "Jane",
		"lastName":  "Doe",
		"role":      "CUSTOMER",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, body["token"])

	w, _ = s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":     "jane@example.com",
		"password":  "supersecret",
		"firstName": "Jane",
		"lastName":  "Again",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "jane@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "jane@example.com", "password": "supersecret"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	w, body = s.do(t, http.MethodGet, "/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", user["email"])

	w, _ = s.do(t, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrderRoutes(t *testing.T) {
	s := newTestServer(t)
	vendor := testutil.CreateUser(t, s.db, "vendor@example.com", models.RoleVendor)
	customer := testutil.CreateUser(t, s.db, "customer@example.com", models.RoleCustomer)
	product := testutil.CreateProduct(t, s.db, vendor.ID, "Sour Diesel", "15.99", 10)
	customerToken := s.token(t, customer)

	w, _ := s.do(t, http.MethodPost, "/orders", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/orders", customerToken, gin.H{
		"items":           []gin.H{{"productId": product.ID, "quantity": 2}},
		"deliveryAddress": "1 Long Street",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := body["order"].(map[string]interface{})
	assert.Equal(t, "PENDING", order["status"])
	assert.Equal(t, "39.54", order["finalAmount"])
	assert.Equal(t, 8, testutil.ProductStock(t, s.db, product.ID))

	w, body = s.do(t, http.MethodPost, "/orders", customerToken, gin.H{
		"items":           []gin.H{{"productId": product.ID, "quantity": 50}},
		"deliveryAddress": "1 Long Street",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(8), body["available"])

	w, _ = s.do(t, http.MethodGet, "/orders", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPut, fmt.Sprintf("/orders/%v/status", order["ID"]), customerToken, gin.H{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(t, http.MethodGet, "/orders/my-orders", customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["orders"], 1)
}

func TestAssignDeliveryTwice(t *testing.T) {
	s := newTestServer(t)
	vendor := testutil.CreateUser(t, s.db, "vendor@example.com", models.RoleVendor)
	customer := testutil.CreateUser(t, s.db, "customer@example.com", models.RoleCustomer)
	admin := testutil.CreateUser(t, s.db, "admin@example.com", models.RoleAdmin)
	_, driver := testutil.CreateDriver(t, s.db, "driver@example.com")
	product := testutil.CreateProduct(t, s.db, vendor.ID, "Blue Dream", "20.00", 5)

	w, body := s.do(t, http.MethodPost, "/orders", s.token(t, customer), gin.H{
		"items":           []gin.H{{"productId": product.ID, "quantity": 1}},
		"deliveryAddress": "1 Long Street",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := body["order"].(map[string]interface{})["ID"]
	path := fmt.Sprintf("/orders/%v/assign-delivery", orderID)

	adminToken := s.token(t, admin)
	w, body = s.do(t, http.MethodPost, path, adminToken, gin.H{"driverId": driver.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "ASSIGNED", body["delivery"].(map[string]interface{})["status"])

	w, _ = s.do(t, http.MethodPost, path, adminToken, gin.H{"driverId": driver.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	s.db.Model(&models.Delivery{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func signedWebhook(t *testing.T, s *testServer, eventID string, orderID uint, secret string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(gin.H{
		"id":   eventID,
		"type": payments.EventPaymentSucceeded,
		"data": gin.H{"object": gin.H{
			"id":       fmt.Sprintf("pi_%d", orderID),
			"status":   "succeeded",
			"metadata": gin.H{"orderId": fmt.Sprint(orderID)},
		}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set(payments.SignatureHeader, payments.SignatureHeaderValue(time.Now().Unix(), payload, secret))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	vendor := testutil.CreateUser(t, s.db, "vendor@example.com", models.RoleVendor)
	customer := testutil.CreateUser(t, s.db, "customer@example.com", models.RoleCustomer)
	product := testutil.CreateProduct(t, s.db, vendor.ID, "Sour Diesel", "15.99", 10)

	w, body := s.do(t, http.MethodPost, "/payments/create-payment-intent", s.token(t, customer), gin.H{
		"items":           []gin.H{{"productId": product.ID, "quantity": 2}},
		"deliveryAddress": "1 Long Street",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, body["clientSecret"])
	orderID := uint(body["orderId"].(float64))
	assert.Equal(t, models.OrderPendingPayment, s.orderStatus(t, orderID))
	assert.Equal(t, 10, testutil.ProductStock(t, s.db, product.ID))

	w = signedWebhook(t, s, "evt_forged", orderID, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.OrderPendingPayment, s.orderStatus(t, orderID))

	w = signedWebhook(t, s, "evt_1", orderID, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"outcome":"confirmed"`)
	assert.Equal(t, models.OrderConfirmed, s.orderStatus(t, orderID))
	assert.Equal(t, 8, testutil.ProductStock(t, s.db, product.ID))

	w = signedWebhook(t, s, "evt_1", orderID, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"duplicate"`)
	assert.Equal(t, 8, testutil.ProductStock(t, s.db, product.ID))
}

func TestProductImageUpload(t *testing.T) {
	s := newTestServer(t)
	vendor := testutil.CreateUser(t, s.db, "vendor@example.com", models.RoleVendor)
	other := testutil.CreateUser(t, s.db, "other@example.com", models.RoleVendor)
	product := testutil.CreateProduct(t, s.db, vendor.ID, "Sour Diesel", "15.99", 10)

	upload := func(token, contentType string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="leaf.png"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/products/%d/upload-image", product.ID), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, upload(s.token(t, other), "image/png").Code)
	assert.Equal(t, http.StatusBadRequest, upload(s.token(t, vendor), "application/pdf").Code)

	w := upload(s.token(t, vendor), "image/png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, s.images.objects, 1)

	w, body := s.do(t, http.MethodGet, fmt.Sprintf("/products/%d/images", product.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	images := body["images"].([]interface{})
	require.Len(t, images, 1)
	assert.Contains(t, images[0].(map[string]interface{})["url"], "signature=abc")

	w, body = s.do(t, http.MethodGet, fmt.Sprintf("/products/%d", product.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, body["product"].(map[string]interface{})["imageUrl"], "https://images.test/")
}

func TestDeleteProductDeactivates(t *testing.T) {
	s := newTestServer(t)
	vendor := testutil.CreateUser(t, s.db, "vendor@example.com", models.RoleVendor)
	other := testutil.CreateUser(t, s.db, "other@example.com", models.RoleVendor)
	product := testutil.CreateProduct(t, s.db, vendor.ID, "Sour Diesel", "15.99", 10)
	path := fmt.Sprintf("/products/%d", product.ID)

	w, _ := s.do(t, http.MethodDelete, path, s.token(t, other), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodDelete, path, s.token(t, vendor), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body := s.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["products"])

	w, body = s.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["product"].(map[string]interface{})["isActive"])

	w, body = s.do(t, http.MethodPut, path, s.token(t, vendor), gin.H{"isActive": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["product"].(map[string]interface{})["isActive"])
}
