package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Kariqs/greenleaf-api/middlewares"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/Kariqs/greenleaf-api/testutil"
	"github.com/Kariqs/greenleaf-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	customerID uint = 1
	driverID   uint = 2
	strangerID uint = 3
	deliveryID uint = 10
)

var errNope = errors.New("nope")

type fakeAuthorizer struct{}

func (fakeAuthorizer) CanJoin(_ context.Context, delivery, user uint, role models.Role) error {
	if delivery != deliveryID {
		return errNope
	}
	if user == customerID || user == driverID || role == models.RoleAdmin {
		return nil
	}
	return errNope
}

func (fakeAuthorizer) CanPublish(_ context.Context, delivery, user uint) error {
	if delivery == deliveryID && user == driverID {
		return nil
	}
	return errNope
}

type env struct {
	hub    *Hub
	server *httptest.Server
	tokens *utils.TokenIssuer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := utils.NewTokenIssuer("secret", time.Hour)
	hub := NewHub(fakeAuthorizer{}, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/deliveries", middlewares.RequireAuth(tokens, true), hub.HandleWebSocket(middlewares.CurrentUser))
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &env{hub: hub, server: server, tokens: tokens}
}

func (e *env) dial(t *testing.T, userID uint, role models.Role) *websocket.Conn {
	t.Helper()
	user := models.User{Role: role}
	user.ID = userID
	token, err := e.tokens.Generate(user)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/deliveries?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func join(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	send(t, conn, EventJoinDelivery, map[string]uint{"deliveryId": deliveryID})
	f := read(t, conn)
	require.Equal(t, EventJoined, f.Event)
}

func location(lat, lng float64) map[string]interface{} {
	return map[string]interface{}{
		"deliveryId": deliveryID,
		"location":   map[string]float64{"lat": lat, "lng": lng},
	}
}

func TestRejectsMissingToken(t *testing.T) {
	e := newEnv(t)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/deliveries"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLocationRelayedToOtherMembers(t *testing.T) {
	e := newEnv(t)

	customer := e.dial(t, customerID, models.RoleCustomer)
	driver := e.dial(t, driverID, models.RoleDriver)
	join(t, customer)
	join(t, driver)
	assert.Equal(t, 2, e.hub.RoomSize(deliveryID))

	send(t, driver, EventUpdateLocation, location(-33.93, 18.43))

	f := read(t, customer)
	require.Equal(t, EventLocationUpdate, f.Event)
	var update LocationUpdate
	require.NoError(t, json.Unmarshal(f.Data, &update))
	assert.Equal(t, deliveryID, update.DeliveryID)
	assert.InDelta(t, -33.93, update.Lat, 1e-9)
	assert.InDelta(t, 18.43, update.Lng, 1e-9)

	// The sender does not get its own update back; the next frame it sees is the status change.
	e.hub.BroadcastStatus(deliveryID, models.DeliveryInTransit)
	f = read(t, driver)
	assert.Equal(t, EventDeliveryStatusChanged, f.Event)

	f = read(t, customer)
	require.Equal(t, EventDeliveryStatusChanged, f.Event)
	var status StatusUpdate
	require.NoError(t, json.Unmarshal(f.Data, &status))
	assert.Equal(t, models.DeliveryInTransit, status.Status)
}

func TestJoinRefusedForStranger(t *testing.T) {
	e := newEnv(t)

	stranger := e.dial(t, strangerID, models.RoleCustomer)
	send(t, stranger, EventJoinDelivery, map[string]uint{"deliveryId": deliveryID})

	f := read(t, stranger)
	assert.Equal(t, EventError, f.Event)
	assert.Equal(t, 0, e.hub.RoomSize(deliveryID))
}

func TestAdminMayJoin(t *testing.T) {
	e := newEnv(t)

	admin := e.dial(t, 99, models.RoleAdmin)
	join(t, admin)
	assert.Equal(t, 1, e.hub.RoomSize(deliveryID))
}

func TestPublishRules(t *testing.T) {
	tests := []struct {
		name   string
		userID uint
		role   models.Role
		join   bool
		data   interface{}
	}{
		{"customer cannot publish", customerID, models.RoleCustomer, true, location(-33.93, 18.43)},
		{"driver must join first", driverID, models.RoleDriver, false, location(-33.93, 18.43)},
		{"latitude out of range", driverID, models.RoleDriver, true, location(123, 18.43)},
		{"longitude out of range", driverID, models.RoleDriver, true, location(-33.93, -200)},
		{"missing location", driverID, models.RoleDriver, true, map[string]uint{"deliveryId": deliveryID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			conn := e.dial(t, tt.userID, tt.role)
			if tt.join {
				join(t, conn)
			}

			send(t, conn, EventUpdateLocation, tt.data)
			f := read(t, conn)
			assert.Equal(t, EventError, f.Event)
		})
	}
}

func TestUnknownEvent(t *testing.T) {
	e := newEnv(t)
	conn := e.dial(t, customerID, models.RoleCustomer)

	send(t, conn, "location:update", location(-33.93, 18.43))
	f := read(t, conn)
	assert.Equal(t, EventError, f.Event)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	e := newEnv(t)

	customer := e.dial(t, customerID, models.RoleCustomer)
	join(t, customer)
	require.Equal(t, 1, e.hub.RoomSize(deliveryID))

	customer.Close()
	assert.Eventually(t, func() bool {
		return e.hub.RoomSize(deliveryID) == 0 && e.hub.ClientCount() == 0
	}, 3*time.Second, 20*time.Millisecond)
}
