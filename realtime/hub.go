// Package realtime relays driver locations and delivery status to websocket
// clients grouped in per-delivery rooms.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024
	authTimeout    = 5 * time.Second
)

// Client -> server events.
const (
	EventJoinDelivery   = "join-delivery"
	EventUpdateLocation = "update-location"
)

// Server -> client events.
const (
	EventJoined                = "joined-delivery"
	EventLocationUpdate        = "location-update"
	EventDeliveryStatusChanged = "delivery-status-changed"
	EventError                 = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS allow-list and the bearer token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Authorizer decides who may join and who may publish to a delivery room.
type Authorizer interface {
	CanJoin(ctx context.Context, deliveryID, userID uint, role models.Role) error
	CanPublish(ctx context.Context, deliveryID, userID uint) error
}

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type LocationUpdate struct {
	DeliveryID uint      `json:"deliveryId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Timestamp  time.Time `json:"timestamp"`
}

type StatusUpdate struct {
	DeliveryID uint                  `json:"deliveryId"`
	Status     models.DeliveryStatus `json:"status"`
}

type subscription struct {
	client     *Client
	deliveryID uint
}

type roomMessage struct {
	deliveryID uint
	message    Message
	except     *Client
}

type Hub struct {
	rooms      map[uint]map[*Client]bool
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan subscription
	broadcast  chan roomMessage
	done       chan struct{}
	mutex      sync.RWMutex
	authorizer Authorizer
	logger     *logrus.Logger
}

func NewHub(authorizer Authorizer, logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
		authorizer: authorizer,
		logger:     logger,
	}
}

// Run owns room membership until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mutex.Lock()
		for client := range h.clients {
			client.close()
		}
		h.clients = make(map[*Client]bool)
		h.rooms = make(map[uint]map[*Client]bool)
		h.mutex.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id":    client.id,
				"user_id":      client.userID,
				"client_count": count,
			}).Info("Client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for id, members := range h.rooms {
					delete(members, client)
					if len(members) == 0 {
						delete(h.rooms, id)
					}
				}
				client.close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id":    client.id,
				"client_count": count,
			}).Info("Client disconnected")

		case sub := <-h.join:
			h.mutex.Lock()
			if h.clients[sub.client] {
				if h.rooms[sub.deliveryID] == nil {
					h.rooms[sub.deliveryID] = make(map[*Client]bool)
				}
				h.rooms[sub.deliveryID][sub.client] = true
			}
			h.mutex.Unlock()
			sub.client.enqueue(Message{Event: EventJoined, Data: gin.H{"deliveryId": sub.deliveryID}})

		case msg := <-h.broadcast:
			h.mutex.RLock()
			var slow []*Client
			for client := range h.rooms[msg.deliveryID] {
				if client == msg.except {
					continue
				}
				if !client.enqueue(msg.message) {
					slow = append(slow, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range slow {
				h.logger.WithField("client_id", client.id).Warn("Client send buffer full, disconnecting")
				go h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) publish(msg roomMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("delivery_id", msg.deliveryID).Warn("Broadcast channel full, dropping message")
	}
}

// BroadcastStatus tells everyone watching a delivery about its new status.
func (h *Hub) BroadcastStatus(deliveryID uint, status models.DeliveryStatus) {
	h.publish(roomMessage{
		deliveryID: deliveryID,
		message: Message{
			Event: EventDeliveryStatusChanged,
			Data:  StatusUpdate{DeliveryID: deliveryID, Status: status},
		},
	})
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(deliveryID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[deliveryID])
}

// HandleWebSocket upgrades an authenticated request. The caller identity is
// read with identify, which the router wires to the auth middleware.
func (h *Hub) HandleWebSocket(identify func(*gin.Context) (uint, models.Role, bool)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, role, ok := identify(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
			return
		}

		conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
		if err != nil {
			h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			conn:   conn,
			send:   make(chan Message, 64),
			hub:    h,
			userID: userID,
			role:   role,
			joined: make(map[uint]bool),
			logger: h.logger,
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func validLocation(p *geo.Point) bool {
	return p != nil && p.Valid()
}
