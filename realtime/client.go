package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Kariqs/greenleaf-api/geo"
	"github.com/Kariqs/greenleaf-api/models"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	hub    *Hub
	userID uint
	role   models.Role
	logger *logrus.Logger

	// joined is only touched by readPump.
	joined map[uint]bool

	mu     sync.Mutex
	closed bool
}

// enqueue queues msg without blocking. It reports false when the buffer is full.
func (c *Client) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(message string) {
	c.enqueue(Message{Event: EventError, Data: map[string]string{"message": message}})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).WithField("client_id", c.id).Error("WebSocket error")
			}
			return
		}

		var frame inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("Malformed message")
			continue
		}

		switch frame.Event {
		case EventJoinDelivery:
			c.handleJoin(frame.Data)
		case EventUpdateLocation:
			c.handleLocation(frame.Data)
		default:
			c.sendError("Unknown event " + frame.Event)
		}
	}
}

func (c *Client) handleJoin(raw json.RawMessage) {
	var payload struct {
		DeliveryID uint `json:"deliveryId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.DeliveryID == 0 {
		c.sendError("deliveryId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	if err := c.hub.authorizer.CanJoin(ctx, payload.DeliveryID, c.userID, c.role); err != nil {
		c.logger.WithFields(logrus.Fields{
			"client_id":   c.id,
			"user_id":     c.userID,
			"delivery_id": payload.DeliveryID,
		}).WithError(err).Warn("Join refused")
		c.sendError("Not allowed to follow this delivery")
		return
	}

	c.joined[payload.DeliveryID] = true
	select {
	case c.hub.join <- subscription{client: c, deliveryID: payload.DeliveryID}:
	case <-c.hub.done:
	}
}

func (c *Client) handleLocation(raw json.RawMessage) {
	var payload struct {
		DeliveryID uint       `json:"deliveryId"`
		Location   *geo.Point `json:"location"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.DeliveryID == 0 {
		c.sendError("deliveryId is required")
		return
	}
	if !c.joined[payload.DeliveryID] {
		c.sendError("Join the delivery before sending locations")
		return
	}
	if !validLocation(payload.Location) {
		c.sendError("Invalid coordinates")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	if err := c.hub.authorizer.CanPublish(ctx, payload.DeliveryID, c.userID); err != nil {
		c.logger.WithFields(logrus.Fields{
			"client_id":   c.id,
			"user_id":     c.userID,
			"delivery_id": payload.DeliveryID,
		}).WithError(err).Warn("Location update refused")
		c.sendError("Only the assigned driver can update this delivery")
		return
	}

	c.hub.publish(roomMessage{
		deliveryID: payload.DeliveryID,
		message: Message{
			Event: EventLocationUpdate,
			Data: LocationUpdate{
				DeliveryID: payload.DeliveryID,
				Lat:        payload.Location.Lat,
				Lng:        payload.Location.Lng,
				Timestamp:  time.Now().UTC(),
			},
		},
		except: c,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.WithError(err).WithField("client_id", c.id).Debug("WebSocket write failed")
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
