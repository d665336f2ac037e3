package websocket

import (
	"time"

	"github.com/achlys/whimsical-backend/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must stay below pongWait

	// clients only send pings, so anything larger is misbehaving
	maxMessageSize = 4 * 1024
)

// Conn wraps an upgraded connection.
type Conn struct {
	*websocket.Conn
}

// ReadPump reads client messages until the connection fails.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Notice connection closed unexpectedly", map[string]interface{}{
					"session": c.Session,
					"error":   err.Error(),
				})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		c.Hub.HandleClientMessage(c, message)
	}
}

// WritePump writes queued events in order and pings the peer while idle.
// It returns when Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, event); err != nil {
				logger.Warn("Dropping notice connection after failed write", map[string]interface{}{
					"session": c.Session,
					"error":   err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(messageType, data)
}
