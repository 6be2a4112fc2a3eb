package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return isAllowedOrigin(r.Header.Get("Origin")) },
}

// wsClient is a connected WebSocket client streaming broadcast events,
// grounded on api/websocket.go's read/write pump pair.
type wsClient struct {
	conn         *websocket.Conn
	send         chan BroadcastEvent
	subscription *Subscription
	broadcaster  *Broadcaster
	mu           sync.Mutex
}

// subscriptionRequest is a client's JSON subscribe message.
type subscriptionRequest struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

func (s *Server[U]) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan BroadcastEvent, 256), broadcaster: s.broadcaster}
	go client.writePump()
	go client.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.cleanup()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("api: websocket read: %v", err)
			}
			break
		}
		var req subscriptionRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		if req.Type == "subscribe" {
			c.mu.Lock()
			if c.subscription != nil {
				c.broadcaster.Unsubscribe(c.subscription)
			}
			types := make([]EventType, 0, len(req.Events))
			for _, name := range req.Events {
				types = append(types, EventType(name))
			}
			c.subscription = c.broadcaster.Subscribe(types)
			sub := c.subscription
			c.mu.Unlock()
			go c.pipeFrom(sub)
		}
	}
}

// pipeFrom forwards a subscription's channel into the client's send queue
// until the subscription is closed (by cleanup unsubscribing it).
func (c *wsClient) pipeFrom(sub *Subscription) {
	for ev := range sub.Channel {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscription != nil {
		c.broadcaster.Unsubscribe(c.subscription)
		c.subscription = nil
	}
}

