package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Client is one WebSocket peer with its channel-prefix subscriptions.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu sync.RWMutex
	subs  map[string]bool
}

// request is a client control message:
//
//	{"type":"SUBSCRIBE","channels":["ind:SMA_20:60s:"]}
//	{"type":"UNSUBSCRIBE","channels":["ind:SMA_20:60s:"]}
//	{"type":"REPLAY","channel":"ind:SMA_20:60s:NSE:26000","from":10,"to":20}
type request struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Channel  string   `json:"channel"`
	From     int64    `json:"from"`
	To       int64    `json:"to"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
		subs: make(map[string]bool),
	}
}

func (c *Client) matches(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for p := range c.subs {
		if strings.HasPrefix(channel, p) {
			return true
		}
	}
	return false
}

func matchAny(prefixes []string, channel string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(channel, p) {
			return true
		}
	}
	return false
}

// subscribe adds prefixes and queues the latest value of every channel they
// match.
func (c *Client) subscribe(prefixes []string) {
	added := make([]string, 0, len(prefixes))
	c.subMu.Lock()
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" || c.subs[p] {
			continue
		}
		c.subs[p] = true
		added = append(added, p)
	}
	c.subMu.Unlock()

	if len(added) > 0 {
		c.queue(c.hub.latestMatching(added))
	}
}

func (c *Client) unsubscribe(prefixes []string) {
	c.subMu.Lock()
	for _, p := range prefixes {
		delete(c.subs, strings.TrimSpace(p))
	}
	c.subMu.Unlock()
}

// queue sends msgs unless the client has already been removed.
func (c *Client) queue(msgs [][]byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for _, m := range msgs {
		select {
		case c.send <- m:
		default:
			return
		}
	}
}

func (c *Client) sendError(msg string) {
	b, _ := json.Marshal(map[string]string{"type": "error", "error": msg})
	c.queue([][]byte{b})
}

// writePump coalesces queued messages into one frame, newline separated.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req request
		if err := json.Unmarshal(msg, &req); err != nil {
			c.sendError("invalid message: " + err.Error())
			continue
		}

		switch strings.ToUpper(req.Type) {
		case "SUBSCRIBE":
			c.subscribe(req.Channels)
		case "UNSUBSCRIBE":
			c.unsubscribe(req.Channels)
		case "REPLAY":
			c.queue(c.hub.Replay(req.Channel, req.From, req.To))
		default:
			c.sendError("unknown message type: " + req.Type)
		}
	}
}
