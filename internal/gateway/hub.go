// Package gateway fans computed indicator values and strategy signals out to
// WebSocket clients.
//
// Every message travels on a channel named after its Redis stream key, e.g.
// "ind:SMA_20:60s:NSE:26000" or "sig:CROSS:60s:NSE:26000". Clients subscribe
// by channel prefix, receive the latest value of each matching channel on
// subscribe, and can ask for a replay of recent envelopes by channel seq.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ta-engine/internal/metrics"
	"ta-engine/internal/model"
)

const replayCapacity = 500

// Hub manages WebSocket clients and channel fan-out.
type Hub struct {
	upgrader websocket.Upgrader
	m        *metrics.Metrics

	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer
}

type latestEntry struct {
	Envelope []byte
	Seq      int64
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		m:           m,
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
	}
}

// PublishResults broadcasts every ready indicator result.
func (h *Hub) PublishResults(results []model.IndicatorResult) {
	for i := range results {
		if results[i].Ready {
			h.Broadcast(results[i].StreamKey(), results[i].JSON())
		}
	}
}

// PublishSignals broadcasts strategy decisions.
func (h *Hub) PublishSignals(sigs []model.SignalResult) {
	for i := range sigs {
		h.Broadcast(sigs[i].StreamKey(), sigs[i].JSON())
	}
}

// Broadcast wraps data in an envelope carrying the channel seq and sends it
// to every client subscribed to channel. Slow clients drop messages rather
// than block the publisher.
func (h *Hub) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.channelSeqs[channel]++
	seq := h.channelSeqs[channel]
	env := envelope(channel, data, now, seq)
	h.latest[channel] = latestEntry{Envelope: env, Seq: seq}
	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(replayCapacity)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()
	rb.Push(seq, env)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.matches(channel) {
			continue
		}
		select {
		case c.send <- env:
		default:
			if h.m != nil {
				h.m.WSDrops.Inc()
			}
		}
	}
}

// envelope hand-builds {"channel":..,"seq":..,"ts":..,"data":..}.
func envelope(channel string, data []byte, ts time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":`...)
	buf = strconv.AppendQuote(buf, channel)
	buf = append(buf, `,"seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, '}')
	return buf
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
// An optional "sub" query parameter holds comma-separated channel prefixes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(h, conn)
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)
	slog.Info("ws client connected", "clients", count)

	if sub := r.URL.Query().Get("sub"); sub != "" {
		c.subscribe(strings.Split(sub, ","))
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.setClientGauge(count)
	slog.Info("ws client disconnected", "clients", count)
}

func (h *Hub) setClientGauge(n int) {
	if h.m != nil {
		h.m.WSClients.Set(float64(n))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Latest returns the newest payload of every channel starting with prefix,
// keyed by channel.
func (h *Hub) Latest(prefix string) map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]json.RawMessage)
	for ch, e := range h.latest {
		if strings.HasPrefix(ch, prefix) {
			out[ch] = json.RawMessage(e.Envelope)
		}
	}
	return out
}

// Replay returns buffered envelopes of channel with seq in [fromSeq, toSeq].
func (h *Hub) Replay(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// latestMatching snapshots the newest envelope of every channel matching
// any of prefixes.
func (h *Hub) latestMatching(prefixes []string) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out [][]byte
	for ch, e := range h.latest {
		if matchAny(prefixes, ch) {
			out = append(out, e.Envelope)
		}
	}
	return out
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.conn.Close()
	}
}
