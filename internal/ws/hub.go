// Package ws implements the websocket relay between the smoker device
// and live viewers. Every peer connects to the same endpoint; frames a
// peer sends are handed to a Handler (the ingestion bridge), and frames
// the hub broadcasts reach every connected peer verbatim.
package ws

import (
	"context"
	"sync"

	"github.com/luki/smoker/internal/logging"
)

// Relay channel names. Data on every channel is an opaque string that is
// re-emitted verbatim; the hub never parses it.
const (
	ChannelEvents      = "events"
	ChannelSmokeUpdate = "smokeUpdate"
	ChannelClear       = "clear"
	ChannelRefresh     = "refresh"
)

// Frame is the wire envelope: a channel name plus the raw payload.
type Frame struct {
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

// Handler receives frames sent by connected peers.
type Handler interface {
	OnFrame(channel, data string)
}

// Hub maintains the set of connected peers and fans broadcast frames out
// to all of them.
type Hub struct {
	handler Handler

	clients    map[*Client]bool
	broadcast  chan Frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a hub. SetHandler must be called before peers connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetHandler wires the frame handler. The hub and the bridge reference
// each other, so the handler is attached after construction.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Run processes peer lifecycle and broadcast frames until ctx is done,
// then closes every peer.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Closing done releases any client pump blocked on the
			// register or unregister channels; the hub never reads
			// them again after this.
			close(h.done)
			h.closeAll()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info().Int("total_clients", total).Msg("viewer connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info().Int("total_clients", total).Msg("viewer disconnected")

		case frame := <-h.broadcast:
			h.send(frame)
		}
	}
}

// Broadcast queues a frame for every connected peer. Dropping when the
// queue is full keeps ingestion latency independent of slow viewers.
func (h *Hub) Broadcast(channel, data string) {
	select {
	case h.broadcast <- Frame{Channel: channel, Data: data}:
	default:
		logging.Warn().Str("channel", channel).Msg("broadcast queue full, frame dropped")
	}
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(frame Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stalled []*Client
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			stalled = append(stalled, c)
		}
	}

	for _, c := range stalled {
		close(c.send)
		delete(h.clients, c)
		logging.Warn().Msg("viewer send buffer full, dropping connection")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	if n > 0 {
		logging.Info().Int("clients_closed", n).Msg("relay hub stopped")
	}
}

// attach hands a client to the run loop. Reports false when the hub has
// already stopped.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// detach removes a departing client. Safe to call after the hub has
// stopped; closeAll already released the client's send channel then.
func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) onFrame(frame Frame) {
	if h.handler == nil {
		return
	}
	h.handler.OnFrame(frame.Channel, frame.Data)
}
