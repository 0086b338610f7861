package http

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

const clientBuffer = 16

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type noWinnersPayload struct {
	Riddle domain.Riddle `json:"riddle"`
}

// Hub fans contest events out to connected websocket clients. It implements app.Notifier.
// Sends never block: a client whose buffer is full loses its oldest queued message.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	userID string
	send   chan outboundMessage[any]
	// mu serializes the drop-oldest dance between concurrent broadcasts.
	mu sync.Mutex
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{log: logger, clients: make(map[*client]struct{})}
}

// register adds a client and returns it with its unregister func.
func (h *Hub) register(userID string) (*client, func()) {
	c := &client{userID: userID, send: make(chan outboundMessage[any], clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, c)
			close(c.send)
			h.mu.Unlock()
		})
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

func (h *Hub) sendTo(userID string, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID == userID {
			h.deliver(c, msg)
		}
	}
}

// deliver must be called with h.mu held for reading so the channel cannot be closed underneath.
func (h *Hub) deliver(c *client, msg outboundMessage[any]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case dropped := <-c.send:
		h.log.Warn().Str("user_id", c.userID).Str("dropped", dropped.Type).Msg("slow websocket client")
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) RoundAnnounced(context.Context) {
	h.broadcast(outboundMessage[any]{Type: "roundAnnounced", Payload: struct{}{}})
}

func (h *Hub) RoundOpened(_ context.Context, opened domain.RoundOpened) {
	opened.Riddle.Answer = ""
	h.broadcast(outboundMessage[any]{Type: "roundOpened", Payload: opened})
}

func (h *Hub) RoundRevealed(_ context.Context, summary domain.RevealSummary) {
	h.broadcast(outboundMessage[any]{Type: "roundRevealed", Payload: summary})
}

func (h *Hub) NoWinners(_ context.Context, riddle domain.Riddle) {
	h.broadcast(outboundMessage[any]{Type: "noWinners", Payload: noWinnersPayload{Riddle: riddle}})
}

func (h *Hub) GuessResult(_ context.Context, result domain.GuessResult) {
	h.sendTo(result.UserID, outboundMessage[any]{Type: "guessResult", Payload: result})
}

func (h *Hub) PoolExhausted(context.Context) {
	h.broadcast(outboundMessage[any]{Type: "poolExhausted", Payload: struct{}{}})
}

// push queues msg for c if it is still registered.
func (h *Hub) push(c *client, msg outboundMessage[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.deliver(c, msg)
	}
}
