package realtime

import (
	"log/slog"
	"sync"
)

// Hub tracks every open client by the channel it is bound to ("game:7", "tournament:<id>").
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]string
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]string),
		logger:  logger.With(slog.String("component", "hub")),
	}
}

func (h *Hub) Register(c *Client, channel string) {
	h.mu.Lock()
	h.clients[c] = channel
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client registered", slog.String("channel", channel), slog.Int("clients", n))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	channel, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("client unregistered", slog.String("channel", channel), slog.Int("clients", n))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CountByChannel returns the number of clients bound to channel.
func (h *Hub) CountByChannel(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, ch := range h.clients {
		if ch == channel {
			n++
		}
	}
	return n
}

// CloseAll closes every registered client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]string)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.Info("closed all websocket clients", slog.Int("count", len(clients)))
}
