package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("client not connected")

// Hub implements port.Gateway. It maps live identities to their connections;
// delivery races with disconnects are benign and surface as ErrNotConnected.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ClientID]Client),
	}
}

func (h *Hub) Add(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
}

func (h *Hub) Remove(id domain.ClientID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func (h *Hub) Send(ctx context.Context, id domain.ClientID, env protocol.Envelope) error {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}
	if err := c.Enqueue(env); err != nil {
		// stalled client; drop it so the registry cleanup path runs
		log.Warn().Err(err).Str("client_id", id.String()).Msg("closing stalled client")
		c.Close()
		return err
	}
	return nil
}

// Close disconnects every client, for shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
