package service

import (
	"context"
	"sync"

	"github.com/quickchat/quickchat/internal/adapter/driven/gateway/ws"
	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
)

// fakeGateway records deliveries per identity.
type fakeGateway struct {
	mu          sync.Mutex
	sent        map[domain.ClientID][]protocol.Envelope
	unreachable map[domain.ClientID]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sent:        make(map[domain.ClientID][]protocol.Envelope),
		unreachable: make(map[domain.ClientID]bool),
	}
}

func (g *fakeGateway) Send(ctx context.Context, id domain.ClientID, env protocol.Envelope) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unreachable[id] {
		return ws.ErrNotConnected
	}
	g.sent[id] = append(g.sent[id], env)
	return nil
}

func (g *fakeGateway) received(id domain.ClientID) []protocol.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.Envelope, len(g.sent[id]))
	copy(out, g.sent[id])
	return out
}

func (g *fakeGateway) lastEvent(id domain.ClientID) (protocol.Envelope, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	envs := g.sent[id]
	if len(envs) == 0 {
		return protocol.Envelope{}, false
	}
	return envs[len(envs)-1], true
}
