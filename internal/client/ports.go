package client

import (
	"context"
	"encoding/json"

	"github.com/quickchat/quickchat/internal/protocol"
)

// Peer abstracts the external WebRTC implementation. The session only moves
// opaque negotiation payloads through it and never inspects them.
type Peer interface {
	// Offer produces the local offer, gathering included.
	Offer(ctx context.Context) (json.RawMessage, error)
	// Answer applies the remote offer and produces the local answer.
	Answer(ctx context.Context, offer json.RawMessage) (json.RawMessage, error)
	// AcceptAnswer applies the remote answer to an offered connection.
	AcceptAnswer(answer json.RawMessage) error
	Close() error
}

// PeerFactory builds a fresh Peer per call attempt.
type PeerFactory func() (Peer, error)

// Media owns local capture. Acquire is called before any offer or answer is
// produced; a failure aborts the call locally without touching the network.
type Media interface {
	Acquire(ctx context.Context) error
	Release()
}

// NopMedia is for clients without capture hardware (or tests).
type NopMedia struct{}

func (NopMedia) Acquire(ctx context.Context) error { return nil }
func (NopMedia) Release()                          {}

// Transport is the session's connection handle: an explicitly constructed,
// owned object rather than package-global state.
type Transport interface {
	Send(env protocol.Envelope) error
	Incoming() <-chan protocol.Envelope
	Close() error
}
