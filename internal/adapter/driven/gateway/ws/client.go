package ws

import (
	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
)

type Client interface {
	ID() domain.ClientID
	Enqueue(env protocol.Envelope) error
	Close() error
}
