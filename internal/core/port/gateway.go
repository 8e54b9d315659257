package port

import (
	"context"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
)

// Gateway delivers envelopes to live connections. Send must not block on the
// remote peer; implementations queue into a per-client pump.
type Gateway interface {
	Send(ctx context.Context, id domain.ClientID, env protocol.Envelope) error
}
