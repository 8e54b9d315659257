package domain

import (
	"github.com/google/uuid"
)

// ClientID identifies one live connection. It is assigned on connect, shared
// out-of-band as the addressing handle for direct calls, and dies with the
// connection.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

func (id ClientID) String() string {
	return string(id)
}
