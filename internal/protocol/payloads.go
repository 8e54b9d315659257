package protocol

import (
	"encoding/json"

	"github.com/quickchat/quickchat/internal/core/domain"
)

// Me tells a freshly connected client its call handle.
type Me struct {
	ID string `json:"id"`
}

type JoinRoom struct {
	Room string `json:"room"`
}

// ChatMessage mirrors the browser client's message shape: body holds either
// plain text or a data URI depending on type.
type ChatMessage struct {
	Room     string `json:"room"`
	Author   string `json:"author"`
	Kind     string `json:"type"`
	Body     string `json:"body"`
	MimeType string `json:"mimeType,omitempty"`
	Time     string `json:"time"`
}

func ChatMessageFromDomain(m domain.Message) ChatMessage {
	return ChatMessage{
		Room:     m.Room,
		Author:   m.Author,
		Kind:     string(m.Content.Kind),
		Body:     m.Content.Body,
		MimeType: m.Content.MimeType,
		Time:     m.Timestamp,
	}
}

func (m ChatMessage) Domain() (*domain.Message, error) {
	return domain.NewMessage(m.Room, m.Author, domain.Content{
		Kind:     domain.ContentKind(m.Kind),
		Body:     m.Body,
		MimeType: m.MimeType,
	}, m.Time)
}

// CallUser carries an offer. Sent client -> server, then relayed verbatim to
// the callee with From filled in server-side.
type CallUser struct {
	UserToCall string          `json:"userToCall,omitempty"`
	SignalData json.RawMessage `json:"signalData"`
	From       string          `json:"from"`
	Name       string          `json:"name"`
}

// AnswerCall carries the callee's answer back through the server.
type AnswerCall struct {
	Signal json.RawMessage `json:"signal"`
	To     string          `json:"to,omitempty"`
}

type CallAccepted struct {
	Signal json.RawMessage `json:"signal"`
}

type CallEnded struct {
	From   string `json:"from,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CallUnavailable is the explicit rejection sent to a caller whose target is
// busy or not connected.
type CallUnavailable struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

const (
	UnavailableBusy    = "busy"
	UnavailableUnknown = "unknown"

	EndedReasonHangup  = "hangup"
	EndedReasonGone    = "disconnected"
	EndedReasonTimeout = "timeout"
)
