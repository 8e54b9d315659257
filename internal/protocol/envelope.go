// Package protocol defines the wire envelopes exchanged between client and
// server. The event set is closed; unknown events are dropped by both sides.
package protocol

import (
	"encoding/json"
	"fmt"
)

type Event string

const (
	// server -> client, sent once after connect
	EventMe Event = "me"

	// chat
	EventJoinRoom       Event = "join_room"
	EventSendMessage    Event = "send_message"
	EventReceiveMessage Event = "receive_message"

	// call signaling
	EventCallUser        Event = "callUser"
	EventAnswerCall      Event = "answerCall"
	EventCallAccepted    Event = "callAccepted"
	EventEndCall         Event = "endCall"
	EventCallEnded       Event = "callEnded"
	EventCallUnavailable Event = "callUnavailable"
)

type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event Event, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}
