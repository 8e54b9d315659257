package domain

import (
	"errors"
)

type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
)

// Content is the body of a chat message. For image and video kinds the body
// is a data URI produced client-side; the server never inspects it.
type Content struct {
	Kind     ContentKind
	Body     string
	MimeType string
}

// Message is immutable once sent. Author is a display name, not an identity;
// uniqueness is not enforced.
type Message struct {
	Room      string
	Author    string
	Content   Content
	Timestamp string
}

func NewMessage(room, author string, content Content, timestamp string) (*Message, error) {
	if room == "" {
		return nil, errors.New("message room cannot be empty")
	}
	if content.Body == "" {
		return nil, errors.New("message body cannot be empty")
	}
	if content.Kind == "" {
		content.Kind = KindText
	}
	return &Message{
		Room:      room,
		Author:    author,
		Content:   content,
		Timestamp: timestamp,
	}, nil
}
