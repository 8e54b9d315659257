package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quickchat/quickchat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 * 1024
)

// Conn is the websocket transport behind a Session.
type Conn struct {
	ws       *websocket.Conn
	incoming chan protocol.Envelope

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// Dial connects to the server's /ws endpoint, e.g. ws://host:8080/ws.
func Dial(ctx context.Context, serverURL string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}

	c := &Conn{
		ws:       ws,
		incoming: make(chan protocol.Envelope, 16),
		done:     make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.pingLoop()
	return c, nil
}

func (c *Conn) Send(env protocol.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(env)
}

// Incoming yields server envelopes in receipt order. The channel closes when
// the connection drops.
func (c *Conn) Incoming() <-chan protocol.Envelope {
	return c.incoming
}

func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return c.ws.Close()
}

func (c *Conn) readPump() {
	defer func() {
		c.ws.Close()
		close(c.incoming)
	}()

	for {
		var env protocol.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
