package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// large enough for data-URI media bodies and SDP payloads
	maxMessageSize = 4 * 1024 * 1024

	sendBuffer = 64
)

// WSClient wraps one websocket connection. All writes go through the send
// channel and the write pump; the read loop is the only reader.
type WSClient struct {
	id   domain.ClientID
	conn *websocket.Conn

	send chan protocol.Envelope
	done chan struct{}
	once sync.Once
}

func newWSClient(id domain.ClientID, conn *websocket.Conn) *WSClient {
	return &WSClient{
		id:   id,
		conn: conn,
		send: make(chan protocol.Envelope, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *WSClient) ID() domain.ClientID {
	return c.id
}

func (c *WSClient) Enqueue(env protocol.Envelope) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	case c.send <- env:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *WSClient) Close() error {
	c.once.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the connection, registers an identity, and runs the read
// loop until disconnect. Cleanup runs before the handler returns, so no
// later event can observe a half-torn-down identity.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := h.Registry.Register()
	client := newWSClient(id, conn)
	h.Hub.Add(client)
	go client.writePump()

	l := log.With().Str("client_id", id.String()).Logger()
	l.Info().Msg("client connected")

	defer func() {
		room, peer, hadCall := h.Registry.Unregister(id)
		h.Hub.Remove(id)
		if hadCall {
			h.Calls.PeerGone(r.Context(), peer, id)
		}
		client.Close()
		l.Info().Str("room", room).Msg("client disconnected")
	}()

	// hand the client its call handle first thing
	if env, err := protocol.NewEnvelope(protocol.EventMe, protocol.Me{ID: id.String()}); err != nil {
		l.Error().Err(err).Msg("encode me")
	} else if err := client.Enqueue(env); err != nil {
		l.Warn().Err(err).Msg("dropping me")
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("unexpected close")
			}
			break
		}
		h.dispatch(r.Context(), l, id, env)
	}
}

// dispatch processes one inbound envelope to completion. Malformed payloads
// and precondition violations are logged and dropped, never fatal to the
// connection.
func (h *Handler) dispatch(ctx context.Context, l zerolog.Logger, id domain.ClientID, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoinRoom:
		var p protocol.JoinRoom
		if err := env.Decode(&p); err != nil {
			l.Warn().Err(err).Msg("dropping join_room")
			return
		}
		if err := h.Rooms.Join(ctx, id, p.Room); err != nil {
			l.Warn().Err(err).Msg("join refused")
		}

	case protocol.EventSendMessage:
		var p protocol.ChatMessage
		if err := env.Decode(&p); err != nil {
			l.Warn().Err(err).Msg("dropping send_message")
			return
		}
		msg, err := p.Domain()
		if err != nil {
			l.Warn().Err(err).Msg("dropping malformed message")
			return
		}
		if err := h.Rooms.Broadcast(ctx, id, *msg); err != nil {
			l.Warn().Err(err).Str("room", p.Room).Msg("broadcast refused")
		}

	case protocol.EventCallUser:
		var p protocol.CallUser
		if err := env.Decode(&p); err != nil {
			l.Warn().Err(err).Msg("dropping callUser")
			return
		}
		if err := h.Calls.Initiate(ctx, id, domain.ClientID(p.UserToCall), p.SignalData, p.Name); err != nil {
			l.Warn().Err(err).Msg("initiate failed")
		}

	case protocol.EventAnswerCall:
		var p protocol.AnswerCall
		if err := env.Decode(&p); err != nil {
			l.Warn().Err(err).Msg("dropping answerCall")
			return
		}
		if err := h.Calls.Accept(ctx, id, p.Signal); err != nil {
			l.Warn().Err(err).Msg("answer refused")
		}

	case protocol.EventEndCall:
		h.Calls.Terminate(ctx, id)

	default:
		l.Warn().Str("event", string(env.Event)).Msg("unknown event")
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	return r.Header.Get("Origin") == h.allowedOrigin
}
