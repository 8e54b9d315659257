package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingJoinDetails = errors.New("display name and room are required")
	ErrCallInProgress     = errors.New("a call is already in progress")
	ErrNoIncomingCall     = errors.New("no incoming call to answer")
	ErrCallAborted        = errors.New("the call ended during setup")
)

// Session drives the protocol from one participant's perspective: room
// membership, the message view, the composer, and the call controller. One
// instance per connection.
type Session struct {
	transport Transport
	peers     PeerFactory
	media     Media
	name      string

	// render hooks, set before Run
	OnMessage      func(domain.Message)
	OnIncomingCall func(from, name string)
	OnCallEnded    func(reason string)

	mu         sync.Mutex
	me         string
	room       string
	view       []domain.Message
	draft      string
	attachment *domain.Content

	phase        domain.CallPhase
	seq          uint64 // bumped on every teardown; guards commits after lock gaps
	peer         Peer
	remote       string
	pendingOffer json.RawMessage
	pendingName  string
	mediaHeld    bool
}

func NewSession(transport Transport, displayName string, peers PeerFactory, media Media) *Session {
	return &Session{
		transport: transport,
		peers:     peers,
		media:     media,
		name:      displayName,
		phase:     domain.CallIdle,
	}
}

// Run consumes server events until the connection drops or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.transport.Incoming():
			if !ok {
				return nil
			}
			s.handle(env)
		}
	}
}

// Me returns the server-assigned call handle, empty until the me event
// arrives.
func (s *Session) Me() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.me
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) Phase() domain.CallPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// JoinRoom refuses locally when the display name or room is empty; no
// network call is issued in that case.
func (s *Session) JoinRoom(room string) error {
	if s.name == "" || room == "" {
		return ErrMissingJoinDetails
	}
	env, err := protocol.NewEnvelope(protocol.EventJoinRoom, protocol.JoinRoom{Room: room})
	if err != nil {
		return err
	}
	if err := s.transport.Send(env); err != nil {
		return err
	}
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
	return nil
}

// SetText updates the typed composer text.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Attach selects a media attachment (body is a pre-encoded data URI). An
// attachment takes precedence over typed text on send.
func (s *Session) Attach(kind domain.ContentKind, body, mimeType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = &domain.Content{Kind: kind, Body: body, MimeType: mimeType}
}

// SendMessage emits the composed message, appends it to the local view
// immediately (no round-trip wait), and clears the composer. An empty
// composer is a no-op.
func (s *Session) SendMessage() error {
	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return errors.New("join a room first")
	}
	content := domain.Content{Kind: domain.KindText, Body: s.draft}
	if s.attachment != nil {
		content = *s.attachment
	}
	if content.Body == "" {
		s.mu.Unlock()
		return nil
	}
	msg := domain.Message{
		Room:      s.room,
		Author:    s.name,
		Content:   content,
		Timestamp: time.Now().Format("15:04"),
	}
	s.view = append(s.view, msg)
	s.draft = ""
	s.attachment = nil
	s.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.EventSendMessage, protocol.ChatMessageFromDomain(msg))
	if err != nil {
		return err
	}
	return s.transport.Send(env)
}

// Messages returns a copy of the local view.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.view))
	copy(out, s.view)
	return out
}

// Call acquires local media, builds an offer, and rings target. A media or
// offer failure aborts locally without contacting the server. If the call
// state moves underneath the setup (an inbound ring, a teardown), the commit
// is abandoned with ErrCallAborted instead of clobbering the newer state.
func (s *Session) Call(ctx context.Context, target string) error {
	s.mu.Lock()
	if s.phase.Active() {
		s.mu.Unlock()
		return ErrCallInProgress
	}
	seq := s.seq
	s.mu.Unlock()

	if err := s.acquireMedia(ctx); err != nil {
		return err
	}
	peer, err := s.peers()
	if err != nil {
		s.releaseMedia()
		return err
	}
	offer, err := peer.Offer(ctx)
	if err != nil {
		peer.Close()
		s.releaseMedia()
		return err
	}

	s.mu.Lock()
	if s.seq != seq || s.phase.Active() {
		s.mu.Unlock()
		peer.Close()
		s.releaseMedia()
		return ErrCallAborted
	}
	me := s.me
	s.phase = domain.CallRingingCaller
	s.peer = peer
	s.remote = target
	s.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.EventCallUser, protocol.CallUser{
		UserToCall: target,
		SignalData: offer,
		From:       me,
		Name:       s.name,
	})
	if err == nil {
		err = s.transport.Send(env)
	}
	if err != nil {
		s.mu.Lock()
		s.teardownLocked()
		s.mu.Unlock()
		return err
	}
	return nil
}

// IncomingCall reports a ringing inbound call, if any.
func (s *Session) IncomingCall() (from, name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domain.CallRingingCallee {
		return "", "", false
	}
	return s.remote, s.pendingName, true
}

// Answer accepts the pending incoming call: acquires media if not already
// held, builds the answer, and emits it. A callEnded (or callUnavailable)
// handled while the answer is being built wins: the commit is abandoned with
// ErrCallAborted and the session stays idle.
func (s *Session) Answer(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != domain.CallRingingCallee {
		s.mu.Unlock()
		return ErrNoIncomingCall
	}
	offer := s.pendingOffer
	caller := s.remote
	seq := s.seq
	s.mu.Unlock()

	if err := s.acquireMedia(ctx); err != nil {
		return err
	}
	peer, err := s.peers()
	if err != nil {
		s.releaseMedia()
		return err
	}
	answer, err := peer.Answer(ctx, offer)
	if err != nil {
		peer.Close()
		s.releaseMedia()
		return err
	}

	env, err := protocol.NewEnvelope(protocol.EventAnswerCall, protocol.AnswerCall{
		Signal: answer,
		To:     caller,
	})
	if err == nil {
		err = s.transport.Send(env)
	}
	if err != nil {
		peer.Close()
		s.releaseMedia()
		return err
	}

	s.mu.Lock()
	if s.seq != seq || s.phase != domain.CallRingingCallee {
		s.mu.Unlock()
		peer.Close()
		s.releaseMedia()
		return ErrCallAborted
	}
	s.peer = peer
	s.phase = domain.CallConnected
	s.pendingOffer = nil
	s.mu.Unlock()
	return nil
}

// HangUp ends the current call (or declines a ringing one), releases local
// media, and resets call view state. No-op when idle.
func (s *Session) HangUp() error {
	s.mu.Lock()
	active := s.phase.Active()
	s.teardownLocked()
	s.mu.Unlock()

	if !active {
		return nil
	}
	env, err := protocol.NewEnvelope(protocol.EventEndCall, struct{}{})
	if err != nil {
		return err
	}
	return s.transport.Send(env)
}

func (s *Session) Close() error {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	return s.transport.Close()
}

func (s *Session) handle(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventMe:
		var p protocol.Me
		if env.Decode(&p) != nil {
			return
		}
		s.mu.Lock()
		s.me = p.ID
		s.mu.Unlock()

	case protocol.EventReceiveMessage:
		var p protocol.ChatMessage
		if env.Decode(&p) != nil {
			return
		}
		msg, err := p.Domain()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.view = append(s.view, *msg)
		cb := s.OnMessage
		s.mu.Unlock()
		if cb != nil {
			cb(*msg)
		}

	case protocol.EventCallUser:
		var p protocol.CallUser
		if env.Decode(&p) != nil {
			return
		}
		s.mu.Lock()
		if s.phase.Active() {
			// the server should never relay into an active call; ignore
			s.mu.Unlock()
			return
		}
		s.phase = domain.CallRingingCallee
		s.remote = p.From
		s.pendingName = p.Name
		s.pendingOffer = p.SignalData
		cb := s.OnIncomingCall
		s.mu.Unlock()
		if cb != nil {
			cb(p.From, p.Name)
		}

	case protocol.EventCallAccepted:
		var p protocol.CallAccepted
		if env.Decode(&p) != nil {
			return
		}
		s.mu.Lock()
		peer := s.peer
		ringing := s.phase == domain.CallRingingCaller
		if ringing {
			s.phase = domain.CallConnected
		}
		s.mu.Unlock()
		if ringing && peer != nil {
			if err := peer.AcceptAnswer(p.Signal); err != nil {
				log.Warn().Err(err).Msg("apply remote answer failed")
				s.HangUp()
			}
		}

	case protocol.EventCallEnded:
		var p protocol.CallEnded
		env.Decode(&p)
		s.mu.Lock()
		s.teardownLocked()
		cb := s.OnCallEnded
		s.mu.Unlock()
		if cb != nil {
			cb(p.Reason)
		}

	case protocol.EventCallUnavailable:
		var p protocol.CallUnavailable
		env.Decode(&p)
		s.mu.Lock()
		s.teardownLocked()
		cb := s.OnCallEnded
		s.mu.Unlock()
		if cb != nil {
			cb(p.Reason)
		}
	}
}

// teardownLocked resets all call state. Caller holds s.mu.
func (s *Session) teardownLocked() {
	s.seq++
	if s.peer != nil {
		s.peer.Close()
		s.peer = nil
	}
	if s.mediaHeld {
		s.media.Release()
		s.mediaHeld = false
	}
	s.phase = domain.CallIdle
	s.remote = ""
	s.pendingName = ""
	s.pendingOffer = nil
}

func (s *Session) acquireMedia(ctx context.Context) error {
	s.mu.Lock()
	held := s.mediaHeld
	s.mu.Unlock()
	if held {
		return nil
	}
	if err := s.media.Acquire(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.mediaHeld = true
	s.mu.Unlock()
	return nil
}

func (s *Session) releaseMedia() {
	s.mu.Lock()
	held := s.mediaHeld
	s.mediaHeld = false
	s.mu.Unlock()
	if held {
		s.media.Release()
	}
}
