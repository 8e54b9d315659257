package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/core/port"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/rs/zerolog/log"
)

// CallService brokers 1:1 call negotiation between two connection
// identities, independent of room membership. Signaling payloads are opaque
// and relayed byte-for-byte; the server never carries media.
type CallService struct {
	registry    *Registry
	gateway     port.Gateway
	ringTimeout time.Duration
}

// NewCallService builds the broker. ringTimeout bounds how long a callee may
// stay ringing unanswered; zero disables the timer.
func NewCallService(registry *Registry, gateway port.Gateway, ringTimeout time.Duration) *CallService {
	return &CallService{
		registry:    registry,
		gateway:     gateway,
		ringTimeout: ringTimeout,
	}
}

// Initiate rings callee with the caller's offer. A busy or unknown callee
// produces an explicit callUnavailable back to the caller; the caller stays
// idle and the callee's state is untouched.
func (s *CallService) Initiate(ctx context.Context, caller, callee domain.ClientID, offer json.RawMessage, callerName string) error {
	epoch, err := s.registry.BeginCall(caller, callee)
	switch {
	case errors.Is(err, ErrUnknownCallee):
		return s.reject(ctx, caller, callee, protocol.UnavailableUnknown)
	case errors.Is(err, ErrBusy):
		return s.reject(ctx, caller, callee, protocol.UnavailableBusy)
	case err != nil:
		return err
	}

	env, err := protocol.NewEnvelope(protocol.EventCallUser, protocol.CallUser{
		SignalData: offer,
		From:       caller.String(),
		Name:       callerName,
	})
	if err != nil {
		return err
	}
	if err := s.gateway.Send(ctx, callee, env); err != nil {
		// callee vanished between the registry check and delivery
		s.registry.EndCall(caller)
		return s.reject(ctx, caller, callee, protocol.UnavailableUnknown)
	}

	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Msg("call initiated")
	if s.ringTimeout > 0 {
		time.AfterFunc(s.ringTimeout, func() {
			s.expire(caller, epoch)
		})
	}
	return nil
}

// Accept relays the callee's answer to the caller and marks both connected.
func (s *CallService) Accept(ctx context.Context, callee domain.ClientID, answer json.RawMessage) error {
	caller, err := s.registry.AcceptCall(callee)
	if err != nil {
		return err
	}

	env, err := protocol.NewEnvelope(protocol.EventCallAccepted, protocol.CallAccepted{Signal: answer})
	if err != nil {
		return err
	}
	if err := s.gateway.Send(ctx, caller, env); err != nil {
		s.registry.EndCall(callee)
		return err
	}
	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Msg("call accepted")
	return nil
}

// Terminate returns both parties to idle and notifies the counterparty.
// Safe to call from idle; repeated calls are no-ops.
func (s *CallService) Terminate(ctx context.Context, id domain.ClientID) {
	peer, ok := s.registry.EndCall(id)
	if !ok {
		return
	}
	s.notifyEnded(ctx, peer, id, protocol.EndedReasonHangup)
	log.Info().Str("client_id", id.String()).Str("peer", peer.String()).Msg("call terminated")
}

// PeerGone notifies peer that its counterparty's connection closed. The
// registry state has already been cleaned up by Unregister.
func (s *CallService) PeerGone(ctx context.Context, peer, gone domain.ClientID) {
	s.notifyEnded(ctx, peer, gone, protocol.EndedReasonGone)
}

func (s *CallService) expire(caller domain.ClientID, epoch uint64) {
	callee, ok := s.registry.ExpireRinging(caller, epoch)
	if !ok {
		return
	}
	ctx := context.Background()
	s.notifyEnded(ctx, caller, callee, protocol.EndedReasonTimeout)
	s.notifyEnded(ctx, callee, caller, protocol.EndedReasonTimeout)
	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Msg("ringing call expired")
}

func (s *CallService) reject(ctx context.Context, caller, callee domain.ClientID, reason string) error {
	env, err := protocol.NewEnvelope(protocol.EventCallUnavailable, protocol.CallUnavailable{
		Target: callee.String(),
		Reason: reason,
	})
	if err != nil {
		return err
	}
	log.Info().Str("caller", caller.String()).Str("callee", callee.String()).Str("reason", reason).Msg("call rejected")
	return s.gateway.Send(ctx, caller, env)
}

func (s *CallService) notifyEnded(ctx context.Context, to, from domain.ClientID, reason string) {
	env, err := protocol.NewEnvelope(protocol.EventCallEnded, protocol.CallEnded{
		From:   from.String(),
		Reason: reason,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode callEnded")
		return
	}
	if err := s.gateway.Send(ctx, to, env); err != nil {
		log.Warn().Err(err).Str("client_id", to.String()).Msg("dropping callEnded for unreachable client")
	}
}
