package service

import (
	"context"
	"errors"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/core/port"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyRoom = errors.New("room name cannot be empty")
	ErrNotMember = errors.New("sender is not a member of the room")
)

// RoomService routes chat traffic: join moves an identity between rooms,
// broadcast fans a message out to the sender's current room.
type RoomService struct {
	registry *Registry
	gateway  port.Gateway
}

func NewRoomService(registry *Registry, gateway port.Gateway) *RoomService {
	return &RoomService{registry: registry, gateway: gateway}
}

func (s *RoomService) Join(ctx context.Context, id domain.ClientID, room string) error {
	if room == "" {
		return ErrEmptyRoom
	}
	s.registry.JoinRoom(id, room)
	log.Info().Str("client_id", id.String()).Str("room", room).Msg("client joined room")
	return nil
}

// Broadcast delivers msg to everyone who is a member of msg.Room at this
// moment, excluding the sender (the sender echoes locally). Messages are
// never stored; anyone not currently a member never sees them.
func (s *RoomService) Broadcast(ctx context.Context, sender domain.ClientID, msg domain.Message) error {
	if snap := s.registry.Lookup(sender); snap.Room == "" || snap.Room != msg.Room {
		return ErrNotMember
	}

	env, err := protocol.NewEnvelope(protocol.EventReceiveMessage, protocol.ChatMessageFromDomain(msg))
	if err != nil {
		return err
	}
	for _, id := range s.registry.Members(msg.Room) {
		if id == sender {
			continue
		}
		if err := s.gateway.Send(ctx, id, env); err != nil {
			log.Warn().Err(err).Str("client_id", id.String()).Str("room", msg.Room).Msg("dropping message for unreachable member")
		}
	}
	return nil
}

func (s *RoomService) Leave(ctx context.Context, id domain.ClientID) {
	s.registry.LeaveRoom(id)
}
