package service

import (
	"context"
	"testing"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/quickchat/quickchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatMsg(room, author, body string) domain.Message {
	return domain.Message{
		Room:      room,
		Author:    author,
		Content:   domain.Content{Kind: domain.KindText, Body: body},
		Timestamp: "12:30",
	}
}

func TestRoomService_JoinRequiresRoomName(t *testing.T) {
	reg := NewRegistry()
	svc := NewRoomService(reg, newFakeGateway())
	id := reg.Register()

	require.ErrorIs(t, svc.Join(context.Background(), id, ""), ErrEmptyRoom)
	assert.Empty(t, reg.Lookup(id).Room)
}

func TestRoomService_BroadcastFansOutToCurrentMembers(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	gw := newFakeGateway()
	svc := NewRoomService(reg, gw)

	a := reg.Register()
	b := reg.Register()
	c := reg.Register()
	outsider := reg.Register()

	require.NoError(t, svc.Join(ctx, a, "lobby"))
	require.NoError(t, svc.Join(ctx, b, "lobby"))
	require.NoError(t, svc.Join(ctx, c, "lobby"))
	require.NoError(t, svc.Join(ctx, outsider, "den"))

	require.NoError(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", "hi")))

	// exactly the other lobby members, never the sender, never outsiders
	assert.Empty(t, gw.received(a))
	assert.Empty(t, gw.received(outsider))
	for _, id := range []domain.ClientID{b, c} {
		envs := gw.received(id)
		require.Len(t, envs, 1)
		assert.Equal(t, protocol.EventReceiveMessage, envs[0].Event)

		var p protocol.ChatMessage
		require.NoError(t, envs[0].Decode(&p))
		assert.Equal(t, "Alice", p.Author)
		assert.Equal(t, "hi", p.Body)
		assert.Equal(t, "lobby", p.Room)
	}
}

func TestRoomService_BroadcastRequiresMembership(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	gw := newFakeGateway()
	svc := NewRoomService(reg, gw)

	a := reg.Register()
	b := reg.Register()
	require.NoError(t, svc.Join(ctx, b, "lobby"))

	// not in any room
	require.ErrorIs(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", "hi")), ErrNotMember)

	// in a different room than the message claims
	require.NoError(t, svc.Join(ctx, a, "den"))
	require.ErrorIs(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", "hi")), ErrNotMember)

	assert.Empty(t, gw.received(b))
}

func TestRoomService_NoBacklogForLateJoiners(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	gw := newFakeGateway()
	svc := NewRoomService(reg, gw)

	a := reg.Register()
	require.NoError(t, svc.Join(ctx, a, "lobby"))
	require.NoError(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", "hi")))

	late := reg.Register()
	require.NoError(t, svc.Join(ctx, late, "lobby"))
	assert.Empty(t, gw.received(late))
}

func TestRoomService_PerSenderOrderPreserved(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	gw := newFakeGateway()
	svc := NewRoomService(reg, gw)

	a := reg.Register()
	b := reg.Register()
	require.NoError(t, svc.Join(ctx, a, "lobby"))
	require.NoError(t, svc.Join(ctx, b, "lobby"))

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", body)))
	}

	envs := gw.received(b)
	require.Len(t, envs, 3)
	for i, want := range []string{"one", "two", "three"} {
		var p protocol.ChatMessage
		require.NoError(t, envs[i].Decode(&p))
		assert.Equal(t, want, p.Body)
	}
}

func TestRoomService_UnreachableMemberDoesNotStopFanOut(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	gw := newFakeGateway()
	svc := NewRoomService(reg, gw)

	a := reg.Register()
	b := reg.Register()
	c := reg.Register()
	require.NoError(t, svc.Join(ctx, a, "lobby"))
	require.NoError(t, svc.Join(ctx, b, "lobby"))
	require.NoError(t, svc.Join(ctx, c, "lobby"))
	gw.unreachable[b] = true

	require.NoError(t, svc.Broadcast(ctx, a, chatMsg("lobby", "Alice", "hi")))
	assert.Len(t, gw.received(c), 1)
}
