package service

import (
	"testing"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAssignsFreshIdentity(t *testing.T) {
	r := NewRegistry()

	a := r.Register()
	b := r.Register()
	require.NotEqual(t, a, b)

	snap := r.Lookup(a)
	assert.Empty(t, snap.Room)
	assert.Equal(t, domain.CallIdle, snap.Phase)
}

func TestRegistry_LookupUnknownPanics(t *testing.T) {
	r := NewRegistry()
	require.Panics(t, func() {
		r.Lookup(domain.ClientID("never-registered"))
	})
}

func TestRegistry_SingleRoomMembership(t *testing.T) {
	r := NewRegistry()
	a := r.Register()

	r.JoinRoom(a, "lobby")
	assert.Equal(t, "lobby", r.Lookup(a).Room)
	assert.Equal(t, []domain.ClientID{a}, r.Members("lobby"))

	// moving rooms leaves the old one in the same step
	r.JoinRoom(a, "den")
	assert.Equal(t, "den", r.Lookup(a).Room)
	assert.Empty(t, r.Members("lobby"))
	assert.Equal(t, []domain.ClientID{a}, r.Members("den"))

	// rejoining the current room is a no-op
	r.JoinRoom(a, "den")
	assert.Equal(t, []domain.ClientID{a}, r.Members("den"))
}

func TestRegistry_LeaveRoom(t *testing.T) {
	r := NewRegistry()
	a := r.Register()

	// roomless leave is a no-op
	r.LeaveRoom(a)

	r.JoinRoom(a, "lobby")
	r.LeaveRoom(a)
	assert.Empty(t, r.Lookup(a).Room)
	assert.Empty(t, r.Members("lobby"))
}

func TestRegistry_UnregisterCleansEverything(t *testing.T) {
	r := NewRegistry()
	a := r.Register()
	b := r.Register()

	r.JoinRoom(a, "lobby")
	_, err := r.BeginCall(a, b)
	require.NoError(t, err)

	room, peer, hadCall := r.Unregister(a)
	assert.Equal(t, "lobby", room)
	assert.Equal(t, b, peer)
	assert.True(t, hadCall)

	// counterparty is back to idle, room no longer lists a
	assert.Equal(t, domain.CallIdle, r.Lookup(b).Phase)
	assert.Empty(t, r.Members("lobby"))

	// double unregister is harmless
	_, _, hadCall = r.Unregister(a)
	assert.False(t, hadCall)
}

func TestRegistry_BeginCall(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *Registry, a, b domain.ClientID)
		callee  func(a, b domain.ClientID) domain.ClientID
		wantErr error
	}{
		{
			name:   "both idle",
			setup:  func(r *Registry, a, b domain.ClientID) {},
			callee: func(a, b domain.ClientID) domain.ClientID { return b },
		},
		{
			name:    "unknown callee",
			setup:   func(r *Registry, a, b domain.ClientID) {},
			callee:  func(a, b domain.ClientID) domain.ClientID { return "nobody" },
			wantErr: ErrUnknownCallee,
		},
		{
			name:    "self call",
			setup:   func(r *Registry, a, b domain.ClientID) {},
			callee:  func(a, b domain.ClientID) domain.ClientID { return a },
			wantErr: ErrBusy,
		},
		{
			name: "callee already ringing",
			setup: func(r *Registry, a, b domain.ClientID) {
				c := r.Register()
				_, err := r.BeginCall(c, b)
				require.NoError(t, err)
			},
			callee:  func(a, b domain.ClientID) domain.ClientID { return b },
			wantErr: ErrBusy,
		},
		{
			name: "caller already in a call",
			setup: func(r *Registry, a, b domain.ClientID) {
				c := r.Register()
				_, err := r.BeginCall(a, c)
				require.NoError(t, err)
			},
			callee:  func(a, b domain.ClientID) domain.ClientID { return b },
			wantErr: ErrBusy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			a := r.Register()
			b := r.Register()
			tt.setup(r, a, b)

			before := r.Lookup(b).Phase
			_, err := r.BeginCall(a, tt.callee(a, b))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				// a failed initiate must not disturb the callee
				assert.Equal(t, before, r.Lookup(b).Phase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.CallRingingCaller, r.Lookup(a).Phase)
			assert.Equal(t, domain.CallRingingCallee, r.Lookup(b).Phase)
		})
	}
}

func TestRegistry_AcceptCall(t *testing.T) {
	r := NewRegistry()
	a := r.Register()
	b := r.Register()

	// nothing ringing yet
	_, err := r.AcceptCall(b)
	require.ErrorIs(t, err, ErrNotRinging)

	_, err = r.BeginCall(a, b)
	require.NoError(t, err)

	// the caller cannot accept its own ring
	_, err = r.AcceptCall(a)
	require.ErrorIs(t, err, ErrNotRinging)

	caller, err := r.AcceptCall(b)
	require.NoError(t, err)
	assert.Equal(t, a, caller)
	assert.Equal(t, domain.CallConnected, r.Lookup(a).Phase)
	assert.Equal(t, domain.CallConnected, r.Lookup(b).Phase)
}

func TestRegistry_EndCallIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Register()
	b := r.Register()

	// ending from idle is a no-op
	_, ended := r.EndCall(a)
	assert.False(t, ended)

	_, err := r.BeginCall(a, b)
	require.NoError(t, err)

	peer, ended := r.EndCall(b)
	require.True(t, ended)
	assert.Equal(t, a, peer)
	assert.Equal(t, domain.CallIdle, r.Lookup(a).Phase)
	assert.Equal(t, domain.CallIdle, r.Lookup(b).Phase)

	_, ended = r.EndCall(b)
	assert.False(t, ended)
}

func TestRegistry_ExpireRinging(t *testing.T) {
	r := NewRegistry()
	a := r.Register()
	b := r.Register()

	epoch, err := r.BeginCall(a, b)
	require.NoError(t, err)

	// an accepted call must not expire
	_, err = r.AcceptCall(b)
	require.NoError(t, err)
	_, ok := r.ExpireRinging(a, epoch)
	assert.False(t, ok)
	assert.Equal(t, domain.CallConnected, r.Lookup(a).Phase)

	r.EndCall(a)

	// a stale epoch must not touch a newer call
	epoch2, err := r.BeginCall(a, b)
	require.NoError(t, err)
	_, ok = r.ExpireRinging(a, epoch)
	assert.False(t, ok)

	callee, ok := r.ExpireRinging(a, epoch2)
	require.True(t, ok)
	assert.Equal(t, b, callee)
	assert.Equal(t, domain.CallIdle, r.Lookup(a).Phase)
	assert.Equal(t, domain.CallIdle, r.Lookup(b).Phase)
}
