package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quickchat/quickchat/internal/core/domain"
)

var (
	ErrUnknownCallee = errors.New("callee is not connected")
	ErrBusy          = errors.New("party is already in a call")
	ErrNotRinging    = errors.New("no ringing call to accept")
)

type callState struct {
	phase domain.CallPhase
	peer  domain.ClientID
	epoch uint64
}

type entry struct {
	room string
	call callState
}

// Snapshot is a read-only view of one identity's derived state.
type Snapshot struct {
	Room  string
	Phase domain.CallPhase
	Peer  domain.ClientID
}

// Registry is the single source of truth for identity -> room and
// identity -> call state. Every mutation happens under one lock so state
// transitions are atomic with respect to interleaved handling of other
// connections' events. Room and call services mutate only through it.
type Registry struct {
	mu    sync.Mutex
	conns map[domain.ClientID]*entry
	rooms map[string]map[domain.ClientID]struct{}
	epoch uint64
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.ClientID]*entry),
		rooms: make(map[string]map[domain.ClientID]struct{}),
	}
}

// Register allocates a fresh identity with no room and an idle call state.
func (r *Registry) Register() domain.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := domain.NewClientID()
	r.conns[id] = &entry{call: callState{phase: domain.CallIdle}}
	return id
}

// Unregister removes the identity and all derived state in one step. It
// returns the room the identity was in and, if a call was in progress, the
// counterparty, so the caller can emit a termination notice.
func (r *Registry) Unregister(id domain.ClientID) (room string, peer domain.ClientID, hadCall bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok {
		return "", "", false
	}
	room = e.room
	r.dropFromRoom(id, e)
	if e.call.phase.Active() {
		peer = e.call.peer
		hadCall = true
		if pe, ok := r.conns[peer]; ok {
			pe.call = callState{phase: domain.CallIdle}
		}
	}
	delete(r.conns, id)
	return room, peer, hadCall
}

// Lookup returns a snapshot of the identity's state. Looking up an identity
// that was never registered (or already unregistered) is a programming
// error, not a recoverable condition.
func (r *Registry) Lookup(id domain.ClientID) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.must(id)
	return Snapshot{Room: e.room, Phase: e.call.phase, Peer: e.call.peer}
}

// JoinRoom moves the identity into room, leaving any previous room first.
// Rejoining the current room is a no-op.
func (r *Registry) JoinRoom(id domain.ClientID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.must(id)
	if e.room == room {
		return
	}
	r.dropFromRoom(id, e)
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[domain.ClientID]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	e.room = room
}

// LeaveRoom is a no-op if the identity is not in any room.
func (r *Registry) LeaveRoom(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropFromRoom(id, r.must(id))
}

// Members returns the room membership at this instant. Empty or unknown
// rooms yield an empty slice.
func (r *Registry) Members(room string) []domain.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]domain.ClientID, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		members = append(members, id)
	}
	return members
}

// BeginCall transitions caller and callee from idle to their ringing roles
// in one step. It returns a call epoch that later guards the ring timer
// against firing on a newer call.
func (r *Registry) BeginCall(caller, callee domain.ClientID) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ce := r.must(caller)
	te, ok := r.conns[callee]
	if !ok {
		return 0, ErrUnknownCallee
	}
	if caller == callee || ce.call.phase.Active() || te.call.phase.Active() {
		return 0, ErrBusy
	}

	r.epoch++
	ce.call = callState{phase: domain.CallRingingCaller, peer: callee, epoch: r.epoch}
	te.call = callState{phase: domain.CallRingingCallee, peer: caller, epoch: r.epoch}
	return r.epoch, nil
}

// AcceptCall transitions a ringing callee and its caller to connected and
// returns the caller.
func (r *Registry) AcceptCall(callee domain.ClientID) (domain.ClientID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	te := r.must(callee)
	if te.call.phase != domain.CallRingingCallee {
		return "", ErrNotRinging
	}
	caller := te.call.peer
	ce, ok := r.conns[caller]
	if !ok {
		// caller vanished between ring and answer; reset the callee
		te.call = callState{phase: domain.CallIdle}
		return "", ErrNotRinging
	}
	te.call.phase = domain.CallConnected
	ce.call.phase = domain.CallConnected
	return caller, nil
}

// EndCall resets both parties to idle from any non-idle state and returns
// the counterparty. Calling it from idle is a no-op.
func (r *Registry) EndCall(id domain.ClientID) (domain.ClientID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok || !e.call.phase.Active() {
		return "", false
	}
	peer := e.call.peer
	e.call = callState{phase: domain.CallIdle}
	if pe, ok := r.conns[peer]; ok {
		pe.call = callState{phase: domain.CallIdle}
	}
	return peer, true
}

// ExpireRinging ends the call identified by epoch if it is still ringing.
// It returns both parties so each can be notified.
func (r *Registry) ExpireRinging(caller domain.ClientID, epoch uint64) (callee domain.ClientID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.conns[caller]
	if !found || e.call.epoch != epoch || e.call.phase != domain.CallRingingCaller {
		return "", false
	}
	callee = e.call.peer
	e.call = callState{phase: domain.CallIdle}
	if te, found := r.conns[callee]; found {
		te.call = callState{phase: domain.CallIdle}
	}
	return callee, true
}

func (r *Registry) must(id domain.ClientID) *entry {
	e, ok := r.conns[id]
	if !ok {
		panic(fmt.Sprintf("registry: unknown client %s", id))
	}
	return e
}

// dropFromRoom removes id from its current room, deleting the member set
// when it empties. Caller holds r.mu.
func (r *Registry) dropFromRoom(id domain.ClientID, e *entry) {
	if e.room == "" {
		return
	}
	if members, ok := r.rooms[e.room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, e.room)
		}
	}
	e.room = ""
}
