package domain

// CallPhase is the per-identity call state. Transitions:
//
//	idle -> ringing (caller or callee) -> connected -> idle
//
// with any non-idle phase dropping straight back to idle on terminate or
// disconnect.
type CallPhase string

const (
	CallIdle          CallPhase = "idle"
	CallRingingCaller CallPhase = "ringing_caller"
	CallRingingCallee CallPhase = "ringing_callee"
	CallConnected     CallPhase = "connected"
)

func (p CallPhase) Active() bool {
	return p != "" && p != CallIdle
}
