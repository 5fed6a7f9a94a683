package provisioner

import (
	"context"
	"sync"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

// State of a single test database acquisition.
//
//	Idle -> Reserving -> (Seeding -> Finalizing) | JoiningExisting -> TemplateReady
//	     -> CopyRequested -> Polling -> Available -> Released | Removed
type State int

const (
	StateIdle State = iota
	StateReserving
	StateSeeding
	StateFinalizing
	StateJoiningExisting
	StateTemplateReady
	StateCopyRequested
	StatePolling
	StateAvailable
	StateReleased
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReserving:
		return "reserving"
	case StateSeeding:
		return "seeding"
	case StateFinalizing:
		return "finalizing"
	case StateJoiningExisting:
		return "joining-existing"
	case StateTemplateReady:
		return "template-ready"
	case StateCopyRequested:
		return "copy-requested"
	case StatePolling:
		return "polling"
	case StateAvailable:
		return "available"
	case StateReleased:
		return "released"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition may leave s.
func (s State) Terminal() bool {
	return s == StateReleased || s == StateRemoved
}

// TransitionFunc observes state transitions, e.g. for tests or metrics.
type TransitionFunc func(hash string, from State, to State)

// acquisition tracks the state of one EnsureInstance call.
// Seeding and finalizing are reported from the build goroutine, so the state is guarded.
type acquisition struct {
	ctx     context.Context
	hash    string
	observe TransitionFunc

	state State
	mutex sync.Mutex
}

func newAcquisition(ctx context.Context, hash string, observe TransitionFunc) *acquisition {
	return &acquisition{ctx: ctx, hash: hash, observe: observe, state: StateIdle}
}

func (a *acquisition) transition(to State) {
	a.mutex.Lock()
	from := a.state
	a.state = to
	a.mutex.Unlock()

	util.LogFromContext(a.ctx).Debug().
		Str("hash", a.hash).
		Stringer("from", from).
		Stringer("to", to).
		Msg("Acquisition state changed")

	if a.observe != nil {
		a.observe(a.hash, from, to)
	}
}
