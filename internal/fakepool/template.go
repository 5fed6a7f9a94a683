package fakepool

import (
	"context"
	"sync"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

type TemplateState int32

const (
	TemplateStateInit TemplateState = iota
	TemplateStateDiscarded
	TemplateStateFinalized
)

func (s TemplateState) String() string {
	switch s {
	case TemplateStateInit:
		return "init"
	case TemplateStateDiscarded:
		return "discarded"
	case TemplateStateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Template tracks the lifecycle of a single template database: Init -> Finalized | Discarded.
type Template struct {
	db.Database
	state TemplateState

	// settled is closed once the template leaves TemplateStateInit.
	settled chan struct{}
	mutex   sync.RWMutex
}

func NewTemplate(hash string, config db.DatabaseConfig) *Template {
	return &Template{
		Database: db.Database{TemplateHash: hash, Config: config},
		state:    TemplateStateInit,
		settled:  make(chan struct{}),
	}
}

// GetState locks the template and checks its state.
func (t *Template) GetState(_ context.Context) TemplateState {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.state
}

// SetState transitions the template and wakes up everyone waiting for it to settle.
// A discarded template can't transition anymore, ok=false is returned then.
func (t *Template) SetState(_ context.Context, newState TemplateState) (ok bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.state == newState {
		return true
	}

	if t.state == TemplateStateDiscarded || newState == TemplateStateInit {
		return false
	}

	if t.state == TemplateStateInit {
		close(t.settled)
	}
	t.state = newState

	return true
}

// WaitUntilFinalized returns directly if the template is already settled.
// Otherwise it waits up to timeout for the template to leave TemplateStateInit
// and returns the state it observed last.
func (t *Template) WaitUntilFinalized(ctx context.Context, timeout time.Duration) TemplateState {
	currentState := t.GetState(ctx)
	if currentState != TemplateStateInit {
		return currentState
	}

	newState, err := util.WaitWithTimeout(ctx, timeout, func(ctx context.Context) (TemplateState, error) {
		select {
		case <-t.settled:
			return t.GetState(ctx), nil
		case <-ctx.Done():
			return TemplateStateInit, ctx.Err()
		}
	})
	if err != nil {
		return currentState
	}

	return newState
}
