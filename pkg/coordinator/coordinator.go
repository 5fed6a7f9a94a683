// Package coordinator deduplicates template builds within a process.
// Concurrent callers asking for the same hash share a single build. A successful build is remembered,
// a failed one is purged so the next caller builds again.
package coordinator

import (
	"context"
	"sync"

	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"golang.org/x/sync/singleflight"
)

// BuildFunc builds the template identified by the hash passed to EnsureBuilt.
type BuildFunc func(ctx context.Context) error

type Coordinator struct {
	group singleflight.Group

	built map[string]struct{}
	mutex sync.RWMutex
}

func New() *Coordinator {
	return &Coordinator{
		built: make(map[string]struct{}),
	}
}

// EnsureBuilt runs build for hash unless it already completed successfully.
// If a build for hash is in flight, the caller waits for it and receives its result.
//
// The build itself runs detached from the cancellation of the caller who started it, as other callers
// may be waiting for it. Each caller stops waiting as soon as its own ctx is done and returns ctx.Err().
func (c *Coordinator) EnsureBuilt(ctx context.Context, hash string, build BuildFunc) error {
	if c.Built(hash) {
		return nil
	}

	log := util.LogFromContext(ctx).With().Str("hash", hash).Logger()
	buildCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(hash, func() (interface{}, error) {
		// another build might have finished between Built and DoChan
		if c.Built(hash) {
			return nil, nil
		}

		log.Debug().Msg("Building template")

		if err := build(buildCtx); err != nil {
			log.Debug().Err(err).Msg("Template build failed, purging")
			return nil, err
		}

		c.mutex.Lock()
		c.built[hash] = struct{}{}
		c.mutex.Unlock()

		log.Debug().Msg("Template built")

		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debug().Err(res.Err).Msg("Joined pending template build")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Built reports whether a build for hash completed successfully.
func (c *Coordinator) Built(hash string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, ok := c.built[hash]

	return ok
}

// Forget drops the remembered build for hash, the next EnsureBuilt builds again.
// A build currently in flight is not affected.
func (c *Coordinator) Forget(hash string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.built, hash)
}

// Reset drops all remembered builds.
func (c *Coordinator) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.built = make(map[string]struct{})
}
