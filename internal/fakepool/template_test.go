package fakepool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/allaboutapps/integresql-client-go/internal/fakepool"
	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/stretchr/testify/assert"
)

func TestTemplateGetSetState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t1 := fakepool.NewTemplate("123", db.DatabaseConfig{})
	assert.Equal(t, fakepool.TemplateStateInit, t1.GetState(ctx))

	assert.True(t, t1.SetState(ctx, fakepool.TemplateStateFinalized))
	assert.Equal(t, fakepool.TemplateStateFinalized, t1.GetState(ctx))

	assert.True(t, t1.SetState(ctx, fakepool.TemplateStateDiscarded))
	assert.Equal(t, fakepool.TemplateStateDiscarded, t1.GetState(ctx))

	// discarded is final
	assert.False(t, t1.SetState(ctx, fakepool.TemplateStateFinalized))
	assert.False(t, t1.SetState(ctx, fakepool.TemplateStateInit))
	assert.Equal(t, fakepool.TemplateStateDiscarded, t1.GetState(ctx))
}

func TestTemplateWaitUntilFinalized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	goroutineNum := 10

	t1 := fakepool.NewTemplate("123", db.DatabaseConfig{})

	var wg sync.WaitGroup
	finalized := make(chan fakepool.TemplateState, goroutineNum)
	timedOut := make(chan fakepool.TemplateState, goroutineNum)

	// these goroutines should get the finalized state after waiting long enough
	for i := 0; i < goroutineNum; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			finalized <- t1.WaitUntilFinalized(ctx, 5*time.Second)
		}()
	}

	// these goroutines should run into the timeout
	for i := 0; i < goroutineNum; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timedOut <- t1.WaitUntilFinalized(ctx, 3*time.Millisecond)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	t1.SetState(ctx, fakepool.TemplateStateFinalized)

	wg.Wait()
	close(finalized)
	close(timedOut)

	for state := range finalized {
		assert.Equal(t, fakepool.TemplateStateFinalized, state)
	}
	for state := range timedOut {
		assert.Equal(t, fakepool.TemplateStateInit, state)
	}

	// settled templates return right away
	assert.Equal(t, fakepool.TemplateStateFinalized, t1.WaitUntilFinalized(ctx, 0))
}

func TestTemplateCollectionPush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	coll := fakepool.NewTemplateCollection()
	cfg := db.DatabaseConfig{Username: "ich", Database: "template_test"}
	hash := "123"

	template1, added := coll.Push(ctx, hash, cfg)
	assert.True(t, added)

	template2, added := coll.Push(ctx, hash, cfg)
	assert.False(t, added)
	assert.Same(t, template1, template2)

	// discarded templates may be initialized again
	template1.SetState(ctx, fakepool.TemplateStateDiscarded)
	template3, added := coll.Push(ctx, hash, cfg)
	assert.True(t, added)
	assert.NotSame(t, template1, template3)
	assert.Equal(t, fakepool.TemplateStateInit, template3.GetState(ctx))

	found, ok := coll.Get(ctx, hash)
	assert.True(t, ok)
	assert.Same(t, template3, found)
	assert.Equal(t, "ich", found.Config.Username)

	coll.RemoveAll(ctx)
	assert.Equal(t, 0, coll.Len())
	assert.Equal(t, fakepool.TemplateStateDiscarded, template3.GetState(ctx))
}
