// Package fakepool keeps templates and test databases of an IntegreSQL pooling service in memory.
// No database is ever created, the reported connection details are taken from the PoolConfig.
// It backs the fake HTTP service used for tests and local development.
package fakepool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

var (
	ErrNotReady                   = errors.New("pool not ready")
	ErrTemplateAlreadyInitialized = errors.New("template is already initialized")
	ErrTemplateNotFound           = errors.New("template not found")
	ErrTestNotFound               = errors.New("test database not found")
	ErrTemplateDiscarded          = errors.New("template is discarded, can't be used")
	ErrInvalidTemplateState       = errors.New("unexpected template state")
)

// Stats counts the calls received per operation.
type Stats struct {
	InitializeTemplate   int64 `json:"initializeTemplate"`
	FinalizeTemplate     int64 `json:"finalizeTemplate"`
	DiscardTemplate      int64 `json:"discardTemplate"`
	GetTestDatabase      int64 `json:"getTestDatabase"`
	ReturnTestDatabase   int64 `json:"returnTestDatabase"`
	RecreateTestDatabase int64 `json:"recreateTestDatabase"`
	ResetAllTracking     int64 `json:"resetAllTracking"`
}

type counters struct {
	initialize, finalize, discard, get, release, recreate, reset atomic.Int64
}

type Pool struct {
	config    PoolConfig
	ready     atomic.Bool
	templates *TemplateCollection

	pools map[string]*HashPool // map[hash]
	mutex sync.RWMutex

	calls counters
}

func New(config PoolConfig) *Pool {
	p := &Pool{
		config:    config,
		templates: NewTemplateCollection(),
		pools:     make(map[string]*HashPool),
	}
	p.ready.Store(true)

	return p
}

func DefaultFromEnv() *Pool {
	return New(DefaultPoolConfigFromEnv())
}

// Ready reports whether the pool accepts calls. A pool which is not ready simulates an unavailable PostgreSQL backend.
func (p *Pool) Ready() bool {
	return p.ready.Load()
}

func (p *Pool) SetReady(ready bool) {
	p.ready.Store(ready)
}

func (p *Pool) Stats() Stats {
	return Stats{
		InitializeTemplate:   p.calls.initialize.Load(),
		FinalizeTemplate:     p.calls.finalize.Load(),
		DiscardTemplate:      p.calls.discard.Load(),
		GetTestDatabase:      p.calls.get.Load(),
		ReturnTestDatabase:   p.calls.release.Load(),
		RecreateTestDatabase: p.calls.recreate.Load(),
		ResetAllTracking:     p.calls.reset.Load(),
	}
}

// TemplateState returns the state of the template with hash, found=false if it is unknown.
func (p *Pool) TemplateState(ctx context.Context, hash string) (state TemplateState, found bool) {
	template, found := p.templates.Get(ctx, hash)
	if !found {
		return TemplateStateInit, false
	}

	return template.GetState(ctx), true
}

// Recreated reports how often the test database was recreated from its template.
func (p *Pool) Recreated(hash string, id int) int {
	pool, err := p.getPool(hash)
	if err != nil {
		return 0
	}

	return pool.Recreated(id)
}

func (p *Pool) InitializeTemplateDatabase(ctx context.Context, hash string) (db.TemplateDatabase, error) {
	p.calls.initialize.Add(1)

	if !p.Ready() {
		return db.TemplateDatabase{}, ErrNotReady
	}

	templateConfig := p.config.DatabaseConfig
	templateConfig.Database = p.makeTemplateDatabaseName(hash)

	template, added := p.templates.Push(ctx, hash, templateConfig)
	if !added {
		return db.TemplateDatabase{}, ErrTemplateAlreadyInitialized
	}

	// a re-initialized template starts with an empty pool
	p.mutex.Lock()
	delete(p.pools, hash)
	p.mutex.Unlock()

	util.LogFromContext(ctx).Debug().Str("hash", hash).Str("database", templateConfig.Database).Msg("Template initialized")

	return db.TemplateDatabase{Database: template.Database}, nil
}

func (p *Pool) FinalizeTemplateDatabase(ctx context.Context, hash string) (db.TemplateDatabase, error) {
	p.calls.finalize.Add(1)

	if !p.Ready() {
		return db.TemplateDatabase{}, ErrNotReady
	}

	template, found := p.templates.Get(ctx, hash)
	if !found {
		return db.TemplateDatabase{}, ErrTemplateNotFound
	}

	// early bailout if we are already ready (multiple calls)
	if template.GetState(ctx) == TemplateStateFinalized {
		return db.TemplateDatabase{Database: template.Database}, ErrTemplateAlreadyInitialized
	}

	// disallow transition from discarded to ready
	if !template.SetState(ctx, TemplateStateFinalized) {
		return db.TemplateDatabase{}, ErrTemplateDiscarded
	}

	p.mutex.Lock()
	p.pools[hash] = NewHashPool(template.Database, p.makeTestDatabasePrefix(), p.config.TestDatabaseMaxPoolSize)
	p.mutex.Unlock()

	util.LogFromContext(ctx).Debug().Str("hash", hash).Msg("Template finalized")

	return db.TemplateDatabase{Database: template.Database}, nil
}

func (p *Pool) DiscardTemplateDatabase(ctx context.Context, hash string) error {
	p.calls.discard.Add(1)

	if !p.Ready() {
		return ErrNotReady
	}

	template, found := p.templates.Get(ctx, hash)
	if !found || template.GetState(ctx) == TemplateStateDiscarded {
		return ErrTemplateNotFound
	}

	// discarded templates are kept, so later requests can be answered with ErrTemplateDiscarded
	template.SetState(ctx, TemplateStateDiscarded)

	p.mutex.Lock()
	delete(p.pools, hash)
	p.mutex.Unlock()

	util.LogFromContext(ctx).Debug().Str("hash", hash).Msg("Template discarded")

	return nil
}

func (p *Pool) GetTestDatabase(ctx context.Context, hash string) (db.TestDatabase, error) {
	p.calls.get.Add(1)

	if !p.Ready() {
		return db.TestDatabase{}, ErrNotReady
	}

	template, found := p.templates.Get(ctx, hash)
	if !found {
		return db.TestDatabase{}, ErrTemplateNotFound
	}

	// if the template has been discarded/not finalized yet,
	// no DB should be returned, even if already in the pool
	switch state := template.WaitUntilFinalized(ctx, p.config.TemplateFinalizeTimeout); state {
	case TemplateStateFinalized:
	case TemplateStateDiscarded:
		return db.TestDatabase{}, ErrTemplateDiscarded
	default:
		return db.TestDatabase{}, fmt.Errorf("%w: template %q is %s", ErrInvalidTemplateState, hash, state)
	}

	pool, err := p.getPool(hash)
	if err != nil {
		return db.TestDatabase{}, err
	}

	testDB, err := pool.GetTestDatabase()
	if err != nil {
		return db.TestDatabase{}, err
	}

	util.LogFromContext(ctx).Debug().Str("hash", hash).Int("id", testDB.ID).Msg("Test database handed out")

	return testDB, nil
}

func (p *Pool) ReturnTestDatabase(ctx context.Context, hash string, id int) error {
	p.calls.release.Add(1)

	return p.releaseTestDatabase(ctx, hash, id, false)
}

func (p *Pool) RecreateTestDatabase(ctx context.Context, hash string, id int) error {
	p.calls.recreate.Add(1)

	return p.releaseTestDatabase(ctx, hash, id, true)
}

// ResetAllTracking forgets all templates and test databases.
func (p *Pool) ResetAllTracking(ctx context.Context) error {
	p.calls.reset.Add(1)

	if !p.Ready() {
		return ErrNotReady
	}

	p.templates.RemoveAll(ctx)

	p.mutex.Lock()
	p.pools = make(map[string]*HashPool)
	p.mutex.Unlock()

	return nil
}

func (p *Pool) releaseTestDatabase(ctx context.Context, hash string, id int, recreate bool) error {
	if !p.Ready() {
		return ErrNotReady
	}

	if _, found := p.templates.Get(ctx, hash); !found {
		return ErrTemplateNotFound
	}

	pool, err := p.getPool(hash)
	if err != nil {
		return err
	}

	if recreate {
		err = pool.RecreateTestDatabase(id)
	} else {
		err = pool.ReturnTestDatabase(id)
	}

	if errors.Is(err, ErrInvalidIndex) {
		return ErrTestNotFound
	}

	return err
}

func (p *Pool) getPool(hash string) (*HashPool, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	pool, ok := p.pools[hash]
	if !ok {
		// template was never finalized or has been discarded
		return nil, ErrTemplateNotFound
	}

	return pool, nil
}

func (p *Pool) makeTemplateDatabaseName(hash string) string {
	return fmt.Sprintf("%s_%s_%s", p.config.DatabasePrefix, p.config.TemplateDatabasePrefix, hash)
}

func (p *Pool) makeTestDatabasePrefix() string {
	return fmt.Sprintf("%s_%s_", p.config.DatabasePrefix, p.config.TestDatabasePrefix)
}
