// Package provisioner hands out disposable, pre-seeded test databases.
//
// A template database is built once per fingerprint (schema migrations plus seed data) and every
// caller receives its own isolated copy. Builds are deduplicated within the process by a
// coordinator.Coordinator and across processes by the Backend (e.g. the IntegreSQL pooling service).
// Every issued connection string is recorded in a registry.Registry, so Release and Remove only need
// the connection string the caller was given.
package provisioner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/allaboutapps/integresql-client-go/pkg/client"
	"github.com/allaboutapps/integresql-client-go/pkg/coordinator"
	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/fingerprint"
	"github.com/allaboutapps/integresql-client-go/pkg/registry"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
)

type Options struct {
	// Coordinator deduplicates template builds, a new one is created if nil.
	// Share it between provisioners of the same backend to build each template only once.
	Coordinator *coordinator.Coordinator
	// Registry records issued connection strings, a new one is created if nil.
	Registry *registry.Registry
	// OnTransition is called for every state change of an acquisition, optional.
	OnTransition TransitionFunc
}

type Provisioner struct {
	backend      Backend
	coordinator  *coordinator.Coordinator
	registry     *registry.Registry
	onTransition TransitionFunc
}

func New(backend Backend) *Provisioner {
	return NewWithOptions(backend, Options{})
}

func NewWithOptions(backend Backend, opts Options) *Provisioner {
	p := &Provisioner{
		backend:      backend,
		coordinator:  opts.Coordinator,
		registry:     opts.Registry,
		onTransition: opts.OnTransition,
	}

	if p.coordinator == nil {
		p.coordinator = coordinator.New()
	}

	if p.registry == nil {
		p.registry = registry.New()
	}

	return p
}

func (p *Provisioner) Backend() Backend {
	return p.backend
}

// EnsureInstance builds the template described by opts (unless it exists already) and returns a fresh copy of it.
// The fingerprint is derived from opts.Name, the migrations in opts.Migrations and opts.Identity.
func (p *Provisioner) EnsureInstance(ctx context.Context, opts SeedOptions) (Descriptor, error) {
	var signature string
	if opts.Migrations != nil {
		var err error
		signature, err = fingerprint.Migrations(opts.Migrations)
		if err != nil {
			return Descriptor{}, p.wrap(PhaseFingerprint, "", err)
		}
	}

	return p.EnsureInstanceAdvanced(ctx, fingerprint.Compute(opts.Name, signature, opts.Identity), p.seedInit(opts))
}

// EnsureInstanceAdvanced builds the template identified by fp using init (unless it exists already)
// and returns a fresh copy of it. init receives the connection string of the template database.
//
// Callers must not call EnsureInstanceAdvanced for fp from within init: the nested call would wait for its own build.
func (p *Provisioner) EnsureInstanceAdvanced(ctx context.Context, fp string, init InitFunc) (Descriptor, error) {
	hash, err := p.backend.NormalizeFingerprint(fp)
	if err != nil {
		return Descriptor{}, p.wrap(PhaseFingerprint, "", err)
	}

	log := util.LogFromContext(ctx).With().Str("backend", p.backend.Name()).Str("hash", hash).Logger()
	acq := newAcquisition(ctx, hash, p.onTransition)

	acq.transition(StateReserving)

	var seeded atomic.Bool
	if err := p.coordinator.EnsureBuilt(ctx, hash, func(ctx context.Context) error {
		return p.backend.BuildTemplate(ctx, hash, func(ctx context.Context, connectionString string) error {
			seeded.Store(true)
			acq.transition(StateSeeding)

			if err := init(ctx, connectionString); err != nil {
				return err
			}

			acq.transition(StateFinalizing)

			return nil
		})
	}); err != nil {
		return Descriptor{}, p.wrap(PhaseBuild, hash, err)
	}

	if !seeded.Load() {
		acq.transition(StateJoiningExisting)
	}
	acq.transition(StateTemplateReady)

	acq.transition(StateCopyRequested)
	test, err := p.backend.AcquireInstance(ctx, hash)
	if err != nil {
		// the template we joined or built is gone, the next caller has to build it again
		if errors.Is(err, client.ErrTemplateDiscarded) || errors.Is(err, client.ErrTemplateNotFound) {
			log.Debug().Err(err).Msg("Template vanished, forgetting it")
			p.coordinator.Forget(hash)
		}

		return Descriptor{}, p.wrap(PhaseAcquire, hash, err)
	}

	config := p.backend.AdaptConfig(test.Config)
	d := Descriptor{
		Hash:             test.TemplateHash,
		ID:               test.ID,
		Config:           config,
		ConnectionString: p.backend.ConnectionString(config),
	}

	if !p.registry.Register(d.ConnectionString, d.Hash, d.ID) {
		existing, _ := p.registry.Lookup(d.ConnectionString)
		log.Warn().
			Int("id", d.ID).
			Int("registered_id", existing.ID).
			Str("registered_hash", existing.Hash).
			Msg("Connection string was already issued for another test database, keeping the first registration")
	}

	acq.transition(StatePolling)
	if err := p.backend.WaitUntilReady(ctx, d.ConnectionString); err != nil {
		return Descriptor{}, p.wrap(PhaseReadiness, hash, err)
	}

	acq.transition(StateAvailable)
	log.Debug().Int("id", d.ID).Msg("Test database available")

	return d, nil
}

// Release hands the test database behind connectionString back for reuse.
// The caller is responsible for leaving it in the state it was received in.
func (p *Provisioner) Release(ctx context.Context, connectionString string) error {
	return p.finish(ctx, connectionString, PhaseRelease, StateReleased, p.backend.Release)
}

// Remove ends the lifecycle of the test database behind connectionString.
func (p *Provisioner) Remove(ctx context.Context, connectionString string) error {
	return p.finish(ctx, connectionString, PhaseRemove, StateRemoved, p.backend.Remove)
}

// Lookup returns the template hash and test database ID connectionString was issued for.
func (p *Provisioner) Lookup(connectionString string) (registry.Entry, bool) {
	return p.registry.Lookup(connectionString)
}

// AdaptConnectionString formats d for the database/sql driver of the backend, applying the configured overrides.
func (p *Provisioner) AdaptConnectionString(d Descriptor) string {
	return p.backend.ConnectionString(p.backend.AdaptConfig(d.Config))
}

// Open opens a *sql.DB for d. The caller must close it.
func (p *Provisioner) Open(ctx context.Context, d Descriptor) (*sql.DB, error) {
	sqlDB, err := sql.Open(p.backend.DriverName(), p.AdaptConnectionString(d))
	if err != nil {
		return nil, fmt.Errorf("failed to open test database %d: %w", d.ID, err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to test database %d: %w", d.ID, err)
	}

	return sqlDB, nil
}

func (p *Provisioner) finish(ctx context.Context, connectionString string, phase Phase, state State, fn func(context.Context, db.TestDatabase) error) error {
	entry, ok := p.registry.Lookup(connectionString)
	if !ok {
		return p.wrap(phase, "", ErrUnknownDescriptor)
	}

	test := db.TestDatabase{
		Database: db.Database{TemplateHash: entry.Hash},
		ID:       entry.ID,
	}

	if err := fn(ctx, test); err != nil {
		return p.wrap(phase, entry.Hash, err)
	}

	util.LogFromContext(ctx).Debug().
		Str("backend", p.backend.Name()).
		Str("hash", entry.Hash).
		Int("id", entry.ID).
		Stringer("state", state).
		Msg("Test database lifecycle ended")

	if p.onTransition != nil {
		p.onTransition(entry.Hash, StateAvailable, state)
	}

	return nil
}

// seedInit builds the template: apply migrations, then run the seed function.
func (p *Provisioner) seedInit(opts SeedOptions) InitFunc {
	return func(ctx context.Context, connectionString string) error {
		if opts.Migrations != nil && !opts.DisableSchemaCreation {
			last, err := fingerprint.LastMigration(opts.Migrations)
			if err != nil {
				return err
			}

			if len(last) > 0 {
				if err := applyMigrations(ctx, p.backend.DriverName(), connectionString, opts.Migrations); err != nil {
					return err
				}
			}
		}

		if opts.Seed == nil {
			return nil
		}

		sqlDB, err := sql.Open(p.backend.DriverName(), connectionString)
		if err != nil {
			return fmt.Errorf("failed to open template database: %w", err)
		}

		// Sessions opened after the seeding connection is closed see all types created by the migrations.
		defer sqlDB.Close()

		if err := opts.Seed(ctx, sqlDB); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}

		return nil
	}
}

func (p *Provisioner) wrap(phase Phase, hash string, err error) error {
	// errors of a nested provisioner keep their original phase
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return &Error{Phase: phase, Hash: hash, Backend: p.backend.Name(), Err: err}
}
