// Package provisionertest wires a provisioner.Provisioner into Go tests.
//
// Test databases acquired through these helpers are removed automatically once the test and all
// its subtests finished. Removed databases are never handed out again as they were left by the test. Do not acquire a test database for a fingerprint from within the seed
// function of the very same fingerprint: the nested call waits for the build it is part of and
// never returns.
package provisionertest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/allaboutapps/integresql-client-go/pkg/provisioner"
)

// MustEnsureInstance returns a fresh test database for opts and fails the test if none can be provisioned.
// The test database is removed on cleanup, as the test may have modified it.
// Tests which guarantee to leave the database untouched may call p.Release themselves instead.
func MustEnsureInstance(t testing.TB, p *provisioner.Provisioner, opts provisioner.SeedOptions) provisioner.Descriptor {
	t.Helper()

	d, err := p.EnsureInstance(context.Background(), opts)
	if err != nil {
		t.Fatalf("failed to provision test database: %v", err)
	}

	t.Cleanup(func() {
		if err := p.Remove(context.Background(), d.ConnectionString); err != nil {
			t.Errorf("failed to remove test database %d: %v", d.ID, err)
		}
	})

	return d
}

// WithTestDatabase runs closure with an open connection pool to a fresh test database for opts.
func WithTestDatabase(t testing.TB, p *provisioner.Provisioner, opts provisioner.SeedOptions, closure func(db *sql.DB)) {
	t.Helper()

	d := MustEnsureInstance(t, p, opts)

	db, err := p.Open(context.Background(), d)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// cleanups run in reverse order, so the pool is closed before the database gets removed
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database %d: %v", d.ID, err)
		}
	})

	closure(db)
}
