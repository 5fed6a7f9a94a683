package provisioner

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
)

// InitFunc initializes the template database reachable via connectionString.
// It runs at most once per template hash and process, unless it fails.
type InitFunc func(ctx context.Context, connectionString string) error

// SeedFunc fills the freshly migrated template database with data.
type SeedFunc func(ctx context.Context, db *sql.DB) error

// Backend is a variant of template storage a Provisioner can orchestrate.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string
	// DriverName is the database/sql driver connection strings of this backend are meant for.
	DriverName() string
	// NormalizeFingerprint turns a fingerprint into the hash used to identify the template.
	NormalizeFingerprint(fingerprint string) (string, error)

	// BuildTemplate reserves the template for hash and runs init on it. If the template is owned by
	// someone else or exists already, init is skipped. The template must be discarded if init fails.
	BuildTemplate(ctx context.Context, hash string, init InitFunc) error
	// AcquireInstance returns a fresh copy of the ready template.
	AcquireInstance(ctx context.Context, hash string) (db.TestDatabase, error)
	// AdaptConfig applies the configured connection overrides.
	AdaptConfig(config db.DatabaseConfig) db.DatabaseConfig
	// ConnectionString formats config for DriverName.
	ConnectionString(config db.DatabaseConfig) string
	// WaitUntilReady blocks until connectionString accepts connections.
	WaitUntilReady(ctx context.Context, connectionString string) error

	// Release hands the test database back for reuse as is.
	Release(ctx context.Context, test db.TestDatabase) error
	// Remove ends the lifecycle of the test database.
	Remove(ctx context.Context, test db.TestDatabase) error
}

// Descriptor describes a test database handed out by a Provisioner.
type Descriptor struct {
	Hash             string
	ID               int
	Config           db.DatabaseConfig
	ConnectionString string
}

// SeedOptions describe a template built from a set of schema migrations and a seed function.
type SeedOptions struct {
	// Name distinguishes templates built from the same migrations, e.g. with different seed data.
	Name string
	// Migrations holds golang-migrate compatible "<version>_<title>.up.sql" files at its root.
	// Changing them changes the fingerprint.
	Migrations fs.FS
	// Identity is added to the fingerprint, e.g. a version string of the code under test.
	Identity string
	// DisableSchemaCreation skips applying Migrations to the template.
	DisableSchemaCreation bool
	// Seed runs after the migrations were applied, optional.
	Seed SeedFunc
}
