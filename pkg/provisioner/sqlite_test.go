package provisioner_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/allaboutapps/integresql-client-go/pkg/provisioner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func schemaV1() fstest.MapFS {
	return fstest.MapFS{
		"1_users.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"),
		},
		"1_users.down.sql": &fstest.MapFile{
			Data: []byte("DROP TABLE users;"),
		},
	}
}

func seedUsers(seeds *atomic.Int32) provisioner.SeedFunc {
	return func(ctx context.Context, db *sql.DB) error {
		seeds.Add(1)
		_, err := db.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (1, 'John'), (2, 'Bill')")
		return err
	}
}

func newSQLite(t *testing.T, dir string) *provisioner.SQLiteBackend {
	t.Helper()

	backend, err := provisioner.NewSQLite(provisioner.SQLiteConfig{Dir: dir, UseMD5Hash: true, DeleteFilesOnClose: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, backend.Close())
	})

	return backend
}

func queryUserNames(ctx context.Context, t *testing.T, db *sql.DB) []string {
	t.Helper()

	rows, err := db.QueryContext(ctx, "SELECT name FROM users ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	return names
}

func TestSQLiteSchemaV1(t *testing.T) {
	dir := t.TempDir()
	backend := newSQLite(t, dir)
	p := provisioner.New(backend)

	var seeds atomic.Int32
	opts := provisioner.SeedOptions{
		Name:       "SchemaV1",
		Migrations: schemaV1(),
		Seed:       seedUsers(&seeds),
	}

	descriptors := make([]provisioner.Descriptor, 4)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range descriptors {
		i := i
		g.Go(func() error {
			d, err := p.EnsureInstance(ctx, opts)
			if err != nil {
				return err
			}
			descriptors[i] = d

			sqlDB, err := p.Open(ctx, d)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			// copies are isolated from each other
			_, err = sqlDB.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (?, ?)", 100+i, "Copy")
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), seeds.Load())

	paths := make(map[string]struct{})
	for _, d := range descriptors {
		paths[d.Config.Database] = struct{}{}
		assert.FileExists(t, d.Config.Database)

		sqlDB, err := p.Open(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, []string{"John", "Bill", "Copy"}, queryUserNames(context.Background(), t, sqlDB))
		require.NoError(t, sqlDB.Close())
	}
	assert.Len(t, paths, 4)

	assert.FileExists(t, backend.TemplatePath(descriptors[0].Hash))

	for _, d := range descriptors {
		require.NoError(t, p.Release(context.Background(), d.ConnectionString))
		assert.NoFileExists(t, d.Config.Database)
	}

	// a new process reuses the template file without seeding again
	var joined []provisioner.State
	reuse := provisioner.NewWithOptions(newSQLite(t, dir), provisioner.Options{
		OnTransition: func(_ string, _ provisioner.State, to provisioner.State) {
			joined = append(joined, to)
		},
	})

	d, err := reuse.EnsureInstance(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), seeds.Load())
	assert.Contains(t, joined, provisioner.StateJoiningExisting)

	sqlDB, err := reuse.Open(context.Background(), d)
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.Equal(t, []string{"John", "Bill"}, queryUserNames(context.Background(), t, sqlDB))
}

func TestSQLiteMigrationChangeChangesTemplate(t *testing.T) {
	dir := t.TempDir()
	p := provisioner.New(newSQLite(t, dir))
	ctx := context.Background()

	var seeds atomic.Int32
	v1, err := p.EnsureInstance(ctx, provisioner.SeedOptions{Name: "Schema", Migrations: schemaV1(), Seed: seedUsers(&seeds)})
	require.NoError(t, err)

	v2Migrations := schemaV1()
	v2Migrations["2_email.up.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE users ADD COLUMN email TEXT;")}

	v2, err := p.EnsureInstance(ctx, provisioner.SeedOptions{Name: "Schema", Migrations: v2Migrations, Seed: seedUsers(&seeds)})
	require.NoError(t, err)

	assert.NotEqual(t, v1.Hash, v2.Hash)
	assert.Equal(t, int32(2), seeds.Load())

	sqlDB, err := p.Open(ctx, v2)
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = sqlDB.ExecContext(ctx, "UPDATE users SET email = 'john@example.com' WHERE id = 1")
	require.NoError(t, err)
}

func TestSQLiteSeedFailureLeavesNoTemplate(t *testing.T) {
	dir := t.TempDir()
	backend := newSQLite(t, dir)
	p := provisioner.New(backend)
	ctx := context.Background()

	errSeed := errors.New("seed failed on purpose")
	var attempts atomic.Int32
	opts := provisioner.SeedOptions{
		Name:       "Flaky",
		Migrations: schemaV1(),
		Seed: func(ctx context.Context, db *sql.DB) error {
			if attempts.Add(1) == 1 {
				return errSeed
			}
			_, err := db.ExecContext(ctx, "INSERT INTO users (id, name) VALUES (1, 'John')")
			return err
		},
	}

	_, err := p.EnsureInstance(ctx, opts)
	require.ErrorIs(t, err, errSeed)
	assert.Equal(t, provisioner.PhaseBuild, provisioner.PhaseOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	d, err := p.EnsureInstance(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.FileExists(t, backend.TemplatePath(d.Hash))
}

func TestSQLiteWithoutMigrations(t *testing.T) {
	p := provisioner.New(newSQLite(t, t.TempDir()))
	ctx := context.Background()

	d, err := p.EnsureInstance(ctx, provisioner.SeedOptions{
		Name: "NoMigrations",
		Seed: func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, "CREATE TABLE things (id INTEGER PRIMARY KEY)")
			return err
		},
	})
	require.NoError(t, err)

	sqlDB, err := p.Open(ctx, d)
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = sqlDB.ExecContext(ctx, "INSERT INTO things (id) VALUES (1)")
	require.NoError(t, err)

	// schema creation disabled: the migrations only contribute to the fingerprint
	skipped, err := p.EnsureInstance(ctx, provisioner.SeedOptions{
		Name:                  "Skipped",
		Migrations:            schemaV1(),
		DisableSchemaCreation: true,
	})
	require.NoError(t, err)

	skippedDB, err := p.Open(ctx, skipped)
	require.NoError(t, err)
	defer skippedDB.Close()

	_, err = skippedDB.ExecContext(ctx, "SELECT * FROM users")
	require.Error(t, err)
}

func TestSQLiteRemoveAndClose(t *testing.T) {
	dir := t.TempDir()
	backend, err := provisioner.NewSQLite(provisioner.SQLiteConfig{Dir: filepath.Join(dir, "nested"), UseMD5Hash: false, DeleteFilesOnClose: true})
	require.NoError(t, err)

	p := provisioner.New(backend)
	ctx := context.Background()
	opts := provisioner.SeedOptions{Name: "Plain", Migrations: schemaV1()}

	removed, err := p.EnsureInstance(ctx, opts)
	require.NoError(t, err)
	kept, err := p.EnsureInstance(ctx, opts)
	require.NoError(t, err)

	assert.NotEqual(t, removed.ID, kept.ID)
	assert.NotEqual(t, removed.ConnectionString, kept.ConnectionString)

	require.NoError(t, p.Remove(ctx, removed.ConnectionString))
	assert.NoFileExists(t, removed.Config.Database)
	assert.FileExists(t, kept.Config.Database)

	// the registry still knows the connection string, the backend does not
	err = p.Remove(ctx, removed.ConnectionString)
	require.ErrorIs(t, err, provisioner.ErrFileSystem)
	assert.Equal(t, provisioner.PhaseRemove, provisioner.PhaseOf(err))

	require.NoError(t, backend.Close())
	assert.NoFileExists(t, kept.Config.Database)
	assert.FileExists(t, backend.TemplatePath(kept.Hash))
}

func TestSQLiteRawFingerprintStaysInDir(t *testing.T) {
	dir := t.TempDir()
	backend, err := provisioner.NewSQLite(provisioner.SQLiteConfig{Dir: filepath.Join(dir, "templates"), UseMD5Hash: false, DeleteFilesOnClose: true})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, backend.Close()) })

	p := provisioner.New(backend)
	init := func(ctx context.Context, connectionString string) error { return nil }

	for _, fp := range []string{"../escape", "nested/template", `windows\style`, "nul\x00byte"} {
		_, err := p.EnsureInstanceAdvanced(context.Background(), fp, init)
		require.ErrorIs(t, err, provisioner.ErrInvalidFingerprint, "fingerprint %q", fp)
		assert.Equal(t, provisioner.PhaseFingerprint, provisioner.PhaseOf(err))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "templates", entries[0].Name())

	// dots without separators are fine
	d, err := p.EnsureInstanceAdvanced(context.Background(), "v1..2", init)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "templates"), filepath.Dir(backend.TemplatePath(d.Hash)))
	assert.FileExists(t, backend.TemplatePath(d.Hash))
}

func TestSQLiteDirWithURIDelimiters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "odd?dir#with%20")
	backend := newSQLite(t, dir)
	p := provisioner.New(backend)
	ctx := context.Background()

	var seeds atomic.Int32
	d, err := p.EnsureInstance(ctx, provisioner.SeedOptions{Name: "Odd", Migrations: schemaV1(), Seed: seedUsers(&seeds)})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(d.Config.Database))
	assert.FileExists(t, d.Config.Database)
	assert.FileExists(t, backend.TemplatePath(d.Hash))

	sqlDB, err := p.Open(ctx, d)
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.Equal(t, []string{"John", "Bill"}, queryUserNames(ctx, t, sqlDB))

	// nothing was created next to the directory
	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(dir), entries[0].Name())
}

func TestSQLiteDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("INTEGRESQL_CLIENT_SQLITE_DIR", "/tmp/integresql-sqlite")
	t.Setenv("INTEGRESQL_CLIENT_USE_MD5_HASH", "false")

	config := provisioner.DefaultSQLiteConfigFromEnv()
	assert.Equal(t, "/tmp/integresql-sqlite", config.Dir)
	assert.False(t, config.UseMD5Hash)
	assert.True(t, config.DeleteFilesOnClose)
}
