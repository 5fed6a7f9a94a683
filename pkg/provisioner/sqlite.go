package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
	"github.com/allaboutapps/integresql-client-go/pkg/fingerprint"
	"github.com/allaboutapps/integresql-client-go/pkg/util"
	"github.com/google/uuid"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

const driverSQLite = "sqlite"

type SQLiteConfig struct {
	// Dir holds template files and test database copies. It is created if missing.
	Dir string
	// UseMD5Hash names template files by the MD5 digest of the fingerprint instead of the raw fingerprint.
	UseMD5Hash bool
	// DeleteFilesOnClose removes all copies still issued when the backend is closed.
	DeleteFilesOnClose bool
}

func DefaultSQLiteConfigFromEnv() SQLiteConfig {
	return SQLiteConfig{
		Dir:                util.GetEnv("INTEGRESQL_CLIENT_SQLITE_DIR", os.TempDir()),
		UseMD5Hash:         util.GetEnvAsBool("INTEGRESQL_CLIENT_USE_MD5_HASH", true),
		DeleteFilesOnClose: true,
	}
}

// SQLiteBackend provisions SQLite test databases as file copies of a template file.
// Templates are built at most once per directory: an existing template file is reused as is.
type SQLiteBackend struct {
	config SQLiteConfig

	nextID atomic.Int64
	issued map[int]string // id -> file path
	mutex  sync.Mutex
}

func NewSQLite(config SQLiteConfig) (*SQLiteBackend, error) {
	if len(config.Dir) == 0 {
		config.Dir = os.TempDir()
	}

	dir, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to resolve directory %q: %w", ErrFileSystem, config.Dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory %q: %w", ErrFileSystem, dir, err)
	}

	config.Dir = dir

	return &SQLiteBackend{
		config: config,
		issued: make(map[int]string),
	}, nil
}

func DefaultSQLiteFromEnv() (*SQLiteBackend, error) {
	return NewSQLite(DefaultSQLiteConfigFromEnv())
}

func (b *SQLiteBackend) Name() string {
	return "sqlite"
}

func (b *SQLiteBackend) DriverName() string {
	return driverSQLite
}

// NormalizeFingerprint rejects raw fingerprints which would place the template file outside of Dir.
func (b *SQLiteBackend) NormalizeFingerprint(fp string) (string, error) {
	hash, err := fingerprint.Normalize(fp, b.config.UseMD5Hash, fingerprint.RawLimitSQLite)
	if err != nil {
		return "", err
	}

	if strings.ContainsAny(hash, "/\\\x00") {
		return "", fmt.Errorf("%w: %q must not contain path separators", ErrInvalidFingerprint, hash)
	}

	return hash, nil
}

// TemplatePath returns the file the template for hash is stored in.
func (b *SQLiteBackend) TemplatePath(hash string) string {
	return filepath.Join(b.config.Dir, fmt.Sprintf("template_%s.sqlite", hash))
}

func (b *SQLiteBackend) BuildTemplate(ctx context.Context, hash string, init InitFunc) error {
	log := util.LogFromContext(ctx).With().Str("hash", hash).Logger()
	target := b.TemplatePath(hash)

	if _, err := os.Stat(target); err == nil {
		log.Debug().Str("path", target).Msg("Template file exists, skipping seed")
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to stat template %q: %w", ErrFileSystem, target, err)
	}

	// other processes might build the same template concurrently, each one uses its own file
	building := fmt.Sprintf("%s.%s.building", target, uuid.NewString())

	// an empty file is a valid empty database, so templates without any schema still get finalized
	f, err := os.OpenFile(building, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: failed to create template %q: %w", ErrFileSystem, building, err)
	}
	if err := f.Close(); err != nil {
		b.removeFile(ctx, building)
		return fmt.Errorf("%w: failed to create template %q: %w", ErrFileSystem, building, err)
	}

	if err := init(ctx, b.connectionString(building)); err != nil {
		b.removeFile(ctx, building)
		return err
	}

	if err := os.Rename(building, target); err != nil {
		b.removeFile(ctx, building)
		return fmt.Errorf("%w: failed to finalize template %q: %w", ErrFileSystem, target, err)
	}

	log.Debug().Str("path", target).Msg("Template file finalized")

	return nil
}

func (b *SQLiteBackend) AcquireInstance(ctx context.Context, hash string) (db.TestDatabase, error) {
	path := filepath.Join(b.config.Dir, fmt.Sprintf("test-%s.sqlite", uuid.NewString()))

	if err := copyFile(b.TemplatePath(hash), path); err != nil {
		return db.TestDatabase{}, fmt.Errorf("%w: failed to copy template for %q: %w", ErrFileSystem, hash, err)
	}

	id := int(b.nextID.Add(1))

	b.mutex.Lock()
	b.issued[id] = path
	b.mutex.Unlock()

	util.LogFromContext(ctx).Debug().Str("hash", hash).Int("id", id).Str("path", path).Msg("Test database file created")

	return db.TestDatabase{
		Database: db.Database{
			TemplateHash: hash,
			Config:       db.DatabaseConfig{Database: path},
		},
		ID: id,
	}, nil
}

func (b *SQLiteBackend) AdaptConfig(config db.DatabaseConfig) db.DatabaseConfig {
	return config
}

func (b *SQLiteBackend) ConnectionString(config db.DatabaseConfig) string {
	return b.connectionString(config.Database)
}

// WaitUntilReady returns immediately, a copied file is usable as soon as it exists.
func (b *SQLiteBackend) WaitUntilReady(_ context.Context, _ string) error {
	return nil
}

func (b *SQLiteBackend) Release(ctx context.Context, test db.TestDatabase) error {
	return b.delete(ctx, test.ID)
}

func (b *SQLiteBackend) Remove(ctx context.Context, test db.TestDatabase) error {
	return b.delete(ctx, test.ID)
}

// Close deletes all test database files still issued if DeleteFilesOnClose is set.
// Template files are kept, so later runs can reuse them.
func (b *SQLiteBackend) Close() error {
	if !b.config.DeleteFilesOnClose {
		return nil
	}

	b.mutex.Lock()
	issued := b.issued
	b.issued = make(map[int]string)
	b.mutex.Unlock()

	var errs []error
	for _, path := range issued {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%w: failed to delete %q: %w", ErrFileSystem, path, err))
		}
	}

	return errors.Join(errs...)
}

func (b *SQLiteBackend) delete(ctx context.Context, id int) error {
	b.mutex.Lock()
	path, ok := b.issued[id]
	delete(b.issued, id)
	b.mutex.Unlock()

	if !ok {
		return fmt.Errorf("%w: no test database file with id %d", ErrFileSystem, id)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete %q: %w", ErrFileSystem, path, err)
	}

	util.LogFromContext(ctx).Debug().Int("id", id).Str("path", path).Msg("Test database file deleted")

	return nil
}

func (b *SQLiteBackend) removeFile(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		util.LogFromContext(ctx).Warn().Err(err).Str("path", path).Msg("Failed to remove unfinished template file")
	}
}

// dsnPathEscaper percent-encodes the characters SQLite would otherwise treat as URI delimiters.
var dsnPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func (b *SQLiteBackend) connectionString(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsnPathEscaper.Replace(path))
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	return out.Close()
}
