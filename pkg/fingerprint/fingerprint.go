// Package fingerprint derives the identifiers templates are deduplicated and looked up by.
// A fingerprint combines a caller supplied name with a structural signature of the schema
// (e.g. the last migration and a hash over all migration files), so that any change to the
// schema or seed data results in a new template.
package fingerprint

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const (
	// RawLimitPostgres is the maximum length of an unhashed fingerprint passed to the pooling
	// service. It ends up in database names, which PostgreSQL caps at 63 bytes including prefixes.
	RawLimitPostgres = 30
	// RawLimitSQLite is the maximum length of an unhashed fingerprint used in SQLite file names.
	RawLimitSQLite = 200
)

var (
	ErrEmpty   = errors.New("fingerprint must not be empty")
	ErrTooLong = errors.New("fingerprint exceeds the length limit for unhashed usage")
)

// Compute joins name with all non-empty signature parts.
func Compute(name string, signature ...string) string {
	var b strings.Builder
	b.WriteString(name)

	for _, part := range signature {
		if len(part) == 0 {
			continue
		}
		b.WriteString(part)
	}

	return b.String()
}

// Normalize returns the fingerprint as it is passed on to a backend.
// If useMD5 is set, fp is replaced by its MD5 digest (32 characters), otherwise fp is used
// as is and must not exceed rawLimit characters (rawLimit <= 0 disables the check).
func Normalize(fp string, useMD5 bool, rawLimit int) (string, error) {
	if len(fp) == 0 {
		return "", ErrEmpty
	}

	if useMD5 {
		return MD5(fp), nil
	}

	if rawLimit > 0 && len(fp) > rawLimit {
		return "", fmt.Errorf("%w: %d > %d characters (%q)", ErrTooLong, len(fp), rawLimit, fp)
	}

	return fp, nil
}

// LastMigration returns the base name of the last *.sql migration file within fsys
// (lexical order, matching how golang-migrate orders versioned files).
// An empty string is returned if fsys holds no migrations.
func LastMigration(fsys fs.FS) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) == 0 {
		return "", nil
	}

	sort.Strings(names)

	return names[len(names)-1], nil
}

// Migrations returns the structural signature of a migrations FS: its last migration
// followed by the content hash of all files.
func Migrations(fsys fs.FS) (string, error) {
	last, err := LastMigration(fsys)
	if err != nil {
		return "", fmt.Errorf("failed to determine last migration: %w", err)
	}

	hash, err := FSHash(fsys)
	if err != nil {
		return "", fmt.Errorf("failed to hash migrations: %w", err)
	}

	return last + hash, nil
}
