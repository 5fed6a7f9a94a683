package fingerprint

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxParallelReads caps the number of files read concurrently while hashing a tree.
const maxParallelReads = 8

var ErrInvalidFileMode = errors.New("invalid file mode for path, cannot generate hash")

// MD5 returns the lowercase hex MD5 digest of s.
func MD5(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// SumFS reads all regular files in fsys and returns a map from file path to the MD5 sum of
// the file's contents. Files are read in parallel. If walking the tree or any read
// operation fails, SumFS returns the first error.
func SumFS(fsys fs.FS) (map[string][md5.Size]byte, error) {
	var (
		mu   sync.Mutex
		sums = make(map[string][md5.Size]byte)
		g    errgroup.Group
	)
	g.SetLimit(maxParallelReads)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		g.Go(func() error {
			data, err := fs.ReadFile(fsys, path)
			if err != nil {
				return err
			}

			mu.Lock()
			sums[path] = md5.Sum(data)
			mu.Unlock()

			return nil
		})

		return nil
	})

	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}

	return sums, nil
}

// FSHash returns a MD5 sum of a file tree, calculated as the hash of all contained
// files' hashes in path order. Only contents contribute, so renaming a file keeps the hash
// as long as the order stays the same.
func FSHash(fsys fs.FS) (string, error) {
	m, err := SumFS(fsys)
	if err != nil {
		return "", err
	}

	paths := make([]string, 0, len(m))
	for path := range m {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	h := md5.New()
	for _, path := range paths {
		fmt.Fprintf(h, "%x", m[path])
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// DirectoryHash returns the FSHash of the directory at dirPath.
func DirectoryHash(dirPath string) (string, error) {
	return FSHash(os.DirFS(dirPath))
}

// FileHash returns a MD5 sum of a file, calculated using the file's content.
func FileHash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", md5.Sum(data)), nil
}

// PathsHash combines the hashes of all given files and directories (in argument order)
// into a single MD5 sum, e.g. to fingerprint a migrations folder plus a fixtures file.
func PathsHash(paths ...string) (string, error) {
	h := md5.New()

	for _, p := range paths {
		f, err := os.Stat(p)
		if err != nil {
			return "", err
		}

		var hash string
		switch m := f.Mode(); {
		case m.IsDir():
			hash, err = DirectoryHash(p)
		case m.IsRegular():
			hash, err = FileHash(filepath.Clean(p))
		default:
			return "", ErrInvalidFileMode
		}

		if err != nil {
			return "", err
		}

		fmt.Fprintf(h, "%s", hash)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
