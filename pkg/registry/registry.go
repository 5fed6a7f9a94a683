// Package registry maps issued connection strings back to the template hash and test database ID they were created for.
package registry

import "sync"

type Entry struct {
	Hash string
	ID   int
}

// Registry is safe for concurrent use. Entries are never evicted, so a long running process
// grows by one entry per issued test database.
type Registry struct {
	entries map[string]Entry
	mutex   sync.RWMutex
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register records connectionString for (hash, id). The first registration wins:
// registering the same pair again is a no-op, a conflicting pair is rejected with ok=false and the original is kept.
func (r *Registry) Register(connectionString string, hash string, id int) (ok bool) {
	entry := Entry{Hash: hash, ID: id}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, found := r.entries[connectionString]; found {
		return existing == entry
	}

	r.entries[connectionString] = entry

	return true
}

func (r *Registry) Lookup(connectionString string) (Entry, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entry, ok := r.entries[connectionString]

	return entry, ok
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}
