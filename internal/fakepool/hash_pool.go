package fakepool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
)

var (
	ErrPoolFull     = errors.New("database pool is full")
	ErrInvalidIndex = errors.New("invalid database index (id)")
)

type dbState int // Indicates a current DB state.

const (
	dbStateReady dbState = iota // Created according to the template and ready to be picked up.
	dbStateDirty                // Currently in use.
)

type existingDB struct {
	state     dbState
	createdAt time.Time
	recreated int
	db.TestDatabase
}

// HashPool holds the test databases of a single template hash.
// Returned databases are handed out again in FIFO order, new ones are only created if none is ready.
type HashPool struct {
	dbs   []existingDB
	ready []int // IDs of databases ready to be picked up

	templateDB   db.Database
	testDBPrefix string
	maxPoolSize  int

	sync.Mutex
}

func NewHashPool(templateDB db.Database, testDBPrefix string, maxPoolSize int) *HashPool {
	return &HashPool{
		dbs:          make([]existingDB, 0),
		ready:        make([]int, 0),
		templateDB:   templateDB,
		testDBPrefix: testDBPrefix,
		maxPoolSize:  maxPoolSize,
	}
}

// GetTestDatabase picks up a ready test database or extends the pool by one.
// The returned database is marked as dirty until it is returned or recreated.
func (pool *HashPool) GetTestDatabase() (db.TestDatabase, error) {
	pool.Lock()
	defer pool.Unlock()

	if len(pool.ready) > 0 {
		id := pool.ready[0]
		pool.ready = pool.ready[1:]

		testDB := pool.dbs[id]
		testDB.state = dbStateDirty
		pool.dbs[id] = testDB

		return testDB.TestDatabase, nil
	}

	return pool.extend()
}

// ReturnTestDatabase puts the test database back into the pool as is.
func (pool *HashPool) ReturnTestDatabase(id int) error {
	return pool.release(id, false)
}

// RecreateTestDatabase puts a fresh copy of the template back into the pool.
func (pool *HashPool) RecreateTestDatabase(id int) error {
	return pool.release(id, true)
}

// Recreated reports how often the test database with id was recreated from its template.
func (pool *HashPool) Recreated(id int) int {
	pool.Lock()
	defer pool.Unlock()

	if id < 0 || id >= len(pool.dbs) {
		return 0
	}

	return pool.dbs[id].recreated
}

func (pool *HashPool) release(id int, recreate bool) error {
	pool.Lock()
	defer pool.Unlock()

	if id < 0 || id >= len(pool.dbs) {
		return ErrInvalidIndex
	}

	testDB := pool.dbs[id]

	// returning twice is fine
	if testDB.state == dbStateReady {
		return nil
	}

	if recreate {
		testDB.recreated++
		testDB.createdAt = time.Now()
	}

	testDB.state = dbStateReady
	pool.dbs[id] = testDB
	pool.ready = append(pool.ready, id)

	return nil
}

func (pool *HashPool) extend() (db.TestDatabase, error) {
	index := len(pool.dbs)
	if pool.maxPoolSize > 0 && index >= pool.maxPoolSize {
		return db.TestDatabase{}, ErrPoolFull
	}

	newTestDB := existingDB{
		state:     dbStateDirty,
		createdAt: time.Now(),
		TestDatabase: db.TestDatabase{
			Database: db.Database{
				TemplateHash: pool.templateDB.TemplateHash,
				Config:       pool.templateDB.Config,
			},
			ID: index,
		},
	}
	newTestDB.Database.Config.Database = makeDBName(pool.testDBPrefix, pool.templateDB.TemplateHash, index)

	pool.dbs = append(pool.dbs, newTestDB)

	return newTestDB.TestDatabase, nil
}

func makeDBName(testDBPrefix string, hash string, id int) string {
	// db name has an ID in suffix
	return fmt.Sprintf("%s%s_%03d", testDBPrefix, hash, id)
}
