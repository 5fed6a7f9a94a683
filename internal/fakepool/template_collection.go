package fakepool

import (
	"context"
	"sync"

	"github.com/allaboutapps/integresql-client-go/pkg/db"
)

type TemplateCollection struct {
	templates map[string]*Template
	mutex     sync.RWMutex
}

func NewTemplateCollection() *TemplateCollection {
	return &TemplateCollection{
		templates: make(map[string]*Template),
	}
}

// Push adds a new template in TemplateStateInit.
// An existing template is only replaced if it was discarded before, in which case added=true is returned.
// Otherwise the existing template is returned with added=false.
func (tc *TemplateCollection) Push(ctx context.Context, hash string, config db.DatabaseConfig) (template *Template, added bool) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if existing, ok := tc.templates[hash]; ok && existing.GetState(ctx) != TemplateStateDiscarded {
		return existing, false
	}

	template = NewTemplate(hash, config)
	tc.templates[hash] = template

	return template, true
}

// Get gets the requested template without removing it from the collection.
func (tc *TemplateCollection) Get(_ context.Context, hash string) (template *Template, found bool) {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	template, found = tc.templates[hash]

	return template, found
}

// Len counts all tracked templates, discarded ones included.
func (tc *TemplateCollection) Len() int {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()

	return len(tc.templates)
}

// RemoveAll discards and removes all templates from the collection.
func (tc *TemplateCollection) RemoveAll(ctx context.Context) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	for hash, template := range tc.templates {
		template.SetState(ctx, TemplateStateDiscarded)

		delete(tc.templates, hash)
	}
}
