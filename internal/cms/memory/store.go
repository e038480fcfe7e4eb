// Package memory implements the cms collaborator interfaces in-memory,
// mirroring the teacher's internal/storage/memory.JobStore shape
// (mutex-guarded maps, deep-copy on read), for tests and zero-config runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/media-inliner/internal/cms"
)

// Row is one resource's fields, keyed by field name.
type Row struct {
	ID     string
	Fields map[string]string
}

type resource struct {
	id     string
	fields map[string]string
}

func (r *resource) ID() string { return r.id }

func (r *resource) Get(field string) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Table is an in-memory collaborator satisfying every cms model interface:
// FindAll, FindPage, and Edit all operate on the same row set.
type Table struct {
	mu   sync.Mutex
	rows map[string]map[string]string
}

// NewTable seeds a Table from rows.
func NewTable(rows ...Row) *Table {
	t := &Table{rows: make(map[string]map[string]string)}
	for _, r := range rows {
		cp := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			cp[k] = v
		}
		t.rows[r.ID] = cp
	}
	return t
}

// FindAll returns every row as a Resource, sorted by id for deterministic
// iteration order in tests.
func (t *Table) FindAll(_ context.Context, _ cms.ResourceFilter) ([]cms.Resource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot(), nil
}

// FindPage returns every row as a single page; the memory store never
// actually paginates, matching the "all" limit the orchestrator always asks
// for.
func (t *Table) FindPage(_ context.Context, _ cms.PageFilter) (cms.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cms.Page{Resources: t.snapshot()}, nil
}

func (t *Table) snapshot() []cms.Resource {
	ids := make([]string, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]cms.Resource, 0, len(ids))
	for _, id := range ids {
		cp := make(map[string]string, len(t.rows[id]))
		for k, v := range t.rows[id] {
			cp[k] = v
		}
		out = append(out, &resource{id: id, fields: cp})
	}
	return out
}

// Edit applies fields to the row named by opts.ID.
func (t *Table) Edit(_ context.Context, fields map[string]string, opts cms.EditOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[opts.ID]
	if !ok {
		return fmt.Errorf("resource %q not found", opts.ID)
	}
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

// Get returns the current field value for id, for test assertions.
func (t *Table) Get(id, field string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[id]
	if !ok {
		return "", false
	}
	v, ok := row[field]
	return v, ok
}
