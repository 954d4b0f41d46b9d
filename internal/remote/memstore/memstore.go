// ABOUTME: In-process remote store used by tests and --remote memory.
// ABOUTME: Supports a reachability toggle, per-op failure injection and call counters.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/harperreed/liftlog/internal/remote"
)

// Op names used for failure injection and call counting.
const (
	OpInsert = "insert"
	OpUpsert = "upsert"
	OpDelete = "delete"
	OpGet    = "get"
	OpQuery  = "query"
	OpAll    = "all"
)

// ErrOffline is the cause wrapped when the store is toggled unreachable.
var ErrOffline = errors.New("memstore offline")

// Store keeps documents in maps keyed by collection then id.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]remote.Document
	offline     bool
	failures    map[string][]error
	calls       map[string]int
}

// New returns an empty reachable store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]remote.Document),
		failures:    make(map[string][]error),
		calls:       make(map[string]int),
	}
}

// SetReachable toggles whether calls succeed.
func (s *Store) SetReachable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = !ok
}

// FailNext queues err to be returned by the next call of op.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls reports how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Seed writes docs straight into a collection, bypassing counters.
func (s *Store) Seed(collection, id string, doc remote.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll(collection)[id] = clone(doc)
}

// Len returns the document count of a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// begin records the call and returns any injected or offline error.
// Caller must hold s.mu.
func (s *Store) begin(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return remote.Unavailable(op, err)
	}
	if s.offline {
		return remote.Unavailable(op, ErrOffline)
	}
	if queued := s.failures[op]; len(queued) > 0 {
		err := queued[0]
		s.failures[op] = queued[1:]
		return err
	}
	return nil
}

func (s *Store) coll(name string) map[string]remote.Document {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]remote.Document)
		s.collections[name] = c
	}
	return c
}

func (s *Store) Insert(ctx context.Context, collection string, doc remote.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpInsert); err != nil {
		return "", err
	}
	id := uuid.New().String()
	d := clone(doc)
	if _, ok := d["id"]; !ok {
		d["id"] = id
	}
	s.coll(collection)[id] = d
	return id, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc remote.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpUpsert); err != nil {
		return err
	}
	s.coll(collection)[id] = clone(doc)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpDelete); err != nil {
		return err
	}
	c := s.coll(collection)
	if _, ok := c[id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
	}
	delete(c, id)
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpGet); err != nil {
		return nil, err
	}
	doc, ok := s.coll(collection)[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
	}
	return clone(doc), nil
}

func (s *Store) QueryByField(ctx context.Context, collection, field string, value any, opts ...remote.QueryOption) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpQuery); err != nil {
		return nil, err
	}
	var out []remote.Document
	for _, id := range sortedIDs(s.coll(collection)) {
		doc := s.collections[collection][id]
		if remote.FieldEquals(doc, field, value) {
			out = append(out, clone(doc))
		}
	}
	remote.SortDocuments(out, remote.ResolveQuery(opts...))
	return out, nil
}

func (s *Store) All(ctx context.Context, collection string) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpAll); err != nil {
		return nil, err
	}
	c := s.coll(collection)
	out := make([]remote.Document, 0, len(c))
	for _, id := range sortedIDs(c) {
		out = append(out, clone(c[id]))
	}
	return out, nil
}

func sortedIDs(c map[string]remote.Document) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clone round-trips through Encode so callers never share nested maps.
func clone(doc remote.Document) remote.Document {
	out, err := remote.Encode(doc)
	if err != nil || out == nil {
		return remote.Document{}
	}
	return out
}
