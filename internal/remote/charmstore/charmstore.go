// ABOUTME: Remote store backed by Charm Cloud KV with automatic sync.
// ABOUTME: Documents live under <collection>:<id> keys as JSON values.
package charmstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/harperreed/liftlog/internal/remote"
)

const (
	// DefaultDBName is the Charm KV database name.
	DefaultDBName = "liftlog"
	// DefaultHost is the Charm server used when none is configured.
	DefaultHost = "charm.2389.dev"

	keySep = ":"
)

// ErrReadOnly means another process holds the KV lock (an MCP server, usually).
var ErrReadOnly = errors.New("cannot write: database is locked by another process")

// KV is the subset of *kv.KV the store needs.
type KV interface {
	Set(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
	IsReadOnly() bool
	Close() error
}

// Store implements remote.Store over a Charm KV database.
type Store struct {
	kv       KV
	autoSync bool
	mu       sync.RWMutex
}

// Open connects to Charm KV under name, pointing CHARM_HOST at host first
// when it is set. The local replica is synced once on open.
func Open(name, host string) (*Store, error) {
	if name == "" {
		name = DefaultDBName
	}
	if host != "" {
		if err := os.Setenv("CHARM_HOST", host); err != nil {
			return nil, fmt.Errorf("set charm host: %w", err)
		}
	}
	db, err := kv.OpenWithDefaultsFallback(name)
	if err != nil {
		return nil, fmt.Errorf("open charm kv: %w", err)
	}
	s := New(db)
	if !db.IsReadOnly() {
		_ = db.Sync()
	}
	return s, nil
}

// New wraps an already open KV with auto-sync enabled.
func New(db KV) *Store {
	return &Store{kv: db, autoSync: true}
}

// SetAutoSync enables or disables sync around reads and writes.
func (s *Store) SetAutoSync(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSync = enabled
}

// Close closes the KV database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv != nil {
		return s.kv.Close()
	}
	return nil
}

// UserID returns the Charm account id of the linked device.
func UserID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

func docKey(collection, id string) []byte {
	return []byte(collection + keySep + id)
}

// pull syncs before a read. Caller must hold s.mu.
func (s *Store) pull(op string) error {
	if !s.autoSync || s.kv.IsReadOnly() {
		return nil
	}
	if err := s.kv.Sync(); err != nil {
		return remote.Unavailable(op, err)
	}
	return nil
}

// push syncs after a write. Caller must hold s.mu.
func (s *Store) push(op string) error {
	if !s.autoSync {
		return nil
	}
	if err := s.kv.Sync(); err != nil {
		return remote.Unavailable(op, err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, op, collection, id string, doc remote.Document) error {
	if err := ctx.Err(); err != nil {
		return remote.Unavailable(op, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv.IsReadOnly() {
		return remote.Unavailable(op, ErrReadOnly)
	}
	if err := s.kv.Set(docKey(collection, id), data); err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, collection, id, err)
	}
	return s.push(op)
}

func (s *Store) Insert(ctx context.Context, collection string, doc remote.Document) (string, error) {
	id := uuid.New().String()
	d := remote.Document{}
	for k, v := range doc {
		d[k] = v
	}
	if _, ok := d["id"]; !ok {
		d["id"] = id
	}
	if err := s.write(ctx, "insert", collection, id, d); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc remote.Document) error {
	return s.write(ctx, "upsert", collection, id, doc)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return remote.Unavailable("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kv.IsReadOnly() {
		return remote.Unavailable("delete", ErrReadOnly)
	}
	if err := s.pull("delete"); err != nil {
		return err
	}
	key := docKey(collection, id)
	if _, err := s.kv.Get(key); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
		}
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if err := s.kv.Delete(key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return s.push("delete")
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Unavailable("get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pull("get"); err != nil {
		return nil, err
	}
	data, err := s.kv.Get(docKey(collection, id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	var doc remote.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *Store) QueryByField(ctx context.Context, collection, field string, value any, opts ...remote.QueryOption) ([]remote.Document, error) {
	docs, err := s.list(ctx, "query", collection)
	if err != nil {
		return nil, err
	}
	var out []remote.Document
	for _, d := range docs {
		if remote.FieldEquals(d, field, value) {
			out = append(out, d)
		}
	}
	remote.SortDocuments(out, remote.ResolveQuery(opts...))
	return out, nil
}

func (s *Store) All(ctx context.Context, collection string) ([]remote.Document, error) {
	return s.list(ctx, "list", collection)
}

// list returns every document of a collection in key order. Values that
// fail to decode are skipped.
func (s *Store) list(ctx context.Context, op, collection string) ([]remote.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Unavailable(op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pull(op); err != nil {
		return nil, err
	}

	keys, err := s.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, collection, err)
	}
	prefix := []byte(collection + keySep)
	var matched []string
	for _, k := range keys {
		if bytes.HasPrefix(k, prefix) {
			matched = append(matched, string(k))
		}
	}
	sort.Strings(matched)

	docs := make([]remote.Document, 0, len(matched))
	for _, k := range matched {
		data, err := s.kv.Get([]byte(k))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, k, err)
		}
		var doc remote.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SplitKey separates a stored key into collection and id.
func SplitKey(key string) (collection, id string, ok bool) {
	return strings.Cut(key, keySep)
}
