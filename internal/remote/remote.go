// ABOUTME: Port for the remote document store the sync core reconciles against.
// ABOUTME: Collection CRUD plus query-by-field over JSON documents.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Collections used by the sync core.
const (
	CollectionExercises = "exercises"
	CollectionLogs      = "logs"
	CollectionRoutines  = "routines"
	CollectionRecords   = "personalRecords"
	CollectionNotes     = "notes"
	CollectionProfiles  = "profiles"
)

// AllCollections lists every collection, for whole-store copies.
var AllCollections = []string{
	CollectionExercises,
	CollectionLogs,
	CollectionRoutines,
	CollectionRecords,
	CollectionNotes,
	CollectionProfiles,
}

// Document is a schemaless JSON object.
type Document map[string]any

// Store is an opaque remote document store. Any call may fail with an
// *UnavailableError when the backend cannot be reached.
type Store interface {
	// Insert stores doc under a backend-assigned id and returns it.
	Insert(ctx context.Context, collection string, doc Document) (string, error)

	// Upsert creates or fully replaces the document with the given id.
	Upsert(ctx context.Context, collection, id string, doc Document) error

	// Delete removes a document. Missing documents return ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// QueryByField returns documents whose field equals value.
	QueryByField(ctx context.Context, collection, field string, value any, opts ...QueryOption) ([]Document, error)

	// All returns every document of a collection.
	All(ctx context.Context, collection string) ([]Document, error)
}

// Query holds resolved query options.
type Query struct {
	OrderBy string
	Desc    bool
}

// QueryOption customizes QueryByField.
type QueryOption func(*Query)

// OrderBy sorts results by field, descending when desc is true.
func OrderBy(field string, desc bool) QueryOption {
	return func(q *Query) {
		q.OrderBy = field
		q.Desc = desc
	}
}

// ResolveQuery applies opts to an empty Query.
func ResolveQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Encode converts a value into a Document through its JSON form.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document into T through its JSON form.
func Decode[T any](doc Document) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &v, nil
}

// DecodeAll decodes every document, failing on the first bad one.
func DecodeAll[T any](docs []Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FieldEquals compares a document field to value by JSON encoding, so
// int 5 and float64 5 compare equal.
func FieldEquals(doc Document, field string, value any) bool {
	got, ok := doc[field]
	if !ok {
		return false
	}
	a, err := json.Marshal(got)
	if err != nil {
		return false
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// SortDocuments orders docs in place by q.OrderBy. Numbers compare
// numerically, everything else by string form; missing fields sort first.
func SortDocuments(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if q.Desc {
			return lessValue(docs[j][q.OrderBy], docs[i][q.OrderBy])
		}
		return lessValue(docs[i][q.OrderBy], docs[j][q.OrderBy])
	})
}

func lessValue(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
