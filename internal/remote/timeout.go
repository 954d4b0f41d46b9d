// ABOUTME: Decorator bounding every remote call with a timeout.
// ABOUTME: Expired calls surface as retryable UnavailableErrors.
package remote

import (
	"context"
	"errors"
	"time"
)

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds each call to next by d. A non-positive d returns next unchanged.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

func (s *timeoutStore) wrap(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable(op, err)
	}
	return err
}

func (s *timeoutStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.next.Insert(ctx, collection, doc)
	return id, s.wrap("insert", err)
}

func (s *timeoutStore) Upsert(ctx context.Context, collection, id string, doc Document) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.wrap("upsert", s.next.Upsert(ctx, collection, id, doc))
}

func (s *timeoutStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.wrap("delete", s.next.Delete(ctx, collection, id))
}

func (s *timeoutStore) Get(ctx context.Context, collection, id string) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	doc, err := s.next.Get(ctx, collection, id)
	return doc, s.wrap("get", err)
}

func (s *timeoutStore) QueryByField(ctx context.Context, collection, field string, value any, opts ...QueryOption) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	docs, err := s.next.QueryByField(ctx, collection, field, value, opts...)
	return docs, s.wrap("query", err)
}

func (s *timeoutStore) All(ctx context.Context, collection string) ([]Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	docs, err := s.next.All(ctx, collection)
	return docs, s.wrap("list", err)
}
