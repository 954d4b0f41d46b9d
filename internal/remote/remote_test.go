// ABOUTME: Tests for document encoding, queries and the timeout decorator.
// ABOUTME: Uses small fake stores in place of a backend.
package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Note   *string `json:"note,omitempty"`
}

func TestEncodeDecode(t *testing.T) {
	doc, err := Encode(sample{ID: "x", Weight: 102.5})
	require.NoError(t, err)
	assert.Equal(t, "x", doc["id"])
	assert.Equal(t, 102.5, doc["weight"])
	_, hasNote := doc["note"]
	assert.False(t, hasNote)

	back, err := Decode[sample](doc)
	require.NoError(t, err)
	assert.Equal(t, "x", back.ID)
	assert.Equal(t, 102.5, back.Weight)
}

func TestFieldEqualsNumericKinds(t *testing.T) {
	doc := Document{"reps": float64(5), "uid": "u1"}
	assert.True(t, FieldEquals(doc, "reps", 5))
	assert.True(t, FieldEquals(doc, "uid", "u1"))
	assert.False(t, FieldEquals(doc, "uid", "u2"))
	assert.False(t, FieldEquals(doc, "missing", "u1"))
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{"n": float64(2)},
		{"n": float64(10)},
		{},
		{"n": float64(1)},
	}
	SortDocuments(docs, Query{OrderBy: "n"})
	assert.Nil(t, docs[0]["n"])
	assert.Equal(t, float64(1), docs[1]["n"])
	assert.Equal(t, float64(10), docs[3]["n"])

	SortDocuments(docs, Query{OrderBy: "n", Desc: true})
	assert.Equal(t, float64(10), docs[0]["n"])
	assert.Nil(t, docs[3]["n"])
}

func TestIsUnavailable(t *testing.T) {
	err := fmt.Errorf("push: %w", Unavailable("upsert", errors.New("dial tcp")))
	assert.True(t, IsUnavailable(err))
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	assert.False(t, IsUnavailable(ErrNotFound))
	assert.Contains(t, err.Error(), "remote unavailable during upsert")
}

type slowStore struct {
	Store
}

func (slowStore) Get(ctx context.Context, collection, id string) (Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeoutMapsDeadline(t *testing.T) {
	s := WithTimeout(slowStore{}, 10*time.Millisecond)
	_, err := s.Get(context.Background(), CollectionLogs, "a")
	require.Error(t, err)

	var ue *UnavailableError
	assert.True(t, errors.As(err, &ue))
	assert.Equal(t, "get", ue.Op)
}

func TestWithTimeoutZeroIsPassthrough(t *testing.T) {
	var inner Store = slowStore{}
	assert.Equal(t, inner, WithTimeout(inner, 0))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "bench", DocumentID(CollectionExercises, Document{"exerciseId": "bench", "id": "x"}))
	assert.Equal(t, "u1", DocumentID(CollectionProfiles, Document{"uid": "u1"}))
	assert.Equal(t, "log-1", DocumentID(CollectionLogs, Document{"id": "log-1"}))
	assert.Equal(t, "", DocumentID(CollectionLogs, Document{"id": 7}))
}
