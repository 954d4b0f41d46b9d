// ABOUTME: Whole-store copy between remote backends.
// ABOUTME: Used to move a user's documents from one backend to another.
package remote

import (
	"context"
	"fmt"
)

// DocumentID returns the key a document is stored under in collection.
func DocumentID(collection string, doc Document) string {
	field := "id"
	switch collection {
	case CollectionExercises:
		field = "exerciseId"
	case CollectionProfiles:
		field = "uid"
	}
	id, _ := doc[field].(string)
	return id
}

// CopyResult counts documents per collection.
type CopyResult struct {
	Copied  map[string]int
	Skipped int
}

// Copy upserts every document in src into dst. Documents without an id
// are skipped. With dryRun set nothing is written.
func Copy(ctx context.Context, dst, src Store, dryRun bool) (CopyResult, error) {
	res := CopyResult{Copied: make(map[string]int)}
	for _, coll := range AllCollections {
		docs, err := src.All(ctx, coll)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", coll, err)
		}
		for _, doc := range docs {
			id := DocumentID(coll, doc)
			if id == "" {
				res.Skipped++
				continue
			}
			if !dryRun {
				if err := dst.Upsert(ctx, coll, id, doc); err != nil {
					return res, fmt.Errorf("write %s/%s: %w", coll, id, err)
				}
			}
			res.Copied[coll]++
		}
	}
	return res, nil
}
