// ABOUTME: Generic typed table over badger with primary keys and secondary indexes.
// ABOUTME: Each call runs in a single badger transaction and is atomic.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"
)

// bulkBatchSize is the number of records BulkPut commits per transaction.
const bulkBatchSize = 256

// IndexFunc extracts the index values for a record. Returning several values
// makes a multi-valued index.
type IndexFunc[T any] func(*T) []string

type tableDef[T any] struct {
	name    string
	key     func(*T) string
	indexes map[string]IndexFunc[T]
}

// Table is a typed collection of JSON records.
type Table[T any] struct {
	db         *badger.DB
	def        tableDef[T]
	indexNames []string
}

func newTable[T any](db *badger.DB, def tableDef[T]) *Table[T] {
	names := make([]string, 0, len(def.indexes))
	for name := range def.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Table[T]{db: db, def: def, indexNames: names}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.def.name
}

// Key returns the primary key of rec.
func (t *Table[T]) Key(rec *T) string {
	return t.def.key(rec)
}

// Get returns the record stored under key.
func (t *Table[T]) Get(key string) (*T, error) {
	var rec *T
	err := t.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = t.getTxn(txn, key)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s %q: %w", t.def.name, key, ErrNotFound)
		}
		return nil, storageErr(t.def.name, "get", err)
	}
	return rec, nil
}

// Put upserts rec by primary key and rewrites its index entries.
func (t *Table[T]) Put(rec *T) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		return t.putTxn(txn, rec)
	})
	return storageErr(t.def.name, "put", err)
}

// Delete removes the record under key. Deleting a missing key is a no-op.
func (t *Table[T]) Delete(key string) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		return t.deleteTxn(txn, key)
	})
	return storageErr(t.def.name, "delete", err)
}

// BulkPut upserts records in batches. Each batch commits atomically; on
// failure the records of earlier batches stay written and the count of
// written records is returned with the error.
func (t *Table[T]) BulkPut(recs []*T) (int, error) {
	written := 0
	for start := 0; start < len(recs); start += bulkBatchSize {
		end := min(start+bulkBatchSize, len(recs))
		n, err := t.putBatch(recs[start:end])
		written += n
		if err != nil {
			return written, storageErr(t.def.name, "bulk put", err)
		}
	}
	return written, nil
}

// putBatch writes recs in one transaction, halving the batch when badger
// reports the transaction is too big.
func (t *Table[T]) putBatch(recs []*T) (int, error) {
	err := t.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := t.putTxn(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) && len(recs) > 1 {
		mid := len(recs) / 2
		n, err := t.putBatch(recs[:mid])
		if err != nil {
			return n, err
		}
		m, err := t.putBatch(recs[mid:])
		return n + m, err
	}
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// QueryByIndex returns records whose index value equals value, in primary key order.
func (t *Table[T]) QueryByIndex(index, value string) ([]*T, error) {
	if _, ok := t.def.indexes[index]; !ok {
		return nil, storageErr(t.def.name, "query", fmt.Errorf("%w: %s", ErrUnknownIndex, index))
	}

	var out []*T
	err := t.db.View(func(txn *badger.Txn) error {
		prefix := indexPrefix(t.def.name, index, value)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			pk := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			rec, err := t.getTxn(txn, pk)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(t.def.name, "query", err)
	}
	return out, nil
}

// All returns every record in primary key order.
func (t *Table[T]) All() ([]*T, error) {
	var out []*T
	err := t.scan(func(rec *T) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, storageErr(t.def.name, "list", err)
	}
	return out, nil
}

// Count returns the number of records.
func (t *Table[T]) Count() (int, error) {
	n := 0
	err := t.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(t.def.name)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storageErr(t.def.name, "count", err)
	}
	return n, nil
}

// Clear removes every record and index entry of the table.
func (t *Table[T]) Clear() error {
	err := t.db.DropPrefix(recordPrefix(t.def.name), tableIndexPrefix(t.def.name))
	return storageErr(t.def.name, "clear", err)
}

// Reindex drops and rebuilds every index entry of the table.
func (t *Table[T]) Reindex() error {
	if err := t.db.DropPrefix(tableIndexPrefix(t.def.name)); err != nil {
		return storageErr(t.def.name, "reindex", err)
	}
	recs, err := t.All()
	if err != nil {
		return err
	}
	err = t.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if err := t.writeIndexes(txn, rec); err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr(t.def.name, "reindex", err)
}

func (t *Table[T]) scan(fn func(*T) error) error {
	return t.db.View(func(txn *badger.Txn) error {
		prefix := recordPrefix(t.def.name)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decode[T](raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Table[T]) getTxn(txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get(recordKey(t.def.name, key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decode[T](raw)
}

func (t *Table[T]) putTxn(txn *badger.Txn, rec *T) error {
	pk := t.def.key(rec)
	if pk == "" {
		return errors.New("record has empty primary key")
	}

	old, err := t.getTxn(txn, pk)
	switch {
	case err == nil:
		if err := t.dropIndexes(txn, old); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := txn.Set(recordKey(t.def.name, pk), data); err != nil {
		return err
	}
	return t.writeIndexes(txn, rec)
}

func (t *Table[T]) deleteTxn(txn *badger.Txn, key string) error {
	old, err := t.getTxn(txn, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := t.dropIndexes(txn, old); err != nil {
		return err
	}
	return txn.Delete(recordKey(t.def.name, key))
}

func (t *Table[T]) writeIndexes(txn *badger.Txn, rec *T) error {
	pk := t.def.key(rec)
	for _, name := range t.indexNames {
		for _, v := range uniqueValues(t.def.indexes[name](rec)) {
			if err := txn.Set(indexKey(t.def.name, name, v, pk), []byte{}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table[T]) dropIndexes(txn *badger.Txn, rec *T) error {
	pk := t.def.key(rec)
	for _, name := range t.indexNames {
		for _, v := range uniqueValues(t.def.indexes[name](rec)) {
			if err := txn.Delete(indexKey(t.def.name, name, v, pk)); err != nil {
				return err
			}
		}
	}
	return nil
}

func decode[T any](raw []byte) (*T, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func uniqueValues(vals []string) []string {
	seen := make(map[string]bool, len(vals))
	out := vals[:0:0]
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func recordPrefix(table string) []byte {
	return []byte("r/" + table + "/")
}

func recordKey(table, pk string) []byte {
	return append(recordPrefix(table), pk...)
}

func tableIndexPrefix(table string) []byte {
	return []byte("x/" + table + "/")
}

func indexPrefix(table, index, value string) []byte {
	return []byte("x/" + table + "/" + index + "/" + value + "\x00")
}

func indexKey(table, index, value, pk string) []byte {
	return append(indexPrefix(table, index, value), pk...)
}
