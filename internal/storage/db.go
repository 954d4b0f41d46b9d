// ABOUTME: Badger-backed local store connection and lifecycle management.
// ABOUTME: Opens the embedded database, runs schema migrations, exposes typed tables.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/liftlog/internal/models"
)

const queueSeqKey = "m/seq/queue"

// DB wraps the badger database and its typed tables.
type DB struct {
	db     *badger.DB
	dir    string
	logger *slog.Logger

	seqMu    sync.Mutex
	queueSeq *badger.Sequence

	Exercises *Table[models.Exercise]
	Logs      *Table[models.WorkoutLog]
	Queue     *Table[models.QueueItem]
	Records   *Table[models.PersonalRecord]
	Routines  *Table[models.WorkoutRoutine]
}

// Open opens or creates a store in dir.
func Open(dir string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(newBadgerLogger(logger))
	return open(opts, dir, logger)
}

// OpenInMemory opens a store that lives only for the life of the process.
func OpenInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	return open(opts, "", nil)
}

// OpenDefault opens the store at the default XDG data path.
func OpenDefault(logger *slog.Logger) (*DB, error) {
	return Open(DefaultStoreDir(), logger)
}

func open(opts badger.Options, dir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("", "open", err)
	}

	d := &DB{db: bdb, dir: dir, logger: logger}
	d.Exercises = newTable(bdb, exercisesTable)
	d.Logs = newTable(bdb, logsTable)
	d.Queue = newTable(bdb, queueTable)
	d.Records = newTable(bdb, recordsTable)
	d.Routines = newTable(bdb, routinesTable)

	if err := d.migrate(); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	seq, err := bdb.GetSequence([]byte(queueSeqKey), 64)
	if err != nil {
		_ = bdb.Close()
		return nil, storageErr("queue", "sequence", err)
	}
	d.queueSeq = seq

	return d, nil
}

// DataDir returns the default data directory following XDG spec.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "liftlog")
}

// DefaultStoreDir returns the default badger directory.
func DefaultStoreDir() string {
	return filepath.Join(DataDir(), "store")
}

// Dir returns the directory the store lives in, empty for in-memory stores.
func (d *DB) Dir() string {
	return d.dir
}

// Close releases the queue sequence and closes the database.
func (d *DB) Close() error {
	d.seqMu.Lock()
	if d.queueSeq != nil {
		_ = d.queueSeq.Release()
		d.queueSeq = nil
	}
	d.seqMu.Unlock()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// NextQueueID returns the next queue autonumber. IDs start at 1 and survive restarts.
func (d *DB) NextQueueID() (uint64, error) {
	d.seqMu.Lock()
	defer d.seqMu.Unlock()
	if d.queueSeq == nil {
		return 0, storageErr("queue", "sequence", fmt.Errorf("store closed"))
	}
	n, err := d.queueSeq.Next()
	if err != nil {
		return 0, storageErr("queue", "sequence", err)
	}
	return n + 1, nil
}

// SchemaVersion returns the schema version recorded in the store.
func (d *DB) SchemaVersion() (int, error) {
	var version int
	err := d.db.View(func(txn *badger.Txn) error {
		v, err := readSchemaVersion(txn)
		version = v
		return err
	})
	if err != nil {
		return 0, storageErr("", "schema version", err)
	}
	return version, nil
}

func readSchemaVersion(txn *badger.Txn) (int, error) {
	item, err := txn.Get([]byte(schemaVersionKey))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(raw))
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	l *slog.Logger
}

func newBadgerLogger(l *slog.Logger) badger.Logger {
	if l == nil {
		return nil
	}
	return &badgerLogger{l: l.With("component", "badger")}
}

func (b *badgerLogger) Errorf(f string, v ...interface{}) {
	b.l.Error(fmt.Sprintf(f, v...))
}

func (b *badgerLogger) Warningf(f string, v ...interface{}) {
	b.l.Warn(fmt.Sprintf(f, v...))
}

func (b *badgerLogger) Infof(f string, v ...interface{}) {
	b.l.Debug(fmt.Sprintf(f, v...))
}

func (b *badgerLogger) Debugf(f string, v ...interface{}) {
	b.l.Debug(fmt.Sprintf(f, v...))
}
