// ABOUTME: Persistent outbound operation queue drained to the remote store.
// ABOUTME: Items are removed only after the remote confirms the operation.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/storage"
)

// MaxRetries is the failure count at which an item stops being retried.
const MaxRetries = 3

// ErrNotFailed is returned by Retry for items that are still live.
var ErrNotFailed = errors.New("queue item is not failed")

// Options tunes drain behaviour.
type Options struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// DrainResult summarizes one pass over the queue.
type DrainResult struct {
	Attempted int
	Succeeded int
	Retrying  int
	Failed    int
	// Deferred counts items skipped because an earlier item for the same
	// entity failed in this pass. They stay pending without a retry charge.
	Deferred int
}

// Stats counts items by status.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Queue is the operation queue over the local store's queue table.
type Queue struct {
	db      *storage.DB
	handler Handler
	monitor connectivity.Monitor
	logger  *slog.Logger
	now     func() time.Time

	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration

	// drainMu serializes passes over the queue.
	drainMu sync.Mutex

	stateMu  sync.Mutex
	draining bool
	dirty    bool
	closed   bool

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a Queue. Zero Options fields take defaults.
func New(db *storage.DB, h Handler, m connectivity.Monitor, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = MaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		db:          db,
		handler:     h,
		monitor:     m,
		logger:      opts.Logger.With("component", "queue"),
		now:         opts.Now,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		bgCtx:       ctx,
		bgCancel:    cancel,
	}
}

// Enqueue persists op as a pending item. When online a drain starts in the
// background; the caller does not wait for it.
func (q *Queue) Enqueue(ctx context.Context, op Op) (*models.QueueItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := encodeOp(op)
	if err != nil {
		return nil, err
	}
	id, err := q.db.NextQueueID()
	if err != nil {
		return nil, err
	}
	now := q.now().UnixMilli()
	item := &models.QueueItem{
		ID:        id,
		Type:      op.Type(),
		EntityID:  op.EntityID(),
		Payload:   payload,
		Timestamp: now,
		Status:    models.StatusPending,
		UpdatedAt: now,
	}
	if err := q.db.Queue.Put(item); err != nil {
		return nil, err
	}
	q.logger.Debug("enqueued", "id", id, "type", item.Type, "entity", item.EntityID)

	if q.monitor.Online() {
		q.Trigger()
	}
	return item, nil
}

// Trigger starts a background drain. If one is already running it is asked
// to make another pass instead.
func (q *Queue) Trigger() {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if q.closed {
		return
	}
	if q.draining {
		q.dirty = true
		return
	}
	q.draining = true
	q.wg.Add(1)
	go q.background()
}

func (q *Queue) background() {
	defer q.wg.Done()
	for {
		if _, err := q.ProcessQueue(q.bgCtx); err != nil {
			q.logger.Warn("background drain failed", "error", err)
		}
		q.stateMu.Lock()
		if !q.dirty || q.closed {
			q.draining = false
			q.dirty = false
			q.stateMu.Unlock()
			return
		}
		q.dirty = false
		q.stateMu.Unlock()
	}
}

// ProcessQueue drains live items oldest first, one at a time. It does
// nothing while offline. A failing item does not stop later items for other
// entities, but later items for its own entity wait for the next pass.
func (q *Queue) ProcessQueue(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	if !q.monitor.Online() {
		return res, nil
	}

	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	items, err := q.Pending()
	if err != nil {
		return res, err
	}
	blocked := make(map[string]bool)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !q.monitor.Online() {
			q.logger.Info("went offline mid-drain", "remaining", len(items)-res.Attempted-res.Deferred)
			break
		}
		if item.EntityID != "" && blocked[item.EntityID] {
			if err := q.deferItem(item); err != nil {
				return res, err
			}
			res.Deferred++
			continue
		}
		res.Attempted++
		if err := q.processItem(ctx, item); err != nil {
			if item.EntityID != "" {
				blocked[item.EntityID] = true
			}
			status, serr := q.recordFailure(item, err)
			if serr != nil {
				return res, serr
			}
			if status == models.StatusFailed {
				res.Failed++
			} else {
				res.Retrying++
			}
			continue
		}
		if err := q.db.Queue.Delete(storage.QueueKey(item.ID)); err != nil {
			return res, err
		}
		res.Succeeded++
	}
	if res.Attempted > 0 {
		q.logger.Info("drain complete",
			"attempted", res.Attempted, "succeeded", res.Succeeded,
			"retrying", res.Retrying, "failed", res.Failed, "deferred", res.Deferred)
	}
	return res, nil
}

// processItem marks item processing and applies its operation.
func (q *Queue) processItem(ctx context.Context, item *models.QueueItem) error {
	item.Status = models.StatusProcessing
	item.UpdatedAt = q.now().UnixMilli()
	if err := q.db.Queue.Put(item); err != nil {
		return err
	}
	op, err := DecodeOp(item)
	if err != nil {
		return err
	}
	return op.apply(ctx, q.handler)
}

// deferItem returns an item left processing by a crash to pending so it is
// not mistaken for in-flight work. Its retry count is untouched.
func (q *Queue) deferItem(item *models.QueueItem) error {
	q.logger.Debug("deferred behind failed item", "id", item.ID, "entity", item.EntityID)
	if item.Status == models.StatusPending {
		return nil
	}
	item.Status = models.StatusPending
	item.UpdatedAt = q.now().UnixMilli()
	return q.db.Queue.Put(item)
}

func (q *Queue) recordFailure(item *models.QueueItem, cause error) (models.QueueStatus, error) {
	item.RetryCount++
	item.Error = cause.Error()
	item.UpdatedAt = q.now().UnixMilli()
	if item.RetryCount >= q.maxRetries {
		item.Status = models.StatusFailed
		q.logger.Error("queue item failed permanently",
			"id", item.ID, "type", item.Type, "retries", item.RetryCount, "error", cause)
	} else {
		item.Status = models.StatusPending
		q.logger.Warn("queue item will retry",
			"id", item.ID, "type", item.Type, "retries", item.RetryCount, "error", cause)
	}
	return item.Status, q.db.Queue.Put(item)
}

// Run drains on start when online, on every became-online event, and on a
// backoff timer while items are waiting to retry. It returns when ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	events, cancel := q.monitor.Subscribe()
	defer cancel()

	var (
		attempt int
		timer   *time.Timer
		retryC  <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, retryC = nil, nil
		}
	}
	defer stopTimer()

	drain := func() {
		res, err := q.ProcessQueue(ctx)
		if err != nil && ctx.Err() == nil {
			q.logger.Warn("drain failed", "error", err)
		}
		stopTimer()
		if res.Retrying == 0 && res.Deferred == 0 {
			attempt = 0
			return
		}
		attempt++
		d := q.Backoff(attempt)
		q.logger.Debug("scheduling retry drain", "in", d, "attempt", attempt)
		timer = time.NewTimer(d)
		retryC = timer.C
	}

	if q.monitor.Online() {
		drain()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			drain()
		case <-retryC:
			drain()
		}
	}
}

// Backoff returns the delay before retry drain number attempt (from 1).
func (q *Queue) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := q.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.backoffMax {
			return q.backoffMax
		}
	}
	if d > q.backoffMax {
		return q.backoffMax
	}
	return d
}

// List returns every item ordered by timestamp then id.
func (q *Queue) List() ([]*models.QueueItem, error) {
	items, err := q.db.Queue.All()
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// Pending returns the items a drain would attempt, in drain order.
func (q *Queue) Pending() ([]*models.QueueItem, error) {
	return q.filter(func(i *models.QueueItem) bool { return i.Drainable() })
}

// Failed returns items that exhausted their retries.
func (q *Queue) Failed() ([]*models.QueueItem, error) {
	return q.filter(func(i *models.QueueItem) bool { return i.Status == models.StatusFailed })
}

func (q *Queue) filter(keep func(*models.QueueItem) bool) ([]*models.QueueItem, error) {
	items, err := q.List()
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Stats counts items by status.
func (q *Queue) Stats() (Stats, error) {
	var s Stats
	items, err := q.db.Queue.All()
	if err != nil {
		return s, err
	}
	for _, it := range items {
		switch it.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusProcessing:
			s.Processing++
		case models.StatusFailed:
			s.Failed++
		}
	}
	s.Total = len(items)
	return s, nil
}

// ProtectedEntityIDs returns the entity ids referenced by any item still in
// the queue, failed items included.
func (q *Queue) ProtectedEntityIDs() (map[string]bool, error) {
	items, err := q.db.Queue.All()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(items))
	for _, it := range items {
		if it.EntityID != "" {
			ids[it.EntityID] = true
		}
	}
	return ids, nil
}

// Get returns one item.
func (q *Queue) Get(id uint64) (*models.QueueItem, error) {
	return q.db.Queue.Get(storage.QueueKey(id))
}

// Retry re-arms a failed item with a fresh retry budget.
func (q *Queue) Retry(id uint64) error {
	item, err := q.Get(id)
	if err != nil {
		return err
	}
	if item.Status != models.StatusFailed {
		return fmt.Errorf("retry %d: %w", id, ErrNotFailed)
	}
	item.Status = models.StatusPending
	item.RetryCount = 0
	item.Error = ""
	item.UpdatedAt = q.now().UnixMilli()
	if err := q.db.Queue.Put(item); err != nil {
		return err
	}
	if q.monitor.Online() {
		q.Trigger()
	}
	return nil
}

// Discard removes an item without applying it.
func (q *Queue) Discard(id uint64) error {
	if _, err := q.Get(id); err != nil {
		return err
	}
	return q.db.Queue.Delete(storage.QueueKey(id))
}

// Wait blocks until background drains finish.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Close stops new background drains, cancels running ones and waits.
func (q *Queue) Close() {
	q.stateMu.Lock()
	q.closed = true
	q.stateMu.Unlock()
	q.bgCancel()
	q.wg.Wait()
}

func sortItems(items []*models.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp < items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
}
