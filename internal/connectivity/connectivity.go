// ABOUTME: Connectivity port reporting whether the remote is reachable.
// ABOUTME: Subscribers receive an event each time the link comes back online.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor reports reachability and publishes became-online events.
type Monitor interface {
	Online() bool
	// Subscribe returns a channel that receives one value per offline to
	// online transition, plus a cancel func that releases it.
	Subscribe() (<-chan struct{}, func())
}

// broadcaster fans out became-online events. Sends never block; a
// subscriber that has not drained its last event simply misses duplicates.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

func (b *broadcaster) subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]chan struct{})
	}
	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *broadcaster) publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Manual is a Monitor toggled explicitly.
type Manual struct {
	mu     sync.RWMutex
	online bool
	b      broadcaster
}

// NewManual returns a Manual starting in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

func (m *Manual) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Manual) Subscribe() (<-chan struct{}, func()) {
	return m.b.subscribe()
}

// Set changes the state, notifying subscribers on an offline to online flip.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()
	if online && !was {
		m.b.publish()
	}
}

// ProbeFunc checks reachability. A nil error means online.
type ProbeFunc func(ctx context.Context) error

// Prober polls a ProbeFunc on an interval.
type Prober struct {
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	online bool
	b      broadcaster
}

// NewProber returns a Prober that assumes offline until the first probe.
func NewProber(probe ProbeFunc, interval time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{
		probe:    probe,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger,
	}
}

func (p *Prober) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *Prober) Subscribe() (<-chan struct{}, func()) {
	return p.b.subscribe()
}

// Check runs one probe and updates state. It returns the new state.
func (p *Prober) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.probe(ctx)
	online := err == nil

	p.mu.Lock()
	was := p.online
	p.online = online
	p.mu.Unlock()

	switch {
	case online && !was:
		p.logger.Info("remote reachable")
		p.b.publish()
	case !online && was:
		p.logger.Warn("remote unreachable", "error", err)
	}
	return online
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Check(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
