package alert

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bingx-relay/internal/metrics"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is what the exchange client and the price trigger raise events on.
type Alerter interface {
	Raise(ev Event)
}

const (
	defaultQueueSize = 64
	notifyTimeout    = 20 * time.Second
	dropLogEvery     = 100
)

type Options struct {
	QueueSize int
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Manager forwards events to a Notifier from one background goroutine, so
// Raise never waits on Telegram. When the queue is full the event is dropped
// and counted.
type Manager struct {
	env      string
	notifier Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics
	queue    chan queued
	stop     chan struct{}
	done     chan struct{}
	dropped  atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

type queued struct {
	ev Event
	at time.Time
}

// NewManager returns nil when notifier is nil; a nil *Manager ignores events.
func NewManager(env string, notifier Notifier, opts Options) *Manager {
	if notifier == nil {
		return nil
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	m := &Manager{
		env:      env,
		notifier: notifier,
		log:      opts.Logger.With().Str("component", "alert").Logger(),
		metrics:  opts.Metrics,
		queue:    make(chan queued, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) Raise(ev Event) {
	if m == nil || ev == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- queued{ev: ev, at: time.Now().UTC()}:
	default:
		m.metrics.ObserveAlert(ev.Kind(), "dropped")
		if n := m.dropped.Add(1); n == 1 || n%dropLogEvery == 0 {
			m.log.Warn().
				Str("event", ev.Kind()).
				Uint64("dropped_total", n).
				Int("queue_cap", cap(m.queue)).
				Msg("alert queue full, event dropped")
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (m *Manager) Dropped() uint64 {
	if m == nil {
		return 0
	}
	return m.dropped.Load()
}

// Close stops accepting events and waits for the queued ones to be sent.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case q := <-m.queue:
			m.send(q)
		case <-m.stop:
			for {
				select {
				case q := <-m.queue:
					m.send(q)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.format(q)); err != nil {
		m.metrics.ObserveAlert(q.ev.Kind(), "failed")
		m.log.Error().Err(err).Str("event", q.ev.Kind()).Msg("alert notify failed")
		return
	}
	m.metrics.ObserveAlert(q.ev.Kind(), "sent")
}

func (m *Manager) format(q queued) string {
	return strings.Join([]string{
		"[bingx-relay] " + q.ev.Kind() + " (" + m.env + ")",
		q.at.Format(time.RFC3339),
		q.ev.Summary(),
	}, "\n")
}
