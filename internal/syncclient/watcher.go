package syncclient

import (
	"context"
	"sync"
	"time"

	"couple-notes-backend/internal/models"

	"github.com/rs/zerolog"
)

// MinPollInterval is the shortest partner polling interval allowed
const MinPollInterval = 5 * time.Second

// NoteFunc receives the newest partner note
type NoteFunc func(models.Note)

type fetchFunc func(ctx context.Context) ([]models.Note, error)

// Subscription is a running partner watch
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	canceled bool
}

// Cancel stops polling. fn is never invoked once Cancel has returned.
// Cancel must not be called from inside fn; cancel the context passed to
// WatchPartner instead.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
	s.cancel()
}

// Done is closed when the polling goroutine has exited
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

type watcher struct {
	sub      *Subscription
	fetch    fetchFunc
	fn       NoteFunc
	log      zerolog.Logger
	timeout  time.Duration
	lastSeen int64
}

// poll fetches once and delivers the first note if it is newer than lastSeen.
// Intermediate notes between two polls are never delivered.
func (w *watcher) poll(ctx context.Context) {
	// An in-flight fetch outlives Cancel; its result is discarded below.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	notes, err := w.fetch(fetchCtx)
	if err != nil {
		w.log.Debug().Err(err).Msg("Partner poll failed")
		return
	}
	if len(notes) == 0 {
		return
	}

	latest := notes[0]
	if latest.Timestamp <= w.lastSeen {
		return
	}

	w.sub.mu.Lock()
	defer w.sub.mu.Unlock()
	if w.sub.canceled || ctx.Err() != nil {
		return
	}
	w.lastSeen = latest.Timestamp
	w.fn(latest)
}

func (w *watcher) run(ctx context.Context, interval time.Duration) {
	defer close(w.sub.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func startWatcher(ctx context.Context, fetch fetchFunc, fn NoteFunc, opts watchOptions) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	interval := opts.interval
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	w := &watcher{
		sub:      sub,
		fetch:    fetch,
		fn:       fn,
		log:      opts.log,
		timeout:  timeout,
		lastSeen: opts.start.UnixMilli(),
	}
	go w.run(ctx, interval)
	return sub
}

type watchOptions struct {
	interval time.Duration
	timeout  time.Duration
	start    time.Time
	log      zerolog.Logger
}
