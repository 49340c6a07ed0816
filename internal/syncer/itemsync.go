package syncer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/models"
	"github.com/AnshRaj112/thriftit-backend/internal/remote"
)

// Watcher is the remote subscription to available items. onSnapshot receives
// the full available set once, before any change batch.
type Watcher interface {
	WatchAvailable(ctx context.Context, onSnapshot func(context.Context, []models.Item) error, onChange func(context.Context, []remote.Change) error) error
}

// ItemSync runs the remote listener and feeds its batches to a Reconciler. It
// does not retry on its own; Start must be called again once the remote store
// is reachable.
type ItemSync struct {
	watcher    Watcher
	reconciler *Reconciler

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewItemSync(watcher Watcher, reconciler *Reconciler) *ItemSync {
	return &ItemSync{watcher: watcher, reconciler: reconciler}
}

// Start launches the listener unless it is already running. It reports whether
// a new listener was started.
func (s *ItemSync) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			close(done)
		}()
		if err := s.Run(ctx); err != nil {
			log.Error().Err(err).Msg("item listener stopped, serving from local cache")
		}
	}(s.done)
	return true
}

// Running reports whether a listener is active.
func (s *ItemSync) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the most recently started listener exits.
func (s *ItemSync) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Run blocks until ctx is done or the subscription fails. Local write failures
// are logged and the listener keeps going.
func (s *ItemSync) Run(ctx context.Context) error {
	log.Info().Msg("item listener started")
	onSnapshot := func(ctx context.Context, items []models.Item) error {
		n, err := s.reconciler.Snapshot(ctx, items)
		if err != nil {
			log.Error().Err(err).Int("items", len(items)).Msg("reconcile snapshot")
			return nil
		}
		log.Debug().Int("items", len(items)).Int("applied", n).Msg("reconciled snapshot")
		return nil
	}
	return s.watcher.WatchAvailable(ctx, onSnapshot, func(ctx context.Context, batch []remote.Change) error {
		n, err := s.reconciler.Apply(ctx, batch)
		if err != nil {
			log.Error().Err(err).Int("batch", len(batch)).Msg("reconcile batch")
			return nil
		}
		log.Debug().Int("batch", len(batch)).Int("applied", n).Msg("reconciled batch")
		return nil
	})
}
