// Package network tracks whether the remote store is reachable.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the reachability of the remote store.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusUnavailable Status = "UNAVAILABLE"
)

const defaultTimeout = 3 * time.Second

// Pinger checks that the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Observer pings a Pinger on an interval and publishes status changes.
type Observer struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	status Status
	known  bool
	subs   map[int]chan Status
	nextID int
}

func NewObserver(pinger Pinger, interval time.Duration) *Observer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Observer{
		pinger:   pinger,
		interval: interval,
		timeout:  defaultTimeout,
		status:   StatusUnavailable,
		subs:     make(map[int]chan Status),
	}
}

// Run pings immediately and then on every tick until ctx is done.
func (o *Observer) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Check(ctx)
		}
	}
}

// Check pings once and records the result.
func (o *Observer) Check(ctx context.Context) Status {
	pingCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	status := StatusAvailable
	if err := o.pinger.Ping(pingCtx); err != nil {
		status = StatusUnavailable
		log.Debug().Err(err).Msg("remote store ping failed")
	}
	o.set(status)
	return status
}

func (o *Observer) set(status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.known && o.status == status {
		return
	}
	o.status = status
	o.known = true
	log.Info().Str("status", string(status)).Msg("connectivity changed")

	for _, ch := range o.subs {
		publish(ch, status)
	}
}

// publish replaces any unread status so a slow subscriber sees the latest one.
func publish(ch chan Status, status Status) {
	select {
	case ch <- status:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- status
	}
}

// Subscribe returns a channel of status changes, primed with the current status
// once one has been observed. Call cancel to unsubscribe.
func (o *Observer) Subscribe() (<-chan Status, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	ch := make(chan Status, 1)
	if o.known {
		ch <- o.status
	}
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// Online reports whether the last ping reached the remote store.
func (o *Observer) Online() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.known && o.status == StatusAvailable
}

func (o *Observer) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}
