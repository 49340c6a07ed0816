package services

import "sync"

// FeedHub fans out "local items changed" signals. Signals coalesce: a
// subscriber that has not drained the previous signal sees a single one.
type FeedHub struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan struct{}
}

func NewFeedHub() *FeedHub {
	return &FeedHub{subs: make(map[int]chan struct{})}
}

// Subscribe registers a subscriber. Call cancel when the session ends.
func (h *FeedHub) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Notify never blocks.
func (h *FeedHub) Notify() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *FeedHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
