package network

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	down atomic.Bool
}

func (p *fakePinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestObserver_PublishesOnlyChanges(t *testing.T) {
	p := &fakePinger{}
	o := NewObserver(p, 0)
	assert.False(t, o.Online())

	ch, cancel := o.Subscribe()
	defer cancel()

	ctx := context.Background()
	require.Equal(t, StatusAvailable, o.Check(ctx))
	assert.Equal(t, StatusAvailable, <-ch)
	assert.True(t, o.Online())

	o.Check(ctx)
	select {
	case s := <-ch:
		t.Fatalf("unexpected republish of %s", s)
	default:
	}

	p.down.Store(true)
	o.Check(ctx)
	assert.Equal(t, StatusUnavailable, <-ch)
	assert.False(t, o.Online())
}

func TestObserver_SubscribeSeesCurrentStatus(t *testing.T) {
	o := NewObserver(&fakePinger{}, 0)
	o.Check(context.Background())

	ch, cancel := o.Subscribe()
	assert.Equal(t, StatusAvailable, <-ch)

	cancel()
	cancel()
	o.mu.RLock()
	assert.Empty(t, o.subs)
	o.mu.RUnlock()
}

func TestObserver_SlowSubscriberGetsLatest(t *testing.T) {
	p := &fakePinger{}
	o := NewObserver(p, 0)
	ch, cancel := o.Subscribe()
	defer cancel()

	ctx := context.Background()
	o.Check(ctx)
	p.down.Store(true)
	o.Check(ctx)

	assert.Equal(t, StatusUnavailable, <-ch)
	assert.Len(t, ch, 0)
}
