package syncer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/AnshRaj112/thriftit-backend/internal/network"
)

// PendingUploader re-attempts every pending item and reports how many went up.
type PendingUploader interface {
	RetryPending(ctx context.Context) (int, error)
}

// Listener is restarted when the remote store becomes reachable.
type Listener interface {
	Start(ctx context.Context) bool
}

// PendingSync reacts to connectivity transitions.
type PendingSync struct {
	uploader PendingUploader
	listener Listener
}

func NewPendingSync(uploader PendingUploader, listener Listener) *PendingSync {
	return &PendingSync{uploader: uploader, listener: listener}
}

// Run consumes statuses until ctx is done or the channel closes. Repeated
// statuses are ignored. Every transition to AVAILABLE retries pending uploads
// and restarts the listener when it has stopped.
func (p *PendingSync) Run(ctx context.Context, statuses <-chan network.Status) {
	var last network.Status
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-statuses:
			if !ok {
				return
			}
			if status == last {
				continue
			}
			last = status
			if status == network.StatusAvailable {
				p.OnAvailable(ctx)
			}
		}
	}
}

// OnAvailable is one reconnect pass.
func (p *PendingSync) OnAvailable(ctx context.Context) {
	if p.listener != nil && p.listener.Start(ctx) {
		log.Info().Msg("item listener restarted")
	}
	n, err := p.uploader.RetryPending(ctx)
	if err != nil {
		log.Warn().Err(err).Int("uploaded", n).Msg("pending uploads left for next reconnect")
		return
	}
	if n > 0 {
		log.Info().Int("uploaded", n).Msg("pending uploads synced")
	}
}
