package assets

import (
	"bytes"
	"context"
	"errors"
	"net"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Callback receives the lifecycle of one dispatched upload. Nil fields are skipped.
// Exactly one of OnSuccess, OnError or OnReschedule is called per request.
type Callback struct {
	OnStart      func(requestID string)
	OnProgress   func(requestID string, sent, total int64)
	OnSuccess    func(requestID string, asset Asset)
	OnError      func(requestID string, err error)
	OnReschedule func(requestID string, err error)
}

// Dispatcher runs uploads asynchronously against a Host.
type Dispatcher struct {
	host    Host
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcher returns a dispatcher. A zero timeout means no per-upload deadline.
func NewDispatcher(host Host, timeout time.Duration) *Dispatcher {
	return &Dispatcher{host: host, timeout: timeout, inflight: make(map[string]context.CancelFunc)}
}

// Host returns the underlying asset host.
func (d *Dispatcher) Host() Host { return d.host }

// Dispatch starts uploading src and returns the request id at once.
func (d *Dispatcher) Dispatch(ctx context.Context, src Source, opts Options, cb Callback) string {
	requestID := uuid.NewString()

	var (
		upCtx  context.Context
		cancel context.CancelFunc
	)
	if d.timeout > 0 {
		upCtx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		upCtx, cancel = context.WithCancel(ctx)
	}
	d.mu.Lock()
	d.inflight[requestID] = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.finish(requestID)
		d.run(upCtx, requestID, src, opts, cb)
	}()
	return requestID
}

func (d *Dispatcher) run(ctx context.Context, requestID string, src Source, opts Options, cb Callback) {
	if cb.OnStart != nil {
		cb.OnStart(requestID)
	}

	contentType, err := src.ContentType()
	if err != nil {
		d.fail(requestID, err, cb)
		return
	}
	name := src.Name
	if path.Ext(name) == "" {
		name += src.Extension()
	}

	total := int64(len(src.Data))
	body := &progressReader{r: bytes.NewReader(src.Data), total: total}
	if cb.OnProgress != nil {
		body.report = func(sent int64) { cb.OnProgress(requestID, sent, total) }
	}

	asset, err := d.host.Upload(ctx, Object{Name: name, ContentType: contentType, Size: total, Body: body}, opts)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		d.fail(requestID, err, cb)
		return
	}
	log.Debug().Str("request_id", requestID).Str("public_id", asset.PublicID).Msg("asset uploaded")
	if cb.OnSuccess != nil {
		cb.OnSuccess(requestID, asset)
	}
}

func (d *Dispatcher) fail(requestID string, err error, cb Callback) {
	if isTransient(err) && cb.OnReschedule != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("upload rescheduled")
		cb.OnReschedule(requestID, err)
		return
	}
	log.Warn().Err(err).Str("request_id", requestID).Msg("upload failed")
	if cb.OnError != nil {
		cb.OnError(requestID, err)
	}
}

func (d *Dispatcher) finish(requestID string) {
	d.mu.Lock()
	cancel, ok := d.inflight[requestID]
	delete(d.inflight, requestID)
	d.mu.Unlock()
	if ok {
		cancel()
	}
}

// Cancel aborts an in-flight upload. It reports whether the request was still running.
func (d *Dispatcher) Cancel(requestID string) bool {
	d.mu.Lock()
	cancel, ok := d.inflight[requestID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every dispatched upload has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// isTransient reports failures worth retrying later rather than giving up on.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// progressReader reports bytes read. Seeking keeps it usable by clients that
// rewind the body to sign or retry.
type progressReader struct {
	r      *bytes.Reader
	total  int64
	report func(sent int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.report != nil {
		p.report(p.total - int64(p.r.Len()))
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	return p.r.Seek(offset, whence)
}
