// Package session serializes command execution onto a single worker that
// owns the engine session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"taotie/internal/domain"
)

// ErrWorkerClosed is returned for commands submitted to, or still queued
// on, a closed worker.
var ErrWorkerClosed = errors.New("session worker is closed")

const defaultQueueSize = 64

type requestIDKey struct{}

// WithRequestID attaches an externally assigned request id, such as an HTTP
// X-Request-ID, so worker logs correlate with the caller's.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type result struct {
	reply Reply
	err   error
}

type request struct {
	ctx      context.Context
	id       string
	cmd      Command
	enqueued time.Time
	reply    chan result // buffered(1): the worker never blocks on a departed caller
}

// Options configures a Worker.
type Options struct {
	// Timeout bounds each command's execution. Zero disables it.
	Timeout time.Duration
	// QueueSize bounds the number of waiting commands. Zero means 64.
	QueueSize int
	Logger    *slog.Logger
	Metrics   *Metrics
}

// Worker executes commands one at a time, in submission order, on a single
// goroutine. The backend is only touched from that goroutine.
type Worker struct {
	backend domain.Backend
	opts    Options
	logger  *slog.Logger

	queue   chan request
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewWorker starts a worker that owns backend.
func NewWorker(backend domain.Backend, opts Options) *Worker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &Worker{
		backend: backend,
		opts:    opts,
		logger:  logger,
		queue:   make(chan request, opts.QueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit enqueues cmd and waits for its reply. If ctx ends first, Submit
// returns ctx.Err(); the command is still dequeued in order, and runs with
// the canceled context so the engine abandons it promptly.
func (w *Worker) Submit(ctx context.Context, cmd Command) (Reply, error) {
	id := RequestIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req := request{
		ctx:      ctx,
		id:       id,
		cmd:      cmd,
		enqueued: time.Now(),
		reply:    make(chan result, 1),
	}

	select {
	case <-w.done:
		return Reply{}, ErrWorkerClosed
	default:
	}

	select {
	case w.queue <- req:
		w.opts.Metrics.queued(len(w.queue))
	case <-w.done:
		return Reply{}, ErrWorkerClosed
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.reply, res.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-w.stopped:
		select {
		case res := <-req.reply:
			return res.reply, res.err
		default:
			return Reply{}, ErrWorkerClosed
		}
	}
}

// Close stops the worker after the command in progress. Queued commands
// fail with ErrWorkerClosed. Close blocks until the worker has stopped.
func (w *Worker) Close() {
	w.once.Do(func() { close(w.done) })
	<-w.stopped
}

func (w *Worker) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		case req := <-w.queue:
			// A close racing with a ready request must not run it.
			select {
			case <-w.done:
				return
			default:
			}
			req.reply <- w.handle(req)
		}
	}
}

func (w *Worker) handle(req request) (res result) {
	ctx := req.ctx
	if w.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = result{err: fmt.Errorf("%s: internal error: %v", req.cmd.Name(), p)}
			w.logger.Error("command panicked", "request_id", req.id, "command", req.cmd.Name(), "panic", p)
		}
		w.opts.Metrics.observe(req.cmd.Name(), res.err, time.Since(start), start.Sub(req.enqueued))
	}()

	if err := ctx.Err(); err != nil {
		return result{err: err}
	}

	reply, err := req.cmd.Execute(ctx, w.backend)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && w.opts.Timeout > 0 {
		err = fmt.Errorf("%s timed out after %s: %w", req.cmd.Name(), w.opts.Timeout, err)
	}

	attrs := []any{
		"request_id", req.id,
		"command", req.cmd.Name(),
		"duration", time.Since(start),
		"wait", start.Sub(req.enqueued),
	}
	if err != nil {
		w.logger.Info("command failed", append(attrs, "error", err)...)
	} else {
		w.logger.Debug("command completed", attrs...)
	}
	return result{reply: reply, err: err}
}
