package bridge

import (
	"context"
	"sync"

	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/types"
)

// Handler serves generation requests in the background worker.
type Handler interface {
	Generate(ctx context.Context, req types.GenerationRequest) (string, error)
}

type job struct {
	ctx   context.Context
	req   types.GenerationRequest
	reply chan result
}

type result struct {
	text string
	err  error
}

// Worker is an in-process background service reached through a request
// channel. Each accepted request runs on its own goroutine.
type Worker struct {
	handler Handler
	log     *logging.Logger
	jobs    chan job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWorker starts a worker serving h.
func NewWorker(h Handler, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		handler: h,
		log:     log,
		jobs:    make(chan job),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				j.reply <- w.handle(j)
			}()
		}
	}
}

func (w *Worker) handle(j job) result {
	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(w.ctx, cancel)
	defer stop()

	text, err := w.handler.Generate(ctx, j.req)
	return result{text: text, err: err}
}

// Close stops the worker. Calls in flight fail with ChannelUnavailable.
func (w *Worker) Close() {
	w.once.Do(func() {
		w.cancel()
		w.wg.Wait()
		w.log.Infof("background worker stopped")
	})
}

// RoundTrip implements Transport.
func (w *Worker) RoundTrip(ctx context.Context, req types.GenerationRequest) (string, error) {
	j := job{ctx: ctx, req: req, reply: make(chan result, 1)}
	select {
	case w.jobs <- j:
	case <-w.ctx.Done():
		return "", types.NewError(types.KindChannelUnavailable, "background worker is not running")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case r := <-j.reply:
		if r.err != nil && w.ctx.Err() != nil {
			return "", types.WrapError(types.KindChannelUnavailable, r.err)
		}
		return r.text, r.err
	case <-w.ctx.Done():
		return "", types.NewError(types.KindChannelUnavailable, "background worker stopped during the request")
	}
}
