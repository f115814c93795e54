package bridge

import (
	"context"
	"time"

	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/mcp/types"
)

const (
	// startupTimeout bounds session construction plus the MCP handshake.
	startupTimeout = 30 * time.Second
	// closeTimeout bounds the graceful shutdown of a session.
	closeTimeout = 5 * time.Second
)

type requestKind int

const (
	callRequest requestKind = iota
	listRequest
	resourceRequest
	closeRequest
)

type request struct {
	ctx       context.Context
	kind      requestKind
	operation string
	args      map[string]any
	uri       string
	// done is buffered so the worker never blocks on a caller that gave up.
	done chan response
}

type response struct {
	result  types.Result
	catalog []types.OperationDescriptor
	text    string
	err     error
}

// worker owns one session and serializes all traffic over it. Callers hand
// requests to the worker goroutine and block on their own done channel, so
// any number of goroutines can share the session without interleaving
// frames.
type worker struct {
	signature Signature
	requests  chan request
	// stopped is closed when the worker goroutine exits, for any reason.
	stopped   chan struct{}
	closeWait time.Duration
}

// startWorker launches the worker goroutine and waits, bounded, until its
// session finished the handshake. The error from a failed startup is the
// factory or handshake error, not a generic one.
func startWorker(sig Signature, factory sessionFactory) (*worker, error) {
	return startWorkerWithin(sig, factory, startupTimeout, closeTimeout)
}

func startWorkerWithin(sig Signature, factory sessionFactory, startupWait, closeWait time.Duration) (*worker, error) {
	w := &worker{
		signature: sig,
		requests:  make(chan request),
		stopped:   make(chan struct{}),
		closeWait: closeWait,
	}

	ready := make(chan error, 1)
	go w.run(factory, ready, startupWait)

	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
		return w, nil
	case <-time.After(startupWait):
		// The run goroutine may still finish the handshake after the
		// deadline. Reap the session it would otherwise hold with no owner.
		go func() {
			if <-ready == nil {
				_ = w.shutdown()
			}
		}()
		return nil, errors.NewTimeoutError("bridge session did not start in time", nil)
	}
}

func (w *worker) run(factory sessionFactory, ready chan<- error, startupWait time.Duration) {
	defer close(w.stopped)

	sess, err := factory(w.signature)
	if err != nil {
		ready <- err
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupWait)
	err = sess.initialize(ctx)
	cancel()
	if err != nil {
		_ = sess.close()
		ready <- err
		return
	}
	ready <- nil
	logger.Debugw("bridge session established", "transport", w.signature.Kind)

	for req := range w.requests {
		switch req.kind {
		case callRequest:
			result, err := sess.invoke(req.ctx, req.operation, req.args)
			req.done <- response{result: result, err: err}
		case listRequest:
			catalog, err := sess.listOperations(req.ctx)
			req.done <- response{catalog: catalog, err: err}
		case resourceRequest:
			text, err := sess.readResource(req.ctx, req.uri)
			req.done <- response{text: text, err: err}
		case closeRequest:
			req.done <- response{err: sess.close()}
			return
		}
	}
}

// submit hands a request to the worker and waits for its reply. A stopped
// worker is a transport fault: the caller's manager reacts by rebuilding.
func (w *worker) submit(req request) (response, error) {
	select {
	case w.requests <- req:
	case <-w.stopped:
		return response{}, errors.NewTransportError("bridge worker is stopped", nil)
	}

	select {
	case resp := <-req.done:
		return resp, nil
	case <-w.stopped:
		return response{}, errors.NewTransportError("bridge worker stopped before replying", nil)
	}
}

func (w *worker) call(ctx context.Context, operation string, args map[string]any) (types.Result, error) {
	resp, err := w.submit(request{
		ctx:       ctx,
		kind:      callRequest,
		operation: operation,
		args:      args,
		done:      make(chan response, 1),
	})
	if err != nil {
		return types.Result{}, err
	}
	return resp.result, resp.err
}

func (w *worker) list(ctx context.Context) ([]types.OperationDescriptor, error) {
	resp, err := w.submit(request{
		ctx:  ctx,
		kind: listRequest,
		done: make(chan response, 1),
	})
	if err != nil {
		return nil, err
	}
	return resp.catalog, resp.err
}

func (w *worker) readResource(ctx context.Context, uri string) (string, error) {
	resp, err := w.submit(request{
		ctx:  ctx,
		kind: resourceRequest,
		uri:  uri,
		done: make(chan response, 1),
	})
	if err != nil {
		return "", err
	}
	return resp.text, resp.err
}

// shutdown closes the session and stops the worker, waiting a bounded time
// for in-flight work to drain. A worker that already stopped shuts down
// cleanly.
func (w *worker) shutdown() error {
	req := request{
		ctx:  context.Background(),
		kind: closeRequest,
		done: make(chan response, 1),
	}

	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil
	case <-time.After(w.closeWait):
		return errors.NewTimeoutError("bridge worker did not accept shutdown in time", nil)
	}

	select {
	case resp := <-req.done:
		return resp.err
	case <-time.After(w.closeWait):
		return errors.NewTimeoutError("bridge session did not close in time", nil)
	}
}
