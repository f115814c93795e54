package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/mcp/types"
)

// fakeSession is a scriptable in-process session.
type fakeSession struct {
	mu          sync.Mutex
	initErr     error
	closeErr    error
	closed      bool
	invokeFn    func(operation string, args map[string]any) (types.Result, error)
	catalog     []types.OperationDescriptor
	resource    string
	resourceErr error
}

func (f *fakeSession) initialize(_ context.Context) error { return f.initErr }

func (f *fakeSession) invoke(_ context.Context, operation string, args map[string]any) (types.Result, error) {
	if f.invokeFn != nil {
		return f.invokeFn(operation, args)
	}
	return types.Success(operation), nil
}

func (f *fakeSession) listOperations(_ context.Context) ([]types.OperationDescriptor, error) {
	return f.catalog, nil
}

func (f *fakeSession) readResource(_ context.Context, _ string) (string, error) {
	if f.resourceErr != nil {
		return "", f.resourceErr
	}
	return f.resource, nil
}

func (f *fakeSession) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func factoryFor(sess session) sessionFactory {
	return func(Signature) (session, error) { return sess, nil }
}

func stdioSignature() Signature {
	return Signature{Kind: config.TransportStdio, Command: "opsdash", Args: []string{"serve"}}
}

func TestWorkerMultiplexesConcurrentCallers(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		invokeFn: func(_ string, args map[string]any) (types.Result, error) {
			return types.Success(args["n"]), nil
		},
	}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)
	defer func() { _ = w.shutdown() }()

	const callers = 16
	results := make([]types.Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := w.call(context.Background(), "echo", map[string]any{"n": i})
			require.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	// Every caller got its own answer back, no cross-talk.
	for i, result := range results {
		assert.True(t, result.OK)
		assert.Equal(t, i, result.Value)
	}
}

func TestWorkerStartupFactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.NewTransportError("dial failed", nil)
	_, err := startWorker(stdioSignature(), func(Signature) (session, error) {
		return nil, boom
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "dial failed")
}

func TestWorkerStartupHandshakeErrorClosesSession(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{initErr: errors.NewTransportError("handshake rejected", nil)}
	_, err := startWorker(stdioSignature(), factoryFor(sess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake rejected")
	assert.True(t, sess.isClosed())
}

func TestWorkerStartupTimeoutReapsLateSession(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	release := make(chan struct{})
	factory := func(Signature) (session, error) {
		<-release
		return sess, nil
	}

	_, err := startWorkerWithin(stdioSignature(), factory, 10*time.Millisecond, closeTimeout)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))

	// The dial finishes after the deadline; the session must not be left
	// running with no owner.
	close(release)
	require.Eventually(t, sess.isClosed, time.Second, 5*time.Millisecond)
}

func TestWorkerHandlerFailureIsAResult(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		invokeFn: func(string, map[string]any) (types.Result, error) {
			return types.Failure("bad arguments"), nil
		},
	}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)
	defer func() { _ = w.shutdown() }()

	result, err := w.call(context.Background(), "compute", nil)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "bad arguments", result.Error)
}

func TestWorkerTransportErrorSurfaces(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		invokeFn: func(string, map[string]any) (types.Result, error) {
			return types.Result{}, errors.NewTransportError("connection reset", nil)
		},
	}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)
	defer func() { _ = w.shutdown() }()

	_, err = w.call(context.Background(), "fetch", nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestWorkerShutdown(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)

	require.NoError(t, w.shutdown())
	assert.True(t, sess.isClosed())

	// A second shutdown is a no-op.
	require.NoError(t, w.shutdown())

	// Calls after shutdown fail as transport errors.
	_, err = w.call(context.Background(), "echo", nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
}

func TestWorkerListAndReadResource(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{
		catalog: []types.OperationDescriptor{
			{Name: "fetch_dashboard_data", Description: "fetch"},
		},
		resource: `{"message":"no summaries recorded"}`,
	}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)
	defer func() { _ = w.shutdown() }()

	catalog, err := w.list(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, "fetch_dashboard_data", catalog[0].Name)

	text, err := w.readResource(context.Background(), "opsdash://history/latest")
	require.NoError(t, err)
	assert.Contains(t, text, "no summaries")
}

func TestWorkerSerializesSessionAccess(t *testing.T) {
	t.Parallel()

	var active, maxActive int
	var mu sync.Mutex
	sess := &fakeSession{
		invokeFn: func(string, map[string]any) (types.Result, error) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return types.Success(nil), nil
		},
	}
	w, err := startWorker(stdioSignature(), factoryFor(sess))
	require.NoError(t, err)
	defer func() { _ = w.shutdown() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.call(context.Background(), fmt.Sprintf("op-%d", i), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One worker goroutine means one invocation at a time.
	assert.Equal(t, 1, maxActive)
}
