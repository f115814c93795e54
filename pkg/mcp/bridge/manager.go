package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/mcp/types"
)

// Manager holds zero or one live worker and hands out access to it. The
// worker is started lazily on the first call and reused while the bridge
// signature stays the same; a signature change closes the old session
// completely before the new one is dialed.
type Manager struct {
	mu          sync.Mutex
	factory     sessionFactory
	worker      *worker
	startupWait time.Duration
	closeWait   time.Duration
}

// NewManager builds a manager that dials real MCP sessions.
func NewManager() *Manager {
	return newManagerWithFactory(newMCPSession)
}

// newManagerWithFactory is the test seam for substituting fake sessions.
func newManagerWithFactory(factory sessionFactory) *Manager {
	return &Manager{
		factory:     factory,
		startupWait: startupTimeout,
		closeWait:   closeTimeout,
	}
}

// Call invokes a remote operation through the shared session. Transport
// faults drop the worker so the next call reconnects; response errors on a
// healthy session keep it.
func (m *Manager) Call(ctx context.Context, cfg *config.Config, operation string, args map[string]any) (types.Result, error) {
	w, err := m.ensure(cfg)
	if err != nil {
		return types.Result{}, err
	}
	result, err := w.call(ctx, operation, args)
	if err != nil {
		if errors.IsTransport(err) {
			m.drop(w)
		}
		return types.Result{}, err
	}
	return result, nil
}

// List fetches the remote operation catalog.
func (m *Manager) List(ctx context.Context, cfg *config.Config) ([]types.OperationDescriptor, error) {
	w, err := m.ensure(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := w.list(ctx)
	if err != nil {
		if errors.IsTransport(err) {
			m.drop(w)
		}
		return nil, err
	}
	return catalog, nil
}

// ReadResource reads a remote resource as text. An unknown resource is not
// fatal: the worker stays up and the error comes back typed.
func (m *Manager) ReadResource(ctx context.Context, cfg *config.Config, uri string) (string, error) {
	w, err := m.ensure(cfg)
	if err != nil {
		return "", err
	}
	text, err := w.readResource(ctx, uri)
	if err != nil {
		if errors.IsTransport(err) {
			m.drop(w)
		}
		return "", err
	}
	return text, nil
}

// Close shuts down the live session, if any. The manager stays usable; the
// next call dials again.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.worker == nil {
		return nil
	}
	err := m.worker.shutdown()
	if err != nil && errors.IsTimeout(err) {
		// Still draining; a later Close or reconnect retries the shutdown.
		return err
	}
	m.worker = nil
	return err
}

// ensure returns a worker whose signature matches the configuration,
// reusing the current one when possible. The old session is fully closed
// before its replacement starts, so at most one session is ever live.
func (m *Manager) ensure(cfg *config.Config) (*worker, error) {
	sig, err := FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.worker != nil {
		if m.worker.signature.Equal(sig) {
			return m.worker, nil
		}
		logger.Debugw("bridge signature changed, reconnecting", "transport", sig.Kind)
		if err := m.worker.shutdown(); err != nil {
			if errors.IsTimeout(err) {
				// The old session may still be draining. Keep it registered
				// and retry the shutdown on the next call instead of dialing
				// a second session beside it.
				return nil, err
			}
			logger.Warnf("closing the previous bridge session: %v", err)
		}
		m.worker = nil
	}

	w, err := startWorkerWithin(sig, m.factory, m.startupWait, m.closeWait)
	if err != nil {
		return nil, err
	}
	m.worker = w
	return w, nil
}

// drop discards a worker after a transport fault. Only the faulted worker
// is dropped; a replacement started meanwhile stays.
func (m *Manager) drop(w *worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.worker == w {
		_ = w.shutdown()
		m.worker = nil
	}
}
