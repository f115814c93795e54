// Package services implements the dashboard operations and the shared
// context they run against. One Context exists per server process; it is
// built when the server lifespan begins and torn down when it ends.
// Handlers share it across concurrent dispatches, so anything mutable it
// holds must synchronize internally.
package services

import (
	"context"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/datasource"
	"github.com/opsdash/opsdash/pkg/llm"
	"github.com/opsdash/opsdash/pkg/logger"
	"github.com/opsdash/opsdash/pkg/storage/sqlite"
)

// Context aggregates the shared dependencies of the dashboard operations.
// Store, LLM and Bestsellers are nil when the corresponding capability is
// not configured; operations degrade per-capability rather than failing to
// start.
type Context struct {
	Config      *config.Config
	Data        datasource.Provider
	Store       *sqlite.Store
	LLM         llm.Client
	Bestsellers BestsellerProvider
}

// Option overrides a Context dependency, mainly for tests.
type Option func(*Context)

// WithProvider overrides the data source.
func WithProvider(p datasource.Provider) Option {
	return func(c *Context) { c.Data = p }
}

// WithStore overrides the persistence store.
func WithStore(s *sqlite.Store) Option {
	return func(c *Context) { c.Store = s }
}

// WithLLM overrides the language-model client.
func WithLLM(l llm.Client) Option {
	return func(c *Context) { c.LLM = l }
}

// WithBestsellers overrides the bestseller provider.
func WithBestsellers(p BestsellerProvider) Option {
	return func(c *Context) { c.Bestsellers = p }
}

// NewContext builds the shared context from the configuration: the mock
// data source, the SQLite store when persistence is enabled and the OpenAI
// client when an API key is present.
func NewContext(ctx context.Context, cfg *config.Config, opts ...Option) (*Context, error) {
	sc := &Context{
		Config: cfg,
		Data:   datasource.NewMockProvider(datasource.MockSettings{}),
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.Store == nil && cfg.Storage.Enabled {
		store, err := sqlite.Open(ctx, cfg.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		sc.Store = store
	}

	if sc.LLM == nil && cfg.OpenAI.APIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature)
		if err != nil {
			return nil, err
		}
		sc.LLM = client
	}

	logger.Debugw("service context ready",
		"source", sc.Data.Name(),
		"persistence", sc.Store != nil,
		"llm", sc.LLM != nil,
	)
	return sc, nil
}

// Close releases the context's resources.
func (c *Context) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
