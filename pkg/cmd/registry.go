// Package cmd provides common initialization for the autoflow daemons.
package cmd

import (
	"context"
	"log/slog"

	"github.com/autoflowhq/autoflow/pkg/adapters/email"
	"github.com/autoflowhq/autoflow/pkg/adapters/httprequest"
	leadadapter "github.com/autoflowhq/autoflow/pkg/adapters/lead"
	"github.com/autoflowhq/autoflow/pkg/adapters/logmsg"
	"github.com/autoflowhq/autoflow/pkg/adapters/noop"
	"github.com/autoflowhq/autoflow/pkg/adapters/transform"
	"github.com/autoflowhq/autoflow/pkg/adapters/wait"
	"github.com/autoflowhq/autoflow/pkg/leads"
	"github.com/autoflowhq/autoflow/pkg/registry"
)

// NewRegistry builds the adapter registry with every native node type
// registered against the given lead store.
func NewRegistry(logger *slog.Logger, store leads.Store) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.Register(httprequest.NewFactory())
	reg.Register(leadadapter.NewCreateFactory(store))
	reg.Register(leadadapter.NewUpdateFactory(store))
	reg.Register(email.NewFactory(&email.LogSender{Logger: logger}))
	reg.Register(transform.NewFactory())
	reg.Register(wait.NewFactory())
	reg.Register(logmsg.NewFactory())
	reg.Register(noop.NewFactory())

	return reg
}

// NewLeadStore connects the lead store. An empty address selects the
// in-memory store, which is what tests and file-backed local setups use.
func NewLeadStore(ctx context.Context, logger *slog.Logger, redisAddr, redisPassword string) leads.Store {
	if redisAddr == "" {
		logger.InfoContext(ctx, "Using in-memory lead store")

		return leads.NewMemoryStore()
	}

	store, err := leads.NewRedisStore(ctx, redisAddr, redisPassword, 0)
	if err != nil {
		panic(err)
	}

	return store
}
