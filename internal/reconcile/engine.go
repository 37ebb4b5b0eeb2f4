package reconcile

import (
	"context"

	"github.com/sieteunoseis/vcenter-bridge/internal/match"
	"github.com/sieteunoseis/vcenter-bridge/internal/store"
	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
)

// Record statuses written by the engine.
const (
	StatusActive  = "active"
	StatusOffline = "offline"
)

// Options control how imported records are shaped. Default slugs that do not
// resolve are logged and omitted, never fatal.
type Options struct {
	NormalizeNames      bool
	DefaultTagSlug      string
	DefaultRoleSlug     string
	DefaultPlatformSlug string

	// PlatformSlug maps a guest OS name to a platform slug. An empty result
	// falls back to DefaultPlatformSlug.
	PlatformSlug func(guestOS string) string
}

// Engine reconciles a fetched remote inventory against the asset database.
// All matching happens on canonical keys produced by the normalizer, so one
// engine instance applies a single mode and pattern throughout an operation.
type Engine struct {
	store      store.Store
	normalizer *match.Normalizer
	opts       Options
}

func NewEngine(s store.Store, normalizer *match.Normalizer, opts Options) *Engine {
	return &Engine{
		store:      s,
		normalizer: normalizer,
		opts:       opts,
	}
}

// Compare classifies the remote inventory against the asset database.
func (e *Engine) Compare(ctx context.Context, remote []vcenter.VMRecord) (*Comparison, error) {
	local, err := e.store.VirtualMachine().List(ctx)
	if err != nil {
		return nil, err
	}
	return compareRecords(remote, local, e.normalizer), nil
}

// inTransaction runs fn inside its own store transaction. Each record of a
// batch gets one: a failure rolls back that record's writes without touching
// records already committed.
func (e *Engine) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, err := e.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()

	if err := fn(ctx); err != nil {
		return err
	}

	_, err = store.Commit(ctx)
	return err
}
