package reconcile

import (
	"context"

	"github.com/sieteunoseis/vcenter-bridge/internal/batch"
	"go.uber.org/zap"

	"github.com/sieteunoseis/vcenter-bridge/internal/vcenter"
)

type SyncResult struct {
	Updated int          `json:"updated"`
	Errors  batch.Errors `json:"errors,omitempty"`
}

// SyncDifferences re-runs the comparison and applies the update-existing
// logic to every matched pair that shows sizing differences. Pairs with no
// difference are left untouched.
func (e *Engine) SyncDifferences(ctx context.Context, remote []vcenter.VMRecord, server string) (*SyncResult, error) {
	cmp, err := e.Compare(ctx, remote)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for _, pair := range cmp.InBoth {
		if !pair.HasDifferences {
			continue
		}

		vm := pair.Local
		err := e.inTransaction(ctx, func(txCtx context.Context) error {
			return e.updateRecord(txCtx, &vm, pair.Remote, server)
		})
		if err != nil {
			zap.S().Named("reconcile").Warnf("syncing %q: %v", pair.Remote.Name, err)
			result.Errors.Add(pair.Remote.Name, err)
			continue
		}
		result.Updated++
	}

	return result, nil
}
