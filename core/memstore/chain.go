package memstore

import (
	"context"
	"sync/atomic"

	"github.com/nervosnetwork/ckb-net-core/core"
)

// Snapshot is a trivial core.Snapshot carrying only the tip number.
type Snapshot uint64

func (s Snapshot) Tip() uint64 { return uint64(s) }

// ChainSnapshotProvider serves whatever snapshot was last stored with Set.
type ChainSnapshotProvider struct {
	tip atomic.Uint64
}

func NewChainSnapshotProvider(tip uint64) *ChainSnapshotProvider {
	p := &ChainSnapshotProvider{}
	p.tip.Store(tip)
	return p
}

func (p *ChainSnapshotProvider) Load() core.Snapshot { return Snapshot(p.tip.Load()) }

// Set advances the served snapshot, e.g. after a reorg.
func (p *ChainSnapshotProvider) Set(tip uint64) { p.tip.Store(tip) }

// FeeEstimator returns a fixed fee rate regardless of confirmation target;
// real fee modeling is out of this module's scope.
type FeeEstimator struct {
	Rate core.FeeRate
}

func (f FeeEstimator) Estimate(confirmTarget uint) core.FeeRate { return f.Rate }

// AcceptAllVerifier treats every transaction as valid, assigning a cycle
// count proportional to its size. It exists to exercise SubmitTxs/NotifyTxs
// without a real consensus-rules verifier.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) Verify(_ context.Context, tx core.Transaction) (core.VerifyResult, error) {
	return core.VerifyResult{Cycles: tx.Size * 10}, nil
}
