package txpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-net-core/core"
	"github.com/nervosnetwork/ckb-net-core/core/memstore"
)

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(_ context.Context, tx core.Transaction) (core.VerifyResult, error) {
	if tx.Size == 0 {
		return core.VerifyResult{}, errors.New("empty transaction")
	}
	return core.VerifyResult{Cycles: tx.Size}, nil
}

func newTestPool(t *testing.T, assembler core.BlockAssemblerBackend) *Pool {
	t.Helper()
	chain := memstore.NewChainSnapshotProvider(5)
	return NewPool(Config{MaxPoolSize: 2}, chain, rejectingVerifier{}, memstore.FeeEstimator{Rate: 42}, assembler, clock.NewMock())
}

func TestDispatchSubmitTxsMixedOutcomes(t *testing.T) {
	pool := newTestPool(t, nil)

	reply := dispatchSubmitTxs(context.Background(), pool, SubmitTxsArgs{
		Txs: []core.Transaction{tx(1, 10), tx(2, 0)},
	})

	require.Len(t, reply.Outcomes, 2)
	require.NoError(t, reply.Outcomes[0].Err)
	require.Equal(t, uint64(10), reply.Outcomes[0].Cycles)
	require.Error(t, reply.Outcomes[1].Err)

	info := dispatchGetTxPoolInfo(pool)
	require.Equal(t, 1, info.PendingSize)
}

func TestDispatchPlugEntryRespectsCapacity(t *testing.T) {
	pool := newTestPool(t, nil)

	dispatchPlugEntry(pool, PlugEntryArgs{
		Entries: []core.Entry{
			{Transaction: tx(1, 1)},
			{Transaction: tx(2, 1)},
			{Transaction: tx(3, 1)},
		},
		Target: PlugPending,
	})

	info := dispatchGetTxPoolInfo(pool)
	require.Equal(t, 2, info.PendingSize)
}

func TestDispatchBlockTemplateUsesAssembler(t *testing.T) {
	assembler := memstore.NaiveAssembler{
		Version:      1,
		Transactions: []core.Transaction{tx(1, 10)},
	}
	pool := newTestPool(t, assembler)

	reply := dispatchBlockTemplate(pool, BlockTemplateArgs{})
	require.NoError(t, reply.Err)
	require.Equal(t, uint64(6), reply.Template.Number)
	require.Len(t, reply.Template.Transactions, 1)
}

func TestDispatchNewUncleNoopWithoutAssembler(t *testing.T) {
	pool := newTestPool(t, nil)
	dispatchNewUncle(pool, NewUncleArgs{Uncle: core.UncleBlock{Number: 1}})
	require.Equal(t, uint64(0), pool.lastUnclesUpdatedAt.Load())
}

func TestDispatchNewUncleInsertsWithAssembler(t *testing.T) {
	assembler := memstore.NaiveAssembler{}
	pool := newTestPool(t, assembler)
	// The mock clock starts at the Unix epoch, i.e. 0 ms.
	pool.clock.(*clock.Mock).Add(time.Second)

	dispatchNewUncle(pool, NewUncleArgs{Uncle: core.UncleBlock{Number: 7}})
	require.Greater(t, pool.lastUnclesUpdatedAt.Load(), uint64(0))
	require.Len(t, pool.candidates.uncles, 1)
}

func TestDispatchFetchTxsWithCycles(t *testing.T) {
	pool := newTestPool(t, nil)
	reply := dispatchSubmitTxs(context.Background(), pool, SubmitTxsArgs{Txs: []core.Transaction{tx(1, 20)}})
	require.NoError(t, reply.Outcomes[0].Err)

	found := dispatchFetchTxsWithCycles(pool, FetchTxsArgs{IDs: []core.ProposalShortID{tx(1, 20).ShortID}})
	require.Len(t, found, 1)
	require.Equal(t, uint64(20), found[tx(1, 20).ShortID].Cycles)
}
