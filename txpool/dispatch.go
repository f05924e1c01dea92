package txpool

import (
	"context"
	"errors"
	"fmt"

	"github.com/nervosnetwork/ckb-net-core/core"
)

// ErrNoAssembler is returned by BlockTemplate when the pool was built
// without a BlockAssemblerBackend.
var ErrNoAssembler = errors.New("txpool: no block assembler configured")

// dispatch runs one message to completion and sends its reply, if it has
// one. It is the only place that knows the mapping from message type to
// handler and lock span; everything upstream (service loop, controller)
// only ever sees the Message interface.
func dispatch(ctx context.Context, pool *Pool, msg Message) {
	if pool.metrics != nil {
		start := pool.clock.Now()
		operation := operationName(msg)
		defer func() {
			pool.metrics.ObserveDispatch(operation, pool.clock.Now().Sub(start).Seconds())
		}()
	}

	switch m := msg.(type) {
	case GetTxPoolInfoMsg:
		reply := dispatchGetTxPoolInfo(pool)
		sendReply(m.Responder, reply)

	case BlockTemplateMsg:
		reply := dispatchBlockTemplate(pool, m.Arguments)
		sendReply(m.Responder, reply)

	case SubmitTxsMsg:
		reply := dispatchSubmitTxs(ctx, pool, m.Arguments)
		sendReply(m.Responder, reply)

	case NotifyTxsMsg:
		reply := dispatchSubmitTxs(ctx, pool, SubmitTxsArgs{Txs: m.Arguments.Txs})
		if m.Arguments.Callback != nil {
			m.Arguments.Callback(reply)
		}

	case FreshProposalsFilterMsg:
		reply := dispatchFreshProposalsFilter(pool, m.Arguments)
		sendReply(m.Responder, reply)

	case FetchTxRPCMsg:
		reply := dispatchFetchTxRPC(pool, m.Arguments)
		sendReply(m.Responder, reply)

	case FetchTxsMsg:
		reply := dispatchFetchTxs(pool, m.Arguments)
		sendReply(m.Responder, reply)

	case FetchTxsWithCyclesMsg:
		reply := dispatchFetchTxsWithCycles(pool, m.Arguments)
		sendReply(m.Responder, reply)

	case ChainReorgMsg:
		dispatchChainReorg(pool, m.Arguments)

	case NewUncleMsg:
		dispatchNewUncle(pool, m.Arguments)

	case PlugEntryMsg:
		dispatchPlugEntry(pool, m.Arguments)
		sendReply(m.Responder, struct{}{})

	case EstimateFeeRateMsg:
		reply := dispatchEstimateFeeRate(pool, m.Arguments)
		sendReply(m.Responder, reply)

	default:
		log.Errorf("txpool: unhandled message type %T", msg)
	}
}

// operationName labels a message for the per-operation dispatch-latency
// histogram.
func operationName(msg Message) string {
	switch msg.(type) {
	case GetTxPoolInfoMsg:
		return "get_tx_pool_info"
	case BlockTemplateMsg:
		return "block_template"
	case SubmitTxsMsg:
		return "submit_txs"
	case NotifyTxsMsg:
		return "notify_txs"
	case FreshProposalsFilterMsg:
		return "fresh_proposals_filter"
	case FetchTxRPCMsg:
		return "fetch_tx_rpc"
	case FetchTxsMsg:
		return "fetch_txs"
	case FetchTxsWithCyclesMsg:
		return "fetch_txs_with_cycles"
	case ChainReorgMsg:
		return "chain_reorg"
	case NewUncleMsg:
		return "new_uncle"
	case PlugEntryMsg:
		return "plug_entry"
	case EstimateFeeRateMsg:
		return "estimate_fee_rate"
	default:
		return "unknown"
	}
}

// sendReply delivers a reply to a single-slot responder; a dropped
// responder (caller already gone) is logged, never retried.
func sendReply[R any](responder chan<- R, reply R) {
	if responder == nil {
		return
	}
	select {
	case responder <- reply:
	default:
		log.Debugf("txpool: responder channel not ready, dropping reply of type %T", reply)
	}
}

func dispatchGetTxPoolInfo(pool *Pool) TxPoolInfo {
	pool.mu.RLock()
	info := TxPoolInfo{
		PendingSize:         len(pool.pending),
		ProposedSize:        len(pool.proposed),
		LastTxsUpdatedAt:    pool.lastTxsUpdatedAt.Load(),
		LastUnclesUpdatedAt: pool.lastUnclesUpdatedAt.Load(),
	}
	pool.mu.RUnlock()

	if pool.metrics != nil {
		pool.metrics.SetPoolSizes(info.PendingSize, info.ProposedSize)
	}
	return info
}

func dispatchBlockTemplate(pool *Pool, args BlockTemplateArgs) BlockTemplateReply {
	if pool.assembler == nil {
		return BlockTemplateReply{Err: ErrNoAssembler}
	}

	pool.mu.RLock()
	defer pool.mu.RUnlock()

	snapshot := pool.chain.Load()
	tmpl, err := pool.assembler.Assemble(snapshot, args.Constraints)
	if err != nil {
		return BlockTemplateReply{Err: fmt.Errorf("assemble block template: %w", err)}
	}
	return BlockTemplateReply{Template: tmpl}
}

// dispatchSubmitTxs verifies every tx with no pool lock held (verification
// may call out to a collaborator) then takes the write lock only for the
// span of inserting the ones that passed.
func dispatchSubmitTxs(ctx context.Context, pool *Pool, args SubmitTxsArgs) SubmitTxsReply {
	outcomes := make([]TxOutcome, len(args.Txs))
	accepted := make([]core.Entry, 0, len(args.Txs))

	for i, tx := range args.Txs {
		result, err := pool.verifier.Verify(ctx, tx)
		if err != nil {
			outcomes[i] = TxOutcome{Err: err}
			continue
		}
		outcomes[i] = TxOutcome{Cycles: result.Cycles}
		accepted = append(accepted, core.Entry{
			Transaction: tx,
			Cycles:      result.Cycles,
			AddedAtMs:   pool.nowMillis(),
		})
	}

	if len(accepted) > 0 {
		pool.mu.Lock()
		for _, entry := range accepted {
			pool.pending[entry.Transaction.ShortID] = entry
		}
		pool.mu.Unlock()
		pool.lastTxsUpdatedAt.Store(pool.nowMillis())
		if pool.metrics != nil {
			pool.metrics.RecordSubmit(len(accepted))
		}
	}

	return SubmitTxsReply{Outcomes: outcomes}
}

func dispatchFreshProposalsFilter(pool *Pool, args FreshProposalsFilterArgs) []core.ProposalShortID {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	fresh := make([]core.ProposalShortID, 0, len(args.IDs))
	for _, id := range args.IDs {
		if _, inPending := pool.pending[id]; inPending {
			continue
		}
		if _, inProposed := pool.proposed[id]; inProposed {
			continue
		}
		fresh = append(fresh, id)
	}
	return fresh
}

func dispatchFetchTxRPC(pool *Pool, args FetchTxRPCArgs) FetchTxRPCReply {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	if entry, ok := pool.proposed[args.ID]; ok {
		e := entry
		return FetchTxRPCReply{InProposed: true, Entry: &e}
	}
	if entry, ok := pool.pending[args.ID]; ok {
		e := entry
		return FetchTxRPCReply{InProposed: false, Entry: &e}
	}
	return FetchTxRPCReply{}
}

func dispatchFetchTxs(pool *Pool, args FetchTxsArgs) map[core.ProposalShortID]core.Transaction {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	out := make(map[core.ProposalShortID]core.Transaction, len(args.IDs))
	for _, id := range args.IDs {
		if entry, ok := lookup(pool, id); ok {
			out[id] = entry.Transaction
		}
	}
	return out
}

func dispatchFetchTxsWithCycles(pool *Pool, args FetchTxsArgs) map[core.ProposalShortID]core.Entry {
	pool.mu.RLock()
	defer pool.mu.RUnlock()

	out := make(map[core.ProposalShortID]core.Entry, len(args.IDs))
	for _, id := range args.IDs {
		if entry, ok := lookup(pool, id); ok {
			out[id] = entry
		}
	}
	return out
}

// lookup checks proposed then pending; callers already hold the lock.
func lookup(pool *Pool, id core.ProposalShortID) (core.Entry, bool) {
	if entry, ok := pool.proposed[id]; ok {
		return entry, true
	}
	if entry, ok := pool.pending[id]; ok {
		return entry, true
	}
	return core.Entry{}, false
}

// dispatchChainReorg applies detached-then-attached blocks as a single
// write: detached transactions return to pending, attached transactions
// are removed from both sets, and ids an attached block proposes are
// removed from pending.
func dispatchChainReorg(pool *Pool, args ChainReorgArgs) {
	pool.mu.Lock()
	for _, blk := range args.Detached {
		for _, tx := range blk.Transactions {
			pool.pending[tx.ShortID] = core.Entry{
				Transaction: tx,
				AddedAtMs:   pool.nowMillis(),
			}
		}
	}
	for _, blk := range args.Attached {
		for _, tx := range blk.Transactions {
			delete(pool.pending, tx.ShortID)
			delete(pool.proposed, tx.ShortID)
		}
		for _, id := range blk.Proposals {
			delete(pool.pending, id)
		}
	}
	pool.mu.Unlock()

	pool.lastTxsUpdatedAt.Store(pool.nowMillis())
}

// dispatchNewUncle is a no-op when no assembler was configured, matching
// the original's unconfigured-block-assembler behavior.
func dispatchNewUncle(pool *Pool, args NewUncleArgs) {
	if pool.candidates == nil {
		return
	}
	pool.candidates.insert(args.Uncle)
	pool.lastUnclesUpdatedAt.Store(pool.nowMillis())
}

func dispatchPlugEntry(pool *Pool, args PlugEntryArgs) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	for _, entry := range args.Entries {
		if pool.config.MaxPoolSize > 0 && uint64(len(pool.pending)+len(pool.proposed)) >= pool.config.MaxPoolSize {
			log.Warnf("txpool: plug entry dropped, pool at capacity %d", pool.config.MaxPoolSize)
			continue
		}
		switch args.Target {
		case PlugProposed:
			pool.proposed[entry.Transaction.ShortID] = entry
		default:
			pool.pending[entry.Transaction.ShortID] = entry
		}
	}
}

func dispatchEstimateFeeRate(pool *Pool, args EstimateFeeRateArgs) core.FeeRate {
	pool.mu.RLock()
	defer pool.mu.RUnlock()
	return pool.feeEst.Estimate(args.ConfirmTarget)
}
