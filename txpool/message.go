// Package txpool implements the transaction pool service: a single-writer,
// multi-reader pool of pending and proposed transactions driven by a
// bounded message channel, mirroring the original tx-pool actor's
// request/reply discipline.
package txpool

import (
	"github.com/nervosnetwork/ckb-net-core/core"
)

// Request is a call into the service that expects exactly one reply.
// Responder is a single-slot channel: the controller allocates it, the
// dispatch handler sends on it exactly once.
type Request[A any, R any] struct {
	Arguments A
	Responder chan<- R
}

// newRequest allocates a Request and the single-slot reply channel the
// caller will block on.
func newRequest[A any, R any](args A) (Request[A, R], <-chan R) {
	reply := make(chan R, 1)
	return Request[A, R]{Arguments: args, Responder: reply}, reply
}

// Notify is a fire-and-forget call: the controller does not wait for any
// reply, though the handler may still run an optional callback.
type Notify[A any] struct {
	Arguments A
}

// Message is the sealed union of every operation the service dispatches.
// The marker method is unexported so only this package can add variants.
type Message interface {
	message()
}

// --- GetTxPoolInfo ---

type TxPoolInfo struct {
	PendingSize         int
	ProposedSize        int
	LastTxsUpdatedAt    uint64
	LastUnclesUpdatedAt uint64
}

type GetTxPoolInfoMsg struct {
	Request[struct{}, TxPoolInfo]
}

func (GetTxPoolInfoMsg) message() {}

// --- BlockTemplate ---

type BlockTemplateArgs struct {
	Constraints core.BlockTemplateConstraints
}

type BlockTemplateReply struct {
	Template core.BlockTemplate
	Err      error
}

type BlockTemplateMsg struct {
	Request[BlockTemplateArgs, BlockTemplateReply]
}

func (BlockTemplateMsg) message() {}

// --- SubmitTxs ---

// TxOutcome is one submitted transaction's verification result: either
// Cycles is populated or Err is, never both.
type TxOutcome struct {
	Cycles uint64
	Err    error
}

type SubmitTxsArgs struct {
	Txs []core.Transaction
}

type SubmitTxsReply struct {
	Outcomes []TxOutcome
	Err      error
}

type SubmitTxsMsg struct {
	Request[SubmitTxsArgs, SubmitTxsReply]
}

func (SubmitTxsMsg) message() {}

// --- NotifyTxs ---

type NotifyTxsArgs struct {
	Txs      []core.Transaction
	Callback func(SubmitTxsReply)
}

type NotifyTxsMsg struct {
	Notify[NotifyTxsArgs]
}

func (NotifyTxsMsg) message() {}

// --- FreshProposalsFilter ---

type FreshProposalsFilterArgs struct {
	IDs []core.ProposalShortID
}

type FreshProposalsFilterMsg struct {
	Request[FreshProposalsFilterArgs, []core.ProposalShortID]
}

func (FreshProposalsFilterMsg) message() {}

// --- FetchTxRPC ---

type FetchTxRPCArgs struct {
	ID core.ProposalShortID
}

type FetchTxRPCReply struct {
	InProposed bool
	Entry      *core.Entry
}

type FetchTxRPCMsg struct {
	Request[FetchTxRPCArgs, FetchTxRPCReply]
}

func (FetchTxRPCMsg) message() {}

// --- FetchTxs ---

type FetchTxsArgs struct {
	IDs []core.ProposalShortID
}

type FetchTxsMsg struct {
	Request[FetchTxsArgs, map[core.ProposalShortID]core.Transaction]
}

func (FetchTxsMsg) message() {}

// --- FetchTxsWithCycles ---

type FetchTxsWithCyclesMsg struct {
	Request[FetchTxsArgs, map[core.ProposalShortID]core.Entry]
}

func (FetchTxsWithCyclesMsg) message() {}

// --- ChainReorg ---

// ReorgBlock is the minimal per-block view the reorg handler needs: which
// transactions it carried and which proposals it proposed.
type ReorgBlock struct {
	Number       uint64
	Transactions []core.Transaction
	Proposals    []core.ProposalShortID
}

type ChainReorgArgs struct {
	Detached []ReorgBlock
	Attached []ReorgBlock
	Snapshot core.Snapshot
}

type ChainReorgMsg struct {
	Notify[ChainReorgArgs]
}

func (ChainReorgMsg) message() {}

// --- NewUncle ---

type NewUncleArgs struct {
	Uncle core.UncleBlock
}

type NewUncleMsg struct {
	Notify[NewUncleArgs]
}

func (NewUncleMsg) message() {}

// --- PlugEntry ---

// PlugTarget selects which pool set PlugEntry inserts into.
type PlugTarget int

const (
	PlugPending PlugTarget = iota
	PlugProposed
)

type PlugEntryArgs struct {
	Entries []core.Entry
	Target  PlugTarget
}

type PlugEntryMsg struct {
	Request[PlugEntryArgs, struct{}]
}

func (PlugEntryMsg) message() {}

// --- EstimateFeeRate ---

type EstimateFeeRateArgs struct {
	ConfirmTarget uint
}

type EstimateFeeRateMsg struct {
	Request[EstimateFeeRateArgs, core.FeeRate]
}

func (EstimateFeeRateMsg) message() {}
