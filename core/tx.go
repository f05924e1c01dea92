package core

import "context"

// ProposalShortID is the truncated transaction identifier used to index the
// pending/proposed sets and the conflict/proposal-id indices.
type ProposalShortID [10]byte

// Transaction is the minimal transaction view this module operates on.
// Full transaction semantics (scripts, witnesses, consensus validation) are
// the transaction verifier's concern, not this module's.
type Transaction struct {
	ShortID   ProposalShortID
	Conflicts []ProposalShortID
	FeeRate   uint64
	Size      uint64
	Raw       []byte
}

// Entry bundles a transaction with the pool bookkeeping PlugEntry inserts
// directly into the pending or proposed set, bypassing verification.
type Entry struct {
	Transaction Transaction
	Cycles      uint64
	AddedAtMs   uint64
}

// VerifyResult is the per-transaction outcome of the shared verification
// pipeline.
type VerifyResult struct {
	Cycles uint64
}

// TxVerifier is the out-of-scope collaborator implementing transaction
// semantic validation and the verification cache.
type TxVerifier interface {
	Verify(ctx context.Context, tx Transaction) (VerifyResult, error)
}
