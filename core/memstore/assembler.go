package memstore

import "github.com/nervosnetwork/ckb-net-core/core"

// NaiveAssembler builds a template from whatever proposals/transactions are
// handed to it directly, honoring byte and proposal limits but doing no
// real fee/priority ordering. It exercises BlockAssemblerBackend's contract
// without a real transaction-selection algorithm.
type NaiveAssembler struct {
	Version      uint32
	Proposals    []core.ProposalShortID
	Transactions []core.Transaction
}

func (a NaiveAssembler) Assemble(snapshot core.Snapshot, constraints core.BlockTemplateConstraints) (core.BlockTemplate, error) {
	proposals := a.Proposals
	if constraints.ProposalsLimit != nil && uint64(len(proposals)) > *constraints.ProposalsLimit {
		proposals = proposals[:*constraints.ProposalsLimit]
	}

	txs := a.Transactions
	if constraints.BytesLimit != nil {
		var total uint64
		cut := len(txs)
		for i, tx := range txs {
			total += tx.Size
			if total > *constraints.BytesLimit {
				cut = i
				break
			}
		}
		txs = txs[:cut]
	}

	version := a.Version
	if constraints.MaxVersion != nil && *constraints.MaxVersion < version {
		version = *constraints.MaxVersion
	}

	return core.BlockTemplate{
		Version:        version,
		Number:         snapshot.Tip() + 1,
		BytesLimit:     valueOr(constraints.BytesLimit, ^uint64(0)),
		ProposalsLimit: valueOr(constraints.ProposalsLimit, ^uint64(0)),
		Proposals:      proposals,
		Transactions:   txs,
	}, nil
}

func valueOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}
