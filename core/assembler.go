package core

// FeeRate is expressed in shannons per 1000 bytes of transaction size.
type FeeRate uint64

// FeeEstimator is the out-of-scope collaborator implementing fee-rate
// estimation from recent chain history.
type FeeEstimator interface {
	Estimate(confirmTarget uint) FeeRate
}

// UncleBlock is a candidate uncle held by the block assembler pending
// inclusion in a future template.
type UncleBlock struct {
	Number uint64
	Hash   [32]byte
}

// BlockTemplate is the candidate next block summary returned to an
// external block producer.
type BlockTemplate struct {
	Version        uint32
	Number         uint64
	BytesLimit     uint64
	ProposalsLimit uint64
	Proposals      []ProposalShortID
	Transactions   []Transaction
	Uncles         []UncleBlock
}

// BlockTemplateConstraints bounds a single BlockAssemblerBackend.Assemble
// call; nil fields mean "no constraint".
type BlockTemplateConstraints struct {
	BytesLimit     *uint64
	ProposalsLimit *uint64
	MaxVersion     *uint32
}

// BlockAssemblerBackend is the out-of-scope collaborator implementing
// block-template assembly internals.
type BlockAssemblerBackend interface {
	Assemble(snapshot Snapshot, constraints BlockTemplateConstraints) (BlockTemplate, error)
}
