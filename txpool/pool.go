package txpool

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/nervosnetwork/ckb-net-core/core"
	"github.com/nervosnetwork/ckb-net-core/txpool/metrics"
)

// Config carries the tunables the pool reads; populated by the embedder,
// never parsed from a flag or config file by this package.
type Config struct {
	MaxPoolSize       uint64
	MaxAncestorsCount uint64
	MaxTxVerifyCycles uint64
}

// candidateUncles is the optional uncle-block staging area an assembler
// contributes to. It has its own mutex, distinct from Pool's RWMutex,
// because NewUncle only ever touches this set and must never contend with
// read-heavy pool operations.
type candidateUncles struct {
	mu      sync.Mutex
	uncles  []core.UncleBlock
	maxKept int
}

func (c *candidateUncles) insert(u core.UncleBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uncles = append(c.uncles, u)
	if c.maxKept > 0 && len(c.uncles) > c.maxKept {
		c.uncles = c.uncles[len(c.uncles)-c.maxKept:]
	}
}

// Pool is the transaction pool's shared state. All access outside of
// construction goes through mu: readers (GetTxPoolInfo, BlockTemplate,
// FreshProposalsFilter, FetchTxRPC, FetchTxs, FetchTxsWithCycles,
// EstimateFeeRate) take RLock; writers (SubmitTxs/NotifyTxs's write phase,
// ChainReorg, PlugEntry) take Lock. No handler holds the lock across an
// external await.
type Pool struct {
	mu sync.RWMutex

	pending  map[core.ProposalShortID]core.Entry
	proposed map[core.ProposalShortID]core.Entry

	config Config

	chain     core.ChainSnapshotProvider
	verifier  core.TxVerifier
	feeEst    core.FeeEstimator
	assembler core.BlockAssemblerBackend // nil if not configured

	candidates *candidateUncles // nil if assembler is nil

	lastTxsUpdatedAt    atomic.Uint64
	lastUnclesUpdatedAt atomic.Uint64

	clock   clock.Clock
	metrics *metrics.Metrics // nil disables instrumentation
}

// NewPool builds an empty pool. assembler may be nil: NewUncle becomes a
// no-op in that case, matching the original behavior of an unconfigured
// block assembler.
func NewPool(cfg Config, chain core.ChainSnapshotProvider, verifier core.TxVerifier, feeEst core.FeeEstimator, assembler core.BlockAssemblerBackend, clk clock.Clock) *Pool {
	p := &Pool{
		pending:   make(map[core.ProposalShortID]core.Entry),
		proposed:  make(map[core.ProposalShortID]core.Entry),
		config:    cfg,
		chain:     chain,
		verifier:  verifier,
		feeEst:    feeEst,
		assembler: assembler,
		clock:     clk,
	}
	if assembler != nil {
		p.candidates = &candidateUncles{maxKept: 64}
	}
	return p
}

func (p *Pool) nowMillis() uint64 {
	return uint64(p.clock.Now().UnixMilli())
}

// SetMetrics wires an optional metrics sink into the pool. It is separate
// from NewPool so an embedder can opt in after constructing the pool
// (e.g. once its prometheus.Registerer is ready); nil disables every
// metrics call site via a nil-receiver check.
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}
