package txpool

import (
	"errors"
	"sync"

	"github.com/nervosnetwork/ckb-net-core/core"
)

// ErrChannelFull is returned when the service's message channel has no
// room for another message; the caller should back off.
var ErrChannelFull = errors.New("txpool: message channel full")

// ErrServiceStopped is returned by every send once the controller has been
// closed.
var ErrServiceStopped = errors.New("txpool: service stopped")

// TxPoolController is the client handle embedders call into: it owns the
// bounded sender into the service and the stop signal that shuts it down.
// Go has no destructor equivalent to the original's Drop, so Close is the
// explicit substitute — callers must call it themselves once done.
type TxPoolController struct {
	sender chan<- Message
	stop   chan struct{}

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

// NewTxPoolController wires a controller and a Service sharing a bounded
// message channel and stop signal, and returns both: the caller is
// expected to run service.Run in its own goroutine.
func NewTxPoolController(pool *Pool) (*TxPoolController, *Service) {
	messages := make(chan Message, ChannelCapacity)
	stop := make(chan struct{})

	controller := &TxPoolController{sender: messages, stop: stop}
	service := newService(pool, messages, stop)
	return controller, service
}

// Close fires the stop signal exactly once; the service loop exits at its
// next iteration.
func (c *TxPoolController) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.stop)
	})
}

func (c *TxPoolController) send(msg Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrServiceStopped
	}

	select {
	case c.sender <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

func request[A any, R any](c *TxPoolController, wrap func(Request[A, R]) Message, args A) (R, error) {
	var zero R
	req, reply := newRequest[A, R](args)
	if err := c.send(wrap(req)); err != nil {
		return zero, err
	}
	return <-reply, nil
}

// GetTxPoolInfo returns current pool counters.
func (c *TxPoolController) GetTxPoolInfo() (TxPoolInfo, error) {
	return request[struct{}, TxPoolInfo](c, func(r Request[struct{}, TxPoolInfo]) Message {
		return GetTxPoolInfoMsg{r}
	}, struct{}{})
}

// BlockTemplate assembles a template constrained by the given limits.
func (c *TxPoolController) BlockTemplate(constraints core.BlockTemplateConstraints) (BlockTemplateReply, error) {
	return request[BlockTemplateArgs, BlockTemplateReply](c, func(r Request[BlockTemplateArgs, BlockTemplateReply]) Message {
		return BlockTemplateMsg{r}
	}, BlockTemplateArgs{Constraints: constraints})
}

// SubmitTxs runs the verification pipeline over txs and blocks for the
// per-tx outcomes.
func (c *TxPoolController) SubmitTxs(txs []core.Transaction) (SubmitTxsReply, error) {
	return request[SubmitTxsArgs, SubmitTxsReply](c, func(r Request[SubmitTxsArgs, SubmitTxsReply]) Message {
		return SubmitTxsMsg{r}
	}, SubmitTxsArgs{Txs: txs})
}

// NotifyTxs is SubmitTxs's fire-and-forget sibling: callback, if non-nil,
// runs on the service side once verification completes.
func (c *TxPoolController) NotifyTxs(txs []core.Transaction, callback func(SubmitTxsReply)) error {
	return c.send(NotifyTxsMsg{Notify[NotifyTxsArgs]{Arguments: NotifyTxsArgs{Txs: txs, Callback: callback}}})
}

// FreshProposalsFilter returns the subset of ids not already present in
// the pool.
func (c *TxPoolController) FreshProposalsFilter(ids []core.ProposalShortID) ([]core.ProposalShortID, error) {
	return request[FreshProposalsFilterArgs, []core.ProposalShortID](c, func(r Request[FreshProposalsFilterArgs, []core.ProposalShortID]) Message {
		return FreshProposalsFilterMsg{r}
	}, FreshProposalsFilterArgs{IDs: ids})
}

// FetchTxRPC looks up one transaction, checking the proposed set before
// the pending set.
func (c *TxPoolController) FetchTxRPC(id core.ProposalShortID) (FetchTxRPCReply, error) {
	return request[FetchTxRPCArgs, FetchTxRPCReply](c, func(r Request[FetchTxRPCArgs, FetchTxRPCReply]) Message {
		return FetchTxRPCMsg{r}
	}, FetchTxRPCArgs{ID: id})
}

// FetchTxs returns whichever of ids are present, dropping the rest.
func (c *TxPoolController) FetchTxs(ids []core.ProposalShortID) (map[core.ProposalShortID]core.Transaction, error) {
	return request[FetchTxsArgs, map[core.ProposalShortID]core.Transaction](c, func(r Request[FetchTxsArgs, map[core.ProposalShortID]core.Transaction]) Message {
		return FetchTxsMsg{r}
	}, FetchTxsArgs{IDs: ids})
}

// FetchTxsWithCycles is FetchTxs but returns full entries (including
// verification cycles).
func (c *TxPoolController) FetchTxsWithCycles(ids []core.ProposalShortID) (map[core.ProposalShortID]core.Entry, error) {
	return request[FetchTxsArgs, map[core.ProposalShortID]core.Entry](c, func(r Request[FetchTxsArgs, map[core.ProposalShortID]core.Entry]) Message {
		return FetchTxsWithCyclesMsg{r}
	}, FetchTxsArgs{IDs: ids})
}

// ChainReorg applies a reorg as a single write; there is no reply.
func (c *TxPoolController) ChainReorg(args ChainReorgArgs) error {
	return c.send(ChainReorgMsg{Notify[ChainReorgArgs]{Arguments: args}})
}

// NewUncle offers a candidate uncle block to the configured assembler, if
// any.
func (c *TxPoolController) NewUncle(uncle core.UncleBlock) error {
	return c.send(NewUncleMsg{Notify[NewUncleArgs]{Arguments: NewUncleArgs{Uncle: uncle}}})
}

// PlugEntry inserts entries directly into the pending or proposed set.
func (c *TxPoolController) PlugEntry(entries []core.Entry, target PlugTarget) error {
	_, err := request[PlugEntryArgs, struct{}](c, func(r Request[PlugEntryArgs, struct{}]) Message {
		return PlugEntryMsg{r}
	}, PlugEntryArgs{Entries: entries, Target: target})
	return err
}

// EstimateFeeRate delegates to the configured fee estimator.
func (c *TxPoolController) EstimateFeeRate(confirmTarget uint) (core.FeeRate, error) {
	return request[EstimateFeeRateArgs, core.FeeRate](c, func(r Request[EstimateFeeRateArgs, core.FeeRate]) Message {
		return EstimateFeeRateMsg{r}
	}, EstimateFeeRateArgs{ConfirmTarget: confirmTarget})
}
