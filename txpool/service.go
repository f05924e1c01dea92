package txpool

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
)

var log = logging.Logger("txpool")

// ChannelCapacity bounds the controller-to-service message channel; a full
// channel backs the caller off rather than growing unbounded.
const ChannelCapacity = 512

// Service is the single-threaded cooperative dispatcher: exactly one
// receiver consumes the message channel, and each message runs in its own
// spawned task so a slow operation never blocks the next message from
// being picked up. The loop itself never touches pool state.
type Service struct {
	pool     *Pool
	messages <-chan Message
	stop     <-chan struct{}
}

func newService(pool *Pool, messages <-chan Message, stop <-chan struct{}) *Service {
	return &Service{pool: pool, messages: messages, stop: stop}
}

// Run drives the dispatcher loop until the stop signal fires or the
// message channel closes, then waits for all in-flight dispatch tasks to
// finish before returning.
func (s *Service) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	for {
		select {
		case <-s.stop:
			return group.Wait()
		case msg, ok := <-s.messages:
			if !ok {
				return group.Wait()
			}
			pool := s.pool
			group.Go(func() error {
				dispatch(gctx, pool, msg)
				return nil
			})
		}
	}
}
