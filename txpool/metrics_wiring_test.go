package txpool

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/ckb-net-core/core"
	"github.com/nervosnetwork/ckb-net-core/txpool/metrics"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestDispatchSubmitTxsRecordsMetricsWhenWired(t *testing.T) {
	pool := newTestPool(t, nil)
	m := metrics.New("ckb_net_test_submit")
	pool.SetMetrics(m)

	reply := dispatchSubmitTxs(context.Background(), pool, SubmitTxsArgs{Txs: []core.Transaction{tx(1, 10)}})
	require.NoError(t, reply.Outcomes[0].Err)
	// The meter's snapshot is folded in by go-flow-metrics' background sweeper.
	require.Eventually(t, func() bool {
		return m.SubmitMeter.Snapshot().Total == uint64(1)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatchGetTxPoolInfoUpdatesPoolSizeGauges(t *testing.T) {
	pool := newTestPool(t, nil)
	m := metrics.New("ckb_net_test_sizes")
	pool.SetMetrics(m)

	dispatchSubmitTxs(context.Background(), pool, SubmitTxsArgs{Txs: []core.Transaction{tx(1, 10), tx(2, 10)}})
	dispatchGetTxPoolInfo(pool)

	require.Equal(t, float64(2), gaugeValue(t, m.PendingSize))
}

func TestDispatchObservesLatencyWhenWired(t *testing.T) {
	pool := newTestPool(t, nil)
	m := metrics.New("ckb_net_test_latency")
	pool.SetMetrics(m)

	msg, replies := newRequest[struct{}, TxPoolInfo](struct{}{})
	dispatch(context.Background(), pool, GetTxPoolInfoMsg{Request: msg})
	<-replies

	var metric dto.Metric
	require.NoError(t, m.DispatchLatency.WithLabelValues("get_tx_pool_info").(prometheus.Metric).Write(&metric))
	require.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
}
