package collector

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/hotwings/hwlock/internal/client"
	"github.com/hotwings/hwlock/internal/metrics"
	"github.com/hotwings/hwlock/internal/solana"
	"github.com/hotwings/hwlock/internal/util/progress"
)

// Client interface for collector operations
type Client interface {
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*client.SignatureStatus, error)
	GetBlockHeight(ctx context.Context, commitment client.Commitment) (uint64, error)
}

// Collector tracks sent transactions until they confirm, fail or expire
type Collector struct {
	client  Client
	config  *Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	// Tracking state
	txMap   map[solana.Signature]*TxInfo
	order   []solana.Signature
	txMutex sync.RWMutex

	confirmed atomic.Int64
	failed    atomic.Int64
	pending   atomic.Int64
}

// New creates a new Collector instance
func New(c Client, config *Config) *Collector {
	if config == nil {
		config = DefaultConfig()
	}

	return &Collector{
		client: c,
		config: config,
		logger: zap.NewNop(),
		txMap:  make(map[solana.Signature]*TxInfo),
	}
}

// WithLogger sets the logger
func (c *Collector) WithLogger(logger *zap.Logger) *Collector {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithMetrics records confirmation latency into m
func (c *Collector) WithMetrics(m *metrics.Metrics) *Collector {
	c.metrics = m
	return c
}

// TrackTransaction adds a transaction to be tracked
func (c *Collector) TrackTransaction(sig solana.Signature, instruction string, lastValidBlockHeight uint64, sentAt time.Time) {
	c.TrackTransactions([]*TxInfo{{
		Signature:            sig,
		Instruction:          instruction,
		LastValidBlockHeight: lastValidBlockHeight,
		SentAt:               sentAt,
	}})
}

// TrackTransactions adds multiple transactions to be tracked
func (c *Collector) TrackTransactions(txInfos []*TxInfo) {
	c.txMutex.Lock()
	defer c.txMutex.Unlock()

	for _, info := range txInfos {
		if _, exists := c.txMap[info.Signature]; exists {
			continue
		}
		info.Status = TxConfirmPending
		c.txMap[info.Signature] = info
		c.order = append(c.order, info.Signature)
		c.pending.Add(1)
	}
}

// Collect polls until every tracked transaction is resolved or the confirm
// timeout elapses
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	c.txMutex.RLock()
	totalTxs := len(c.txMap)
	c.txMutex.RUnlock()

	if totalTxs == 0 {
		return NewReport("empty"), nil
	}

	c.logger.Debug("collecting signature statuses",
		zap.Int("transactions", totalTxs),
		zap.Duration("poll_interval", c.config.PollInterval),
		zap.Duration("confirm_timeout", c.config.ConfirmTimeout),
		zap.String("commitment", string(c.config.Commitment)))

	report := NewReport("confirmation")

	var bar *progressbar.ProgressBar
	if c.config.ShowProgress && c.config.ProgressWriter != nil {
		bar = progress.NewSpinner(c.config.ProgressWriter, "confirming")
	}
	defer progress.Finish(bar, c.logger)

	deadline := time.Now().Add(c.config.ConfirmTimeout)
	collected := 0

	for {
		newCollected := c.collectBatch(ctx)
		collected += newCollected
		progress.Add(bar, 1, c.logger)

		if collected >= totalTxs {
			break
		}
		if time.Now().After(deadline) {
			c.markTimeouts()
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}

	return c.buildReport(report), nil
}

// collectBatch queries statuses of pending transactions and resolves them
func (c *Collector) collectBatch(ctx context.Context) int {
	c.txMutex.RLock()
	pending := make([]*TxInfo, 0)
	for _, sig := range c.order {
		if tx := c.txMap[sig]; tx.Status == TxConfirmPending {
			pending = append(pending, tx)
		}
	}
	c.txMutex.RUnlock()

	if len(pending) == 0 {
		return 0
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 || batchSize > 256 {
		batchSize = 256
	}

	collected := 0
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		collected += c.queryStatuses(ctx, pending[start:end])
	}

	collected += c.markExpired(ctx)
	return collected
}

func (c *Collector) queryStatuses(ctx context.Context, batch []*TxInfo) int {
	sigs := make([]solana.Signature, len(batch))
	for i, tx := range batch {
		sigs[i] = tx.Signature
	}

	statuses, err := c.client.GetSignatureStatuses(ctx, sigs...)
	if err != nil {
		// Keep pending; the next round asks again
		c.logger.Warn("failed to query signature statuses", zap.Int("count", len(sigs)), zap.Error(err))
		return 0
	}

	collected := 0
	now := time.Now()

	c.txMutex.Lock()
	defer c.txMutex.Unlock()

	for i, status := range statuses {
		info := batch[i]
		if status == nil || info.Status != TxConfirmPending {
			continue
		}

		switch {
		case status.Failed():
			info.Status = TxConfirmFailed
			info.TxErr = status.Err
			info.Error = fmt.Errorf("transaction failed: %v", status.Err)
			c.failed.Add(1)
		case status.Reached(c.config.Commitment):
			info.Status = TxConfirmSuccess
			c.confirmed.Add(1)
		default:
			continue
		}

		info.ConfirmedAt = now
		info.Latency = now.Sub(info.SentAt)
		info.Slot = status.Slot
		info.Commitment = status.ConfirmationStatus
		c.pending.Add(-1)
		collected++

		if info.Status == TxConfirmSuccess {
			c.metrics.RecordConfirmation(info.Latency)
		}
		c.logger.Debug("transaction resolved",
			zap.String("signature", info.Signature.String()),
			zap.String("status", info.Status.String()),
			zap.Uint64("slot", info.Slot),
			zap.Duration("latency", info.Latency))
	}

	return collected
}

// markExpired resolves pending transactions whose blockhash is no longer valid
func (c *Collector) markExpired(ctx context.Context) int {
	c.txMutex.RLock()
	var anyExpiring bool
	for _, tx := range c.txMap {
		if tx.Status == TxConfirmPending && tx.LastValidBlockHeight > 0 {
			anyExpiring = true
			break
		}
	}
	c.txMutex.RUnlock()

	if !anyExpiring {
		return 0
	}

	height, err := c.client.GetBlockHeight(ctx, c.config.Commitment)
	if err != nil {
		c.logger.Warn("failed to query block height", zap.Error(err))
		return 0
	}

	c.txMutex.Lock()
	defer c.txMutex.Unlock()

	expired := 0
	for _, tx := range c.txMap {
		if tx.Status != TxConfirmPending || tx.LastValidBlockHeight == 0 || height <= tx.LastValidBlockHeight {
			continue
		}
		tx.Status = TxConfirmExpired
		tx.Error = fmt.Errorf("block height exceeded: %d > last valid %d", height, tx.LastValidBlockHeight)
		c.pending.Add(-1)
		expired++
	}
	return expired
}

// markTimeouts marks remaining pending transactions as timeout
func (c *Collector) markTimeouts() {
	c.txMutex.Lock()
	defer c.txMutex.Unlock()

	for _, tx := range c.txMap {
		if tx.Status == TxConfirmPending {
			tx.Status = TxConfirmTimeout
			tx.Error = fmt.Errorf("confirmation timeout after %s", c.config.ConfirmTimeout)
			c.pending.Add(-1)
		}
	}
}

// buildReport builds the final report from collected data
func (c *Collector) buildReport(report *Report) *Report {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	c.txMutex.RLock()
	defer c.txMutex.RUnlock()

	latencies := make([]time.Duration, 0)

	for _, sig := range c.order {
		tx := c.txMap[sig]
		report.Transactions = append(report.Transactions, tx)

		switch tx.Status {
		case TxConfirmSuccess:
			report.Metrics.TotalConfirmed++
			latencies = append(latencies, tx.Latency)
		case TxConfirmFailed:
			report.Metrics.TotalFailed++
		case TxConfirmPending:
			report.Metrics.TotalPending++
		case TxConfirmTimeout:
			report.Metrics.TotalTimeout++
		case TxConfirmExpired:
			report.Metrics.TotalExpired++
		}
		if tx.Error != nil {
			report.ErrorSummary[tx.Error.Error()]++
		}
	}

	report.Metrics.TotalSent = len(c.order)

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		report.Metrics.AvgLatency = calculateAvgLatency(latencies)
		report.Metrics.MinLatency = latencies[0]
		report.Metrics.MaxLatency = latencies[len(latencies)-1]
		report.Metrics.P50Latency = percentile(latencies, 50)
		report.Metrics.P95Latency = percentile(latencies, 95)
		report.Metrics.P99Latency = percentile(latencies, 99)
		report.LatencyHistogram = buildLatencyHistogram(latencies)
	}

	if report.Metrics.TotalSent > 0 {
		report.Metrics.SuccessRate = float64(report.Metrics.TotalConfirmed) / float64(report.Metrics.TotalSent) * 100
	}

	return report
}

func calculateAvgLatency(latencies []time.Duration) time.Duration {
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	return total / time.Duration(len(latencies))
}

// percentile expects sorted latencies
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var histogramBuckets = []struct {
	label string
	max   time.Duration
}{
	{"<400ms", 400 * time.Millisecond},
	{"400ms-1s", 1 * time.Second},
	{"1-2s", 2 * time.Second},
	{"2-5s", 5 * time.Second},
	{"5-15s", 15 * time.Second},
	{">15s", 0},
}

func buildLatencyHistogram(latencies []time.Duration) map[string]int {
	histogram := make(map[string]int)
	for _, l := range latencies {
		for _, bucket := range histogramBuckets {
			if bucket.max == 0 || l < bucket.max {
				histogram[bucket.label]++
				break
			}
		}
	}
	return histogram
}

// PrintSummary writes a human-readable summary of the report
func PrintSummary(w io.Writer, report *Report) {
	m := report.Metrics

	fmt.Fprintf(w, "\nConfirmation Summary\n\n")
	fmt.Fprintf(w, "Transactions:\n")
	fmt.Fprintf(w, "  Total Sent:      %d\n", m.TotalSent)
	fmt.Fprintf(w, "  Confirmed:       %d (%.2f%%)\n", m.TotalConfirmed, m.SuccessRate)
	fmt.Fprintf(w, "  Failed:          %d\n", m.TotalFailed)
	fmt.Fprintf(w, "  Expired:         %d\n", m.TotalExpired)
	fmt.Fprintf(w, "  Timeout:         %d\n", m.TotalTimeout)
	fmt.Fprintf(w, "  Pending:         %d\n", m.TotalPending)

	if m.TotalConfirmed > 0 {
		fmt.Fprintf(w, "\nLatency:\n")
		fmt.Fprintf(w, "  Average:         %s\n", m.AvgLatency)
		fmt.Fprintf(w, "  Min:             %s\n", m.MinLatency)
		fmt.Fprintf(w, "  Max:             %s\n", m.MaxLatency)
		fmt.Fprintf(w, "  P50:             %s\n", m.P50Latency)
		fmt.Fprintf(w, "  P95:             %s\n", m.P95Latency)
		fmt.Fprintf(w, "  P99:             %s\n", m.P99Latency)
	}

	if len(report.LatencyHistogram) > 0 {
		fmt.Fprintf(w, "\nLatency Distribution:\n")
		for _, bucket := range histogramBuckets {
			if count, ok := report.LatencyHistogram[bucket.label]; ok {
				pct := float64(count) / float64(m.TotalConfirmed) * 100
				fmt.Fprintf(w, "  %-12s %5d (%.1f%%)\n", bucket.label, count, pct)
			}
		}
	}

	if len(report.ErrorSummary) > 0 {
		fmt.Fprintf(w, "\n[WARN] Errors:\n")
		for errMsg, count := range report.ErrorSummary {
			if len(errMsg) > 60 {
				errMsg = errMsg[:57] + "..."
			}
			fmt.Fprintf(w, "  %s: %d\n", errMsg, count)
		}
	}
}

// GetConfirmedCount returns the number of confirmed transactions
func (c *Collector) GetConfirmedCount() int64 {
	return c.confirmed.Load()
}

// GetFailedCount returns the number of failed transactions
func (c *Collector) GetFailedCount() int64 {
	return c.failed.Load()
}

// GetPendingCount returns the number of pending transactions
func (c *Collector) GetPendingCount() int64 {
	return c.pending.Load()
}

// Reset resets the collector state
func (c *Collector) Reset() {
	c.txMutex.Lock()
	c.txMap = make(map[solana.Signature]*TxInfo)
	c.order = nil
	c.txMutex.Unlock()

	c.confirmed.Store(0)
	c.failed.Store(0)
	c.pending.Store(0)
}
