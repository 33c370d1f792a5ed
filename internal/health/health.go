// Package health aggregates the governance components' internal counters
// into a single snapshot for the health endpoint. The aggregator only reads;
// it never mutates another component's state.
package health

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"gatekeeper/internal/cache"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/queue"
	"gatekeeper/internal/ratelimit"
)

// ring sizes for the verbose detail section.
const (
	verboseSamples  = 20
	verboseSlow     = 10
	verboseLogLines = 20
)

// error-rate thresholds driving the overall status.
const (
	degradedErrorRate  = 5.0
	unhealthyErrorRate = 50.0
)

// Aggregator snapshots the governance layer's counters on demand.
type Aggregator struct {
	startTime  time.Time
	stats      *RequestStats
	caches     []*cache.Cache
	queue      *queue.Queue
	limiters   map[string]ratelimit.Limiter
	logCapture *logger.Capture
}

// NewAggregator wires the aggregator to its read-only sources. queue and
// logCapture may be nil when the corresponding subsystem is disabled.
func NewAggregator(stats *RequestStats, caches []*cache.Cache, q *queue.Queue, limiters map[string]ratelimit.Limiter, logCapture *logger.Capture) *Aggregator {
	return &Aggregator{
		startTime:  time.Now(),
		stats:      stats,
		caches:     caches,
		queue:      q,
		limiters:   limiters,
		logCapture: logCapture,
	}
}

// Snapshot assembles the health response. The base fields are always
// populated; metrics require authorization and detail additionally requires
// the verbose flag.
func (a *Aggregator) Snapshot(authorized, verbose bool) *models.HealthResponse {
	uptime := time.Since(a.startTime)
	resp := &models.HealthResponse{
		Status:          models.StatusHealthy,
		Timestamp:       time.Now().UTC(),
		Uptime:          uptime.Milliseconds(),
		UptimeFormatted: FormatUptime(uptime),
	}

	requests := a.stats.Metrics()
	resp.Status = a.status(requests)

	if !authorized {
		return resp
	}

	metrics := &models.HealthMetrics{
		Requests:     requests,
		Memory:       memoryMetrics(),
		Caches:       make(map[string]models.CacheMetrics, len(a.caches)),
		RateLimiters: make(map[string]models.LimiterMetrics, len(a.limiters)),
	}
	for _, c := range a.caches {
		s := c.Stats()
		metrics.Caches[c.Name()] = models.CacheMetrics{Entries: s.Entries, HitRate: s.HitRate}
	}
	if a.queue != nil {
		qs := a.queue.Stats()
		metrics.Queue = models.QueueMetrics{
			Depth:        qs.Depth,
			Active:       qs.Active,
			Processed:    qs.Processed,
			Failed:       qs.Failed,
			TimedOut:     qs.TimedOut,
			BreakerState: qs.BreakerState,
		}
	}
	for name, l := range a.limiters {
		ls := l.Stats()
		metrics.RateLimiters[name] = models.LimiterMetrics{Entries: ls.Entries, Blocked: ls.Blocked}
	}
	resp.Metrics = metrics

	if verbose {
		detail := &models.HealthDetail{
			Samples:      lastSamples(a.stats.RecentSamples(), verboseSamples),
			SlowRequests: lastSamples(a.stats.SlowSamples(), verboseSlow),
			LogLines:     []string{},
		}
		if a.logCapture != nil {
			detail.LogLines = a.logCapture.Last(verboseLogLines)
		}
		resp.Detail = detail
	}

	return resp
}

// status derives the overall state from the error rate and breaker.
func (a *Aggregator) status(requests models.RequestMetrics) string {
	if requests.Completed > 0 && requests.ErrorRate >= unhealthyErrorRate {
		return models.StatusUnhealthy
	}
	degraded := requests.Completed > 0 && requests.ErrorRate >= degradedErrorRate
	if a.queue != nil && a.queue.Stats().BreakerState != queue.BreakerClosed {
		degraded = true
	}
	if degraded {
		return models.StatusDegraded
	}
	return models.StatusHealthy
}

// FormatUptime renders a duration as its two largest nonzero units:
// "1d 4h", "3h 20m", "5m 12s", or "42s".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatBytes renders a byte count with binary-prefix units at two decimals,
// capped at GB.
func FormatBytes(n uint64) string {
	const unit = 1024
	value := float64(n)
	switch {
	case n < unit:
		return fmt.Sprintf("%.2f B", value)
	case n < unit*unit:
		return fmt.Sprintf("%.2f KB", value/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.2f MB", value/(unit*unit))
	default:
		return fmt.Sprintf("%.2f GB", value/(unit*unit*unit))
	}
}

func memoryMetrics() models.MemoryMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := models.MemoryMetrics{
		Used:  FormatBytes(ms.HeapAlloc),
		Total: FormatBytes(ms.HeapSys),
	}
	if ms.HeapSys > 0 {
		m.Percent = math.Round(float64(ms.HeapAlloc)/float64(ms.HeapSys)*10000) / 100
	}
	return m
}

func lastSamples(samples []models.RequestSample, n int) []models.RequestSample {
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	if samples == nil {
		samples = []models.RequestSample{}
	}
	return samples
}
