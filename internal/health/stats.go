package health

import (
	"math"
	"net/http"
	"sync"
	"time"

	"gatekeeper/internal/models"
)

// slowThreshold marks a request as slow for health reporting.
const slowThreshold = time.Second

// ring sizes for the verbose report.
const (
	sampleRingSize = 20
	slowRingSize   = 10
)

// RequestStats records request outcomes for the health aggregator. It keeps
// cumulative counters plus small rings of recent and slow request samples.
type RequestStats struct {
	mu            sync.Mutex
	active        int64
	completed     int64
	errors        int64
	slow          int64
	totalDuration time.Duration
	samples       []models.RequestSample
	slowSamples   []models.RequestSample
}

// NewRequestStats creates an empty recorder.
func NewRequestStats() *RequestStats {
	return &RequestStats{}
}

// Begin marks a request as in flight and returns a function to record its
// completion.
func (s *RequestStats) Begin() func(method, path string, status int, duration time.Duration) {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	return func(method, path string, status int, duration time.Duration) {
		sample := models.RequestSample{
			Method:    method,
			Path:      path,
			Status:    status,
			Duration:  round2(float64(duration) / float64(time.Millisecond)),
			Timestamp: time.Now().UTC(),
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		s.active--
		s.completed++
		s.totalDuration += duration
		if status >= http.StatusInternalServerError {
			s.errors++
		}
		s.samples = appendRing(s.samples, sample, sampleRingSize)
		if duration >= slowThreshold {
			s.slow++
			s.slowSamples = appendRing(s.slowSamples, sample, slowRingSize)
		}
	}
}

// Metrics returns the counters formatted for the health response.
func (s *RequestStats) Metrics() models.RequestMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := models.RequestMetrics{
		Active:       s.active,
		Completed:    s.completed,
		SlowRequests: s.slow,
	}
	if s.completed > 0 {
		avgMs := float64(s.totalDuration) / float64(s.completed) / float64(time.Millisecond)
		m.AvgDuration = round2(avgMs)
		m.ErrorRate = round2(float64(s.errors) / float64(s.completed) * 100)
	}
	return m
}

// RecentSamples returns the sample ring, oldest first.
func (s *RequestStats) RecentSamples() []models.RequestSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RequestSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// SlowSamples returns the slow-request ring, oldest first.
func (s *RequestStats) SlowSamples() []models.RequestSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RequestSample, len(s.slowSamples))
	copy(out, s.slowSamples)
	return out
}

func appendRing(ring []models.RequestSample, sample models.RequestSample, max int) []models.RequestSample {
	ring = append(ring, sample)
	if len(ring) > max {
		ring = ring[len(ring)-max:]
	}
	return ring
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
