// Package reputation tracks blocked IPs and per-IP suspicious activity
// counters. The validator and middleware report suspicious signals here; once
// an IP accumulates enough of them it is blocked automatically.
package reputation

import (
	"context"
	"sync"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
)

// Store holds the block list and suspicion counters. All methods are safe
// for concurrent use. State is process-local and rebuilt from configuration
// on restart.
type Store struct {
	threshold int
	auditLog  *audit.Logger

	mu         sync.Mutex
	blocked    map[string]struct{}
	suspicious map[string]int
}

// NewStore creates a reputation store. IPs listed in seed are blocked from
// the start. threshold is the suspicion count at which an IP is blocked
// automatically; 0 disables auto-blocking. auditLog may be nil.
func NewStore(threshold int, seed []string, auditLog *audit.Logger) *Store {
	s := &Store{
		threshold:  threshold,
		auditLog:   auditLog,
		blocked:    make(map[string]struct{}),
		suspicious: make(map[string]int),
	}
	for _, ip := range seed {
		s.blocked[ip] = struct{}{}
	}
	return s
}

// IsBlocked reports whether the IP is on the block list.
func (s *Store) IsBlocked(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[ip]
	return ok
}

// Block adds the IP to the block list.
func (s *Store) Block(ctx context.Context, ip, reason string) {
	s.mu.Lock()
	_, already := s.blocked[ip]
	s.blocked[ip] = struct{}{}
	s.mu.Unlock()

	if !already && s.auditLog != nil {
		s.auditLog.Log(ctx, "ip_blocked", ip, models.SeverityHigh, reason, "")
	}
}

// Unblock removes the IP from the block list and resets its suspicion count.
func (s *Store) Unblock(ctx context.Context, ip string) {
	s.mu.Lock()
	_, was := s.blocked[ip]
	delete(s.blocked, ip)
	delete(s.suspicious, ip)
	s.mu.Unlock()

	if was && s.auditLog != nil {
		s.auditLog.Log(ctx, "ip_unblocked", ip, models.SeverityLow, "administrative unblock", "")
	}
}

// ReportSuspicious increments the IP's suspicion counter and blocks the IP
// once the counter reaches the configured threshold.
func (s *Store) ReportSuspicious(ctx context.Context, ip, reason string) {
	s.mu.Lock()
	s.suspicious[ip]++
	count := s.suspicious[ip]
	shouldBlock := s.threshold > 0 && count >= s.threshold
	if shouldBlock {
		_, already := s.blocked[ip]
		s.blocked[ip] = struct{}{}
		shouldBlock = !already
	}
	s.mu.Unlock()

	if s.auditLog != nil {
		s.auditLog.Log(ctx, "suspicious_activity", ip, models.SeverityMedium, reason, "")
		if shouldBlock {
			s.auditLog.Log(ctx, "ip_blocked", ip, models.SeverityHigh, "suspicion threshold reached", "")
		}
	}
}

// Snapshot returns copies of the block list and suspicion counters.
func (s *Store) Snapshot() ([]string, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked := make([]string, 0, len(s.blocked))
	for ip := range s.blocked {
		blocked = append(blocked, ip)
	}
	suspicious := make(map[string]int, len(s.suspicious))
	for ip, n := range s.suspicious {
		suspicious[ip] = n
	}
	return blocked, suspicious
}

// Stats is a snapshot of store sizes for the health aggregator.
type Stats struct {
	Blocked    int
	Suspicious int
}

// Stats counts blocked and watched IPs.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Blocked: len(s.blocked), Suspicious: len(s.suspicious)}
}
