// Package throttle decides whether an aggregated error should trigger a
// notification.
//
// State is a mutex-guarded in-memory map of fingerprint to last-notified
// time. It is per-process: in a multi-process deployment each process
// enforces its own cooldown window, an accepted trade-off. Deployments
// that need a cluster-wide window can externalize the map to a shared
// cache behind the same component boundary.
package throttle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mrz1836/go-faultline/internal/severity"
)

// Config configures the notification throttler.
type Config struct {
	// Cooldown is the minimum interval between notifications for one
	// fingerprint. Zero or negative disables the cooldown.
	Cooldown time.Duration

	// MinSeverity is the least severe level that may notify at all.
	MinSeverity severity.Level

	// NotificationsPerSecond caps process-wide notification throughput
	// (token refill rate). Zero or negative disables the cap.
	NotificationsPerSecond float64

	// BurstSize is the token bucket size for the throughput cap
	// (default: 5 when the cap is enabled).
	BurstSize int
}

// DefaultConfig returns conservative throttle defaults.
func DefaultConfig() Config {
	return Config{
		Cooldown:               30 * time.Minute,
		MinSeverity:            severity.Low,
		NotificationsPerSecond: 0,
		BurstSize:              5,
	}
}

// Milestones are the occurrence counts that flag threshold escalation
// regardless of cooldown state.
//
//nolint:gochecknoglobals // fixed escalation ladder
var Milestones = []int64{10, 50, 100, 500, 1000, 5000, 10000}

// Notifier tracks per-fingerprint notification times and enforces the
// cooldown, severity floor, and optional process-wide rate cap.
//
// All checks fail open: an internal inconsistency yields "allow notify"
// rather than silently suppressing an alert.
type Notifier struct {
	config  Config
	limiter *rate.Limiter
	logger  *logrus.Entry

	mu           sync.Mutex
	lastNotified map[string]time.Time
	now          func() time.Time
}

// NewNotifier creates a Notifier with the given configuration.
func NewNotifier(cfg Config, logger *logrus.Logger) *Notifier {
	n := &Notifier{
		config:       cfg,
		logger:       logger.WithField("component", "throttle"),
		lastNotified: make(map[string]time.Time),
		now:          time.Now,
	}
	if cfg.NotificationsPerSecond > 0 {
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = 5
		}
		n.limiter = rate.NewLimiter(rate.Limit(cfg.NotificationsPerSecond), burst)
	}
	return n
}

// WithNowFunc replaces the clock, for tests.
func (n *Notifier) WithNowFunc(now func() time.Time) *Notifier {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
	return n
}

// ShouldNotify reports whether a notification may be sent for the
// fingerprint at its current severity: the severity must meet the
// configured floor and the fingerprint must be outside its cooldown
// window. A disabled cooldown (<= 0) only applies the severity floor.
//
// ShouldNotify does not record a notification; callers that go on to
// dispatch must call MarkNotified.
func (n *Notifier) ShouldNotify(fingerprint string, level severity.Level) bool {
	if fingerprint == "" {
		// Fail open: a missing fingerprint is an upstream bug, not a
		// reason to drop an alert.
		n.logger.Warn("ShouldNotify called with empty fingerprint, allowing")
		return true
	}
	if !severity.AtLeast(level, n.config.MinSeverity) {
		return false
	}
	if n.config.Cooldown <= 0 {
		return n.allowRate(fingerprint)
	}

	n.mu.Lock()
	last, seen := n.lastNotified[fingerprint]
	now := n.now()
	n.mu.Unlock()

	if seen && now.Sub(last) < n.config.Cooldown {
		return false
	}
	return n.allowRate(fingerprint)
}

// allowRate consults the process-wide rate cap. Suppression here is
// logged and does not advance cooldown state, so the next eligible check
// may still notify.
func (n *Notifier) allowRate(fingerprint string) bool {
	if n.limiter == nil {
		return true
	}
	if n.limiter.Allow() {
		return true
	}
	n.logger.WithField("fingerprint", fingerprint).
		Warn("Notification suppressed by process-wide rate cap")
	return false
}

// MarkNotified records that a notification was sent for the fingerprint.
func (n *Notifier) MarkNotified(fingerprint string) {
	if fingerprint == "" {
		return
	}
	n.mu.Lock()
	n.lastNotified[fingerprint] = n.now()
	n.mu.Unlock()
}

// ThresholdReached reports whether an occurrence count sits exactly on an
// escalation milestone. Milestone escalations bypass the cooldown.
func ThresholdReached(count int64) bool {
	for _, m := range Milestones {
		if count == m {
			return true
		}
	}
	return false
}

// Clear drops all recorded notification times.
func (n *Notifier) Clear() {
	n.mu.Lock()
	n.lastNotified = make(map[string]time.Time)
	n.mu.Unlock()
}

// Prune drops entries older than maxAge to bound memory over process
// lifetime. Returns the number of entries removed.
func (n *Notifier) Prune(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := n.now().Add(-maxAge)
	removed := 0
	for fingerprint, last := range n.lastNotified {
		if last.Before(cutoff) {
			delete(n.lastNotified, fingerprint)
			removed++
		}
	}
	if removed > 0 {
		n.logger.WithField("removed", removed).Debug("Pruned throttle state")
	}
	return removed
}

// Size returns the number of tracked fingerprints.
func (n *Notifier) Size() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lastNotified)
}
