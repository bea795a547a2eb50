// Package filter gates incoming error signals before aggregation.
//
// Two mechanisms drop signals: a configured ignore-list (exact type name
// or wildcard pattern) and sampling (a uniform draw against a configured
// rate). Critical errors are exempt from sampling and always pass the
// sampling gate.
package filter

import (
	"math/rand"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/severity"
	"github.com/mrz1836/go-faultline/internal/signal"
)

// Config holds filter settings.
type Config struct {
	// IgnoreTypes lists error type names or wildcard patterns
	// (path.Match syntax, e.g. "ActiveRecord::*") to drop.
	IgnoreTypes []string

	// SamplingRate keeps this fraction of non-critical signals.
	// Values >= 1.0 (or <= 0, treated as unconfigured) disable sampling.
	SamplingRate float64
}

// Filter decides whether a signal should be captured.
type Filter struct {
	config     Config
	classifier *severity.Classifier
	logger     *logrus.Entry

	mu   sync.Mutex
	rand *rand.Rand
}

// New creates a Filter. A nil classifier treats every signal as
// non-critical for sampling purposes.
func New(cfg Config, classifier *severity.Classifier, logger *logrus.Logger) *Filter {
	return &Filter{
		config:     cfg,
		classifier: classifier,
		logger:     logger.WithField("component", "filter"),
		rand:       rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // sampling draw, not security-sensitive
	}
}

// WithRandSource replaces the sampling random source. Tests use this with
// a seeded source for deterministic sampling decisions.
func (f *Filter) WithRandSource(src rand.Source) *Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rand = rand.New(src) //nolint:gosec // sampling draw, not security-sensitive
	return f
}

// ShouldCapture reports whether a signal passes the ignore-list and
// sampling gates. Malformed ignore patterns are logged and treated as
// non-matching; the filter itself never fails.
func (f *Filter) ShouldCapture(sig *signal.ErrorSignal) bool {
	if sig == nil {
		return false
	}
	if f.ignored(sig.Type) {
		return false
	}
	return f.sampled(sig.Type)
}

func (f *Filter) ignored(errorType string) bool {
	for _, rule := range f.config.IgnoreTypes {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if rule == errorType {
			return true
		}
		if !strings.ContainsAny(rule, "*?[") {
			continue
		}
		matched, err := path.Match(rule, errorType)
		if err != nil {
			f.logger.WithFields(logrus.Fields{
				"rule":  rule,
				"error": err.Error(),
			}).Warn("Malformed ignore rule, treating as non-matching")
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// sampled applies the sampling gate. Critical errors always pass.
func (f *Filter) sampled(errorType string) bool {
	rate := f.config.SamplingRate
	if rate <= 0 || rate >= 1.0 {
		return true
	}
	if f.classifier != nil && f.classifier.IsCritical(errorType) {
		return true
	}

	f.mu.Lock()
	draw := f.rand.Float64()
	f.mu.Unlock()

	return draw < rate
}
