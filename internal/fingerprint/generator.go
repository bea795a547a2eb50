// Package fingerprint derives stable identity hashes for error signals.
//
// Two occurrences of the same logical error must collapse to the same
// fingerprint even when their messages embed volatile values (pointer
// addresses, record ids, quoted user input) and their stack traces shift
// line numbers across deploys. The fingerprint is the dedup key for the
// aggregation engine, so stability here directly controls row growth.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/signal"
)

// Length is the number of hex characters in a fingerprint (first 64 bits
// of a SHA-256 digest).
const Length = 16

// KeyFunc optionally replaces the entire key derivation for a signal, for
// deployments that want business-level grouping (e.g. group by upstream
// service instead of stack frame). Returning an empty string or panicking
// falls back to the default derivation; the pipeline never fails on a
// custom key function.
type KeyFunc func(sig *signal.ErrorSignal) string

// Generator produces fingerprints for error signals.
type Generator struct {
	keyFunc KeyFunc
	logger  *logrus.Entry
}

// Option configures a Generator.
type Option func(*Generator)

// WithKeyFunc installs a custom key derivation hook.
func WithKeyFunc(fn KeyFunc) Option {
	return func(g *Generator) {
		g.keyFunc = fn
	}
}

// New creates a Generator. The logger may not be nil.
func New(logger *logrus.Logger, opts ...Option) *Generator {
	g := &Generator{
		logger: logger.WithField("component", "fingerprint"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Normalization patterns, applied in order. Hex addresses must be replaced
// before bare integer runs so "0x7f8a" does not degrade into "0xNUM".
var (
	hexAddressPattern  = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	objectInspectRegex = regexp.MustCompile(`#<[^>]*>`)
	doubleQuoteRegex   = regexp.MustCompile(`"[^"]*"`)
	singleQuoteRegex   = regexp.MustCompile(`'[^']*'`)
	integerRunRegex    = regexp.MustCompile(`\d+`)
)

// Directory fragments that mark a stack frame as third-party/runtime code
// rather than application code.
var libraryPathFragments = []string{
	"/vendor/",
	"/gems/",
	"/node_modules/",
	"/site-packages/",
	"/go/pkg/mod/",
	"/usr/lib/",
	"/usr/local/lib/",
	"/.rbenv/",
	"/.rvm/",
	"/ruby/",
}

// Generate returns the fingerprint for a signal.
//
// When a custom KeyFunc is installed its result is hashed instead of the
// default key; a panicking or empty-returning hook falls back to the
// default derivation so a bad hook can never drop signals.
func (g *Generator) Generate(sig *signal.ErrorSignal) string {
	if key := g.customKey(sig); key != "" {
		return hashKey(key)
	}
	return hashKey(g.defaultKey(sig))
}

// customKey runs the override hook, converting panics into a logged
// fallback to the default algorithm.
func (g *Generator) customKey(sig *signal.ErrorSignal) (key string) {
	if g.keyFunc == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithFields(logrus.Fields{
				"error_type": sig.Type,
				"panic":      r,
			}).Warn("Custom fingerprint hook panicked, using default derivation")
			key = ""
		}
	}()
	return g.keyFunc(sig)
}

func (g *Generator) defaultKey(sig *signal.ErrorSignal) string {
	parts := []string{
		sig.Type,
		NormalizeMessage(sig.Message),
		ApplicationFramePath(sig.StackFrames),
		sig.Controller,
		sig.Action,
		sig.TenantID,
	}
	return strings.Join(parts, "|")
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// NormalizeMessage replaces volatile fragments of an error message with
// placeholder tokens so logically-identical messages normalize identically:
// hex addresses, object-inspection dumps, quoted string literals, and
// integer runs.
func NormalizeMessage(message string) string {
	normalized := hexAddressPattern.ReplaceAllString(message, "ADDR")
	normalized = objectInspectRegex.ReplaceAllString(normalized, "OBJECT")
	normalized = doubleQuoteRegex.ReplaceAllString(normalized, `"STR"`)
	normalized = singleQuoteRegex.ReplaceAllString(normalized, `'STR'`)
	normalized = integerRunRegex.ReplaceAllString(normalized, "NUM")
	return normalized
}

// ApplicationFramePath returns the file path of the first stack frame that
// is not inside a third-party/library directory, with any line number and
// trailing context stripped (line numbers shift across deploys). Returns
// an empty string when no application frame exists.
func ApplicationFramePath(frames []string) string {
	for _, frame := range frames {
		if frame == "" || isLibraryFrame(frame) {
			continue
		}
		return framePath(frame)
	}
	return ""
}

func isLibraryFrame(frame string) bool {
	for _, fragment := range libraryPathFragments {
		if strings.Contains(frame, fragment) {
			return true
		}
	}
	return false
}

// framePath strips ":<line>" and anything after it from a raw frame such
// as "app/services/billing.go:42 in Charge".
func framePath(frame string) string {
	if idx := strings.Index(frame, ":"); idx > 0 {
		return frame[:idx]
	}
	return strings.TrimSpace(strings.SplitN(frame, " ", 2)[0])
}
