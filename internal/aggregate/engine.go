// Package aggregate implements the deduplicating aggregation engine.
//
// Given a fingerprinted error signal the engine performs one
// read-decide-write sequence against the store: increment the active
// record, reopen a terminal one, or create a new row. The sequence runs
// inside a store transaction so concurrent producers for the same
// (tenant, fingerprint) serialize; producers for different fingerprints
// never block each other beyond the store's own write scheduling.
package aggregate

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrz1836/go-faultline/internal/db"
	"github.com/mrz1836/go-faultline/internal/errors"
	"github.com/mrz1836/go-faultline/internal/fingerprint"
	"github.com/mrz1836/go-faultline/internal/logging"
	"github.com/mrz1836/go-faultline/internal/priority"
	"github.com/mrz1836/go-faultline/internal/severity"
	"github.com/mrz1836/go-faultline/internal/signal"
)

// DefaultActiveWindow is how far back an unresolved record still counts
// as the active match for its fingerprint.
const DefaultActiveWindow = 24 * time.Hour

// Decision identifies which branch the engine took for a signal.
type Decision string

// Aggregation decisions.
const (
	DecisionCreated     Decision = "created"
	DecisionIncremented Decision = "incremented"
	DecisionReopened    Decision = "reopened"
)

// Result is the outcome of aggregating one signal, produced for the
// notification-dispatch and dashboard collaborators.
type Result struct {
	Record       *db.AggregatedError
	Decision     Decision
	JustReopened bool
	Severity     severity.Level
}

// FirstOccurrence reports whether this signal created the record, the
// "notify at all" trigger for downstream consumers.
func (r *Result) FirstOccurrence() bool {
	return r.Decision == DecisionCreated
}

// Config holds engine settings.
type Config struct {
	// ActiveWindow bounds the active-match lookup (default 24h).
	ActiveWindow time.Duration
}

// Engine aggregates error signals into deduplicated records.
type Engine struct {
	repo          db.ErrorRepository
	fingerprinter *fingerprint.Generator
	classifier    *severity.Classifier
	config        Config
	logger        *logrus.Entry
}

// NewEngine creates an aggregation Engine.
func NewEngine(repo db.ErrorRepository, fp *fingerprint.Generator, classifier *severity.Classifier, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = DefaultActiveWindow
	}
	return &Engine{
		repo:          repo,
		fingerprinter: fp,
		classifier:    classifier,
		config:        cfg,
		logger:        logger.WithField(logging.StandardFields.Component, "aggregate"),
	}
}

// Record aggregates one signal: increment the active record for its
// fingerprint, reopen a terminal one, or create a new row, then refresh
// denormalized attributes and the priority score.
//
// Errors are logged here and returned for callers that care; the ingest
// pipeline treats any error as "not recorded" and never propagates it to
// the instrumented application.
func (e *Engine) Record(ctx context.Context, sig *signal.ErrorSignal) (*Result, error) {
	if err := sig.Validate(); err != nil {
		e.logger.WithField(logging.StandardFields.Error, err.Error()).
			Debug("Rejected malformed signal")
		return nil, err
	}

	fp := e.fingerprinter.Generate(sig)
	if fp == "" {
		return nil, errors.ErrEmptyFingerprint
	}
	level := e.classifier.Classify(sig.Type)
	occurredAt := sig.Time()

	var result *Result
	err := e.repo.Transaction(ctx, func(tx db.ErrorRepository) error {
		res, txErr := e.decide(ctx, tx, sig, fp, level, occurredAt)
		if txErr != nil {
			return txErr
		}
		if occErr := tx.RecordOccurrence(ctx, &db.ErrorOccurrence{
			AggregatedErrorID: res.Record.ID,
			Fingerprint:       fp,
			ErrorType:         sig.Type,
			Platform:          sig.Platform,
			TenantID:          sig.TenantID,
			OccurredAt:        occurredAt,
		}); occErr != nil {
			return occErr
		}
		result = res
		return nil
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			logging.StandardFields.Fingerprint: fp,
			logging.StandardFields.ErrorType:   sig.Type,
			logging.StandardFields.Error:       err.Error(),
		}).Error("Aggregation failed")
		return nil, errors.WrapWithContext(err, "aggregate signal")
	}

	e.logger.WithFields(logrus.Fields{
		logging.StandardFields.Fingerprint:     fp,
		logging.StandardFields.Decision:        string(result.Decision),
		logging.StandardFields.OccurrenceCount: result.Record.OccurrenceCount,
	}).Debug("Aggregated signal")

	return result, nil
}

// decide performs the ordered create/increment/reopen decision inside the
// transaction.
func (e *Engine) decide(ctx context.Context, tx db.ErrorRepository, sig *signal.ErrorSignal, fp string, level severity.Level, occurredAt time.Time) (*Result, error) {
	// Step 1: active match within the window.
	active, err := tx.FindActiveMatch(ctx, sig.TenantID, fp, e.config.ActiveWindow)
	if err == nil {
		e.increment(active, sig, level, occurredAt)
		if updateErr := tx.Update(ctx, active); updateErr != nil {
			return nil, updateErr
		}
		return &Result{Record: active, Decision: DecisionIncremented, Severity: level}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	// Step 2: reopen a terminal record, regardless of age.
	terminal, err := tx.FindTerminalMatch(ctx, sig.TenantID, fp)
	if err == nil {
		e.reopen(terminal, sig, level, occurredAt)
		if updateErr := tx.Update(ctx, terminal); updateErr != nil {
			return nil, updateErr
		}
		return &Result{Record: terminal, Decision: DecisionReopened, JustReopened: true, Severity: level}, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	// Step 3: create. A concurrent create for the same fingerprint is
	// expected under load; on a unique violation re-read the key and
	// retry as an increment or reopen against the now-existing row.
	record := e.newRecord(sig, fp, level, occurredAt)
	createErr := tx.Create(ctx, record)
	if createErr == nil {
		return &Result{Record: record, Decision: DecisionCreated, Severity: level}, nil
	}
	if !db.IsUniqueViolation(createErr) {
		return nil, createErr
	}

	existing, findErr := tx.FindAnyMatch(ctx, sig.TenantID, fp)
	if findErr != nil {
		return nil, createErr
	}
	if existing.IsTerminal() {
		e.reopen(existing, sig, level, occurredAt)
		if updateErr := tx.Update(ctx, existing); updateErr != nil {
			return nil, updateErr
		}
		return &Result{Record: existing, Decision: DecisionReopened, JustReopened: true, Severity: level}, nil
	}
	e.increment(existing, sig, level, occurredAt)
	if updateErr := tx.Update(ctx, existing); updateErr != nil {
		return nil, updateErr
	}
	return &Result{Record: existing, Decision: DecisionIncremented, Severity: level}, nil
}

func (e *Engine) newRecord(sig *signal.ErrorSignal, fp string, level severity.Level, occurredAt time.Time) *db.AggregatedError {
	record := &db.AggregatedError{
		Fingerprint:     fp,
		TenantID:        sig.TenantID,
		ErrorType:       sig.Type,
		Message:         sig.Message,
		Controller:      sig.Controller,
		Action:          sig.Action,
		Platform:        sig.Platform,
		OccurrenceCount: 1,
		FirstSeenAt:     occurredAt,
		LastSeenAt:      occurredAt,
		Status:          db.StatusNew,
		Severity:        string(level),
		LastUserID:      sig.UserID,
		LastRequestURL:  sig.RequestURL,
		LastUserAgent:   sig.UserAgent,
		LastIP:          sig.IP,
	}
	if sig.UserID != "" {
		record.SeenUserIDs = db.JSONStringSlice{sig.UserID}
		record.UniqueUserCount = 1
	}
	record.PriorityScore = e.score(record, level)
	return record
}

// increment folds a new occurrence into an existing record. Denormalized
// last-occurrence attributes prefer the new value only when present.
func (e *Engine) increment(record *db.AggregatedError, sig *signal.ErrorSignal, level severity.Level, occurredAt time.Time) {
	record.OccurrenceCount++
	if occurredAt.After(record.LastSeenAt) {
		record.LastSeenAt = occurredAt
	}
	record.Severity = string(level)
	refreshLastOccurrence(record, sig)
	trackUser(record, sig.UserID)
	record.PriorityScore = e.score(record, level)
}

// reopen transitions a terminal record back to active. FirstSeenAt is
// preserved; resolution fields are cleared.
func (e *Engine) reopen(record *db.AggregatedError, sig *signal.ErrorSignal, level severity.Level, occurredAt time.Time) {
	record.Status = db.StatusNew
	record.Resolved = false
	record.ResolvedAt = nil
	record.ResolvedBy = ""
	e.increment(record, sig, level, occurredAt)
}

func (e *Engine) score(record *db.AggregatedError, level severity.Level) int {
	return priority.Score(priority.ScoreInput{
		Severity:            level,
		OccurrenceCount:     record.OccurrenceCount,
		LastSeenAt:          record.LastSeenAt,
		UniqueAffectedUsers: record.UniqueUserCount,
	})
}

func refreshLastOccurrence(record *db.AggregatedError, sig *signal.ErrorSignal) {
	if sig.Message != "" {
		record.Message = sig.Message
	}
	if sig.Controller != "" {
		record.Controller = sig.Controller
	}
	if sig.Action != "" {
		record.Action = sig.Action
	}
	if sig.Platform != "" {
		record.Platform = sig.Platform
	}
	if sig.UserID != "" {
		record.LastUserID = sig.UserID
	}
	if sig.RequestURL != "" {
		record.LastRequestURL = sig.RequestURL
	}
	if sig.UserAgent != "" {
		record.LastUserAgent = sig.UserAgent
	}
	if sig.IP != "" {
		record.LastIP = sig.IP
	}
}

// trackUser maintains the capped distinct-user list. Past the cap the
// counter still grows for unseen ids, trading exactness for bounded rows.
func trackUser(record *db.AggregatedError, userID string) {
	if userID == "" {
		return
	}
	for _, seen := range record.SeenUserIDs {
		if seen == userID {
			return
		}
	}
	record.UniqueUserCount++
	if len(record.SeenUserIDs) < db.MaxSeenUserIDs {
		record.SeenUserIDs = append(record.SeenUserIDs, userID)
	}
}

func isNotFound(err error) bool {
	return stderrors.Is(err, db.ErrRecordNotFound)
}
