package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"finpulse/pkg/core/assessor"
	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/logging"
	"finpulse/pkg/core/resilience"
	"finpulse/pkg/core/store"
	"finpulse/pkg/models"
)

// Config is the tunable behaviour of an Orchestrator.
type Config struct {
	Retry    resilience.Policy
	Progress Progress
	Rates    calc.RatePolicy
	Tenures  calc.TenurePolicy
	// CrossCheckTolerancePct is the relative gap allowed between remote and
	// local working-capital metrics before a discrepancy is logged.
	CrossCheckTolerancePct float64
}

func DefaultConfig() Config {
	return Config{
		Retry:                  resilience.DefaultPolicy(),
		Progress:               DefaultProgress(),
		Rates:                  calc.DefaultRatePolicy(),
		Tenures:                calc.DefaultTenurePolicy(),
		CrossCheckTolerancePct: 1,
	}
}

type session struct {
	state   State
	current *models.SavedReport
	failure *Failure
	seed    *models.FinancialDataPatch
}

// Snapshot is the read model of one user's session.
type Snapshot struct {
	UserID  string              `json:"user_id"`
	State   State               `json:"state"`
	Current *models.SavedReport `json:"current,omitempty"`
	Derived *calc.Derived       `json:"derived,omitempty"`
	Failure *Failure            `json:"failure,omitempty"`
}

// Orchestrator owns the assessment state machine of every user session.
type Orchestrator struct {
	assessor assessor.Assessor
	store    store.HistoryStore
	guard    Guard
	cfg      Config

	clock func() time.Time
	newID func() string
	sleep func(context.Context, time.Duration) error
	log   *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Orchestrator)

func WithGuard(g Guard) Option { return func(o *Orchestrator) { o.guard = g } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.clock = now } }

func WithIDs(next func() string) Option { return func(o *Orchestrator) { o.newID = next } }

// WithSleep replaces the timer used by the progress sequence.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func WithLogger(l *logrus.Entry) Option { return func(o *Orchestrator) { o.log = l } }

func New(a assessor.Assessor, s store.HistoryStore, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		assessor: a,
		store:    s,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		sleep:    sleepContext,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.guard == nil {
		o.guard = NewLocalGuard()
	}
	if o.log == nil {
		o.log = logging.For("pipeline")
	}
	return o
}

// sessionLocked returns the user's session, creating it. o.mu must be held.
func (o *Orchestrator) sessionLocked(userID string) *session {
	s, ok := o.sessions[userID]
	if !ok {
		s = &session{state: StateIdle}
		o.sessions[userID] = s
	}
	return s
}

func (o *Orchestrator) transition(userID string, to State, sink Sink, fields logrus.Fields) {
	o.mu.Lock()
	o.sessionLocked(userID).state = to
	o.mu.Unlock()

	o.log.WithFields(fields).WithFields(logrus.Fields{"user_id": userID, "state": to}).Info("state transition")
	sink.emit(Event{Type: EventState, State: to})
}

// Submit runs the full pipeline for one validated snapshot and returns the
// committed report. Invalid input is rejected before any state change; a
// second Submit for the same user while one is in flight gets ErrBusy. On
// failure nothing is committed and the current report is left as it was.
func (o *Orchestrator) Submit(ctx context.Context, userID string, data models.FinancialData, sink Sink) (models.SavedReport, error) {
	if userID == "" {
		return models.SavedReport{}, store.ErrInvalidUser
	}
	if err := models.ValidateFinancialData(data); err != nil {
		return models.SavedReport{}, err
	}
	data = data.Clone()

	release, err := o.guard.Acquire(ctx, userID)
	if err != nil {
		return models.SavedReport{}, err
	}
	defer release()

	o.mu.Lock()
	o.sessionLocked(userID).failure = nil
	o.mu.Unlock()
	o.transition(userID, StatePreprocessing, sink, nil)

	history, err := o.store.Reports(ctx, userID)
	if err != nil {
		return models.SavedReport{}, o.fail(userID, StatePreprocessing, fmt.Errorf("load history: %w", err), sink)
	}
	summary := assessor.Summarize(history)

	policy := o.cfg.Retry
	policy.Logger = o.log.WithField("user_id", userID)
	policy.OnRetry = func(r resilience.Retry) {
		sink.emit(Event{Type: EventRetry, Attempt: r.Attempt, WaitMs: r.Wait.Milliseconds(), RetryKind: r.Kind.String()})
	}

	// The remote call starts with the progress sequence; its result is only
	// used once the sequence has finished. A failed call cancels the sequence.
	var (
		result     models.AssessmentResult
		progressed = make(chan struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := o.cfg.Progress.run(gctx, o.sleep, sink); err != nil {
			return err
		}
		close(progressed)
		o.transition(userID, StateInvoking, sink, nil)
		return nil
	})
	g.Go(func() error {
		var err error
		result, err = resilience.Invoke(gctx, policy, func(ctx context.Context) (models.AssessmentResult, error) {
			return o.assessor.Assess(ctx, data, summary)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		from := StatePreprocessing
		select {
		case <-progressed:
			from = StateInvoking
		default:
		}
		return models.SavedReport{}, o.fail(userID, from, err, sink)
	}

	o.transition(userID, StateMerging, sink, nil)
	derived := calc.Derive(data, result, o.cfg.Rates, o.cfg.Tenures, o.cfg.CrossCheckTolerancePct)
	if !derived.Check.Consistent {
		o.log.WithFields(logrus.Fields{
			"user_id":       userID,
			"discrepancies": derived.Check.Discrepancies,
		}).Warn("remote working-capital metrics disagree with local computation")
	}

	report := models.SavedReport{
		ID:         o.newID(),
		Timestamp:  o.clock(),
		Data:       data,
		Assessment: result,
	}
	if _, err := o.store.CommitReport(ctx, userID, report); err != nil {
		return models.SavedReport{}, o.fail(userID, StateMerging, fmt.Errorf("commit report: %w", err), sink)
	}

	o.mu.Lock()
	current := report.Clone()
	o.sessionLocked(userID).current = &current
	o.mu.Unlock()
	o.transition(userID, StateCommitted, sink, logrus.Fields{
		"report_id":        report.ID,
		"credit_score":     result.CreditScore,
		"eligible_amount":  result.LoanEligibility.EligibleAmount,
		"annual_rate_pct":  derived.AnnualRatePct,
		"rate_policy":      derived.RatePolicyVersion,
		"tenure_savings":   derived.TenureSavingsPct.String(),
		"daily_target":     derived.Targets.Daily,
		"metrics_verified": derived.Check.Consistent,
	})
	return report, nil
}

func (o *Orchestrator) fail(userID string, from State, err error, sink Sink) error {
	f := &Failure{
		Kind:    ErrorKind(err),
		Message: UserMessage(err),
		Detail:  err.Error(),
		From:    from,
		At:      o.clock(),
	}
	o.mu.Lock()
	o.sessionLocked(userID).failure = f
	o.mu.Unlock()

	logging.LogError(o.log.Logger, "pipeline", "Submit", string(from), map[string]interface{}{
		"user_id": userID,
		"kind":    f.Kind,
	}, err)
	o.transition(userID, StateFailed, sink, logrus.Fields{"kind": f.Kind})
	return err
}

// SelectReport makes a stored report the current one without re-running the
// pipeline. The returned report is exactly what the store holds.
func (o *Orchestrator) SelectReport(ctx context.Context, userID, reportID string) (models.SavedReport, error) {
	if userID == "" {
		return models.SavedReport{}, store.ErrInvalidUser
	}
	report, ok, err := store.FindReport(ctx, o.store, userID, reportID)
	if err != nil {
		return models.SavedReport{}, err
	}
	if !ok {
		return models.SavedReport{}, ErrUnknownReport
	}

	o.mu.Lock()
	current := report.Clone()
	o.sessionLocked(userID).current = &current
	o.mu.Unlock()
	return report, nil
}

// Current returns the user's session with locally derived metrics for the
// current report.
func (o *Orchestrator) Current(userID string) Snapshot {
	o.mu.Lock()
	snap := Snapshot{UserID: userID, State: StateIdle}
	if s, ok := o.sessions[userID]; ok {
		snap.State = s.state
		if s.current != nil {
			c := s.current.Clone()
			snap.Current = &c
		}
		if s.failure != nil {
			f := *s.failure
			snap.Failure = &f
		}
	}
	o.mu.Unlock()

	if snap.Current != nil {
		d := calc.Derive(snap.Current.Data, snap.Current.Assessment, o.cfg.Rates, o.cfg.Tenures, o.cfg.CrossCheckTolerancePct)
		snap.Derived = &d
	}
	return snap
}

// RecordLogin appends to the login audit trail. A successful login restores
// the most recent report as the current one.
func (o *Orchestrator) RecordLogin(ctx context.Context, userID string, status models.LoginStatus, ip string) ([]models.LoginSession, error) {
	logins, err := o.store.RecordLogin(ctx, userID, models.LoginSession{Timestamp: o.clock(), Status: status, IP: ip})
	if err != nil {
		return nil, err
	}
	if status != models.LoginSuccess {
		return logins, nil
	}

	reports, err := o.store.Reports(ctx, userID)
	if err != nil {
		return logins, fmt.Errorf("restore latest report: %w", err)
	}
	if len(reports) > 0 {
		o.mu.Lock()
		latest := reports[0].Clone()
		o.sessionLocked(userID).current = &latest
		o.mu.Unlock()
	}
	return logins, nil
}

// SetSeed stores an imported partial snapshot for the user's next form.
func (o *Orchestrator) SetSeed(userID string, patch models.FinancialDataPatch) error {
	if userID == "" {
		return store.ErrInvalidUser
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	p := patch
	o.sessionLocked(userID).seed = &p
	return nil
}

// Seed returns the imported values applied over the default form.
func (o *Orchestrator) Seed(userID string) models.FinancialData {
	o.mu.Lock()
	defer o.mu.Unlock()
	base := models.DefaultFinancialData()
	if s, ok := o.sessions[userID]; ok && s.seed != nil {
		return s.seed.Apply(base)
	}
	return base
}

// RemoveUser purges the user's stored collections and session. It fails with
// ErrBusy while a run is in flight.
func (o *Orchestrator) RemoveUser(ctx context.Context, userID string) error {
	if userID == "" {
		return store.ErrInvalidUser
	}
	release, err := o.guard.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if err := o.store.RemoveUser(ctx, userID); err != nil {
		return err
	}
	o.mu.Lock()
	delete(o.sessions, userID)
	o.mu.Unlock()
	o.log.WithField("user_id", userID).Info("user removed")
	return nil
}

// IsBusy reports whether err means another run holds the user.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }
