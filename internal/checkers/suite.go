package checkers

import (
	"sync"
	"time"

	"github.com/canslim/sentinel/internal/alerting"
	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// CheckerErrors tracks per-checker fault counts, surfaced through the
// owning worker's health counters. A checker panicking or erroring never
// stops the rest of the suite.
type CheckerErrors map[string]int

// Suite runs an ordered set of checkers against a context and tracks
// per-checker error counts. The in-memory cooldown map here is advisory
// only (per SPEC_FULL.md §5): the alerting repository's MAX(alert_time)
// query remains authoritative and is what Service.Emit actually enforces.
type Suite struct {
	checkers []Checker
	log      zerolog.Logger

	mu        sync.Mutex
	errors    CheckerErrors
	cooldowns map[[3]string]time.Time
}

// NewSuite builds a Suite from an ordered checker list.
func NewSuite(log zerolog.Logger, checkers ...Checker) *Suite {
	return &Suite{
		checkers:  checkers,
		log:       log.With().Str("component", "checker_suite").Logger(),
		errors:    make(CheckerErrors),
		cooldowns: make(map[[3]string]time.Time),
	}
}

// Run evaluates every checker against ctx, isolating failures: a
// checker's error is logged and counted but never aborts the others.
// Duplicate emissions within cooldownWindow are dropped by the advisory
// in-memory map before the survivors ever reach AlertService — a cheap
// pre-filter, not a replacement for the repository's cooldown check.
func (s *Suite) Run(p *domain.Position, ctx PositionContext, cooldownWindow time.Duration) []alerting.AlertData {
	var all []alerting.AlertData
	for _, c := range s.checkers {
		alerts, err := s.runOne(c, p, ctx)
		if err != nil {
			s.recordError(c.Name())
			s.log.Error().Err(err).Str("checker", c.Name()).Str("symbol", ctx.Symbol).Msg("checker failed")
			continue
		}
		for _, a := range alerts {
			if s.recentlyEmitted(ctx.Symbol, a.AlertType, a.AlertSubtype, cooldownWindow) {
				continue
			}
			all = append(all, a)
		}
	}
	return all
}

func (s *Suite) recentlyEmitted(symbol, alertType, alertSubtype string, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [3]string{symbol, alertType, alertSubtype}
	if last, ok := s.cooldowns[key]; ok && time.Since(last) < window {
		return true
	}
	s.cooldowns[key] = time.Now()
	return false
}

// runOne recovers a panicking checker into an error so one bad rule
// can't take the whole cycle down with it.
func (s *Suite) runOne(c Checker, p *domain.Position, ctx PositionContext) (alerts []alerting.AlertData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &checkerPanic{checker: c.Name(), value: r}
		}
	}()
	return c.Check(p, ctx)
}

type checkerPanic struct {
	checker string
	value   any
}

func (e *checkerPanic) Error() string {
	return "checker panic"
}

func (s *Suite) recordError(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[name]++
}

// Errors returns a snapshot of per-checker error counts.
func (s *Suite) Errors() CheckerErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(CheckerErrors, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// RunStatusCheck runs every checker with cooldowns bypassed and no
// persistence, for the no-side-effects status-display path.
func (s *Suite) RunStatusCheck(p *domain.Position, ctx PositionContext) []alerting.AlertData {
	var all []alerting.AlertData
	for _, c := range s.checkers {
		alerts, err := s.runOne(c, p, ctx)
		if err != nil {
			s.log.Error().Err(err).Str("checker", c.Name()).Str("symbol", ctx.Symbol).Msg("checker failed during status check")
			continue
		}
		all = append(all, alerts...)
	}
	return all
}
