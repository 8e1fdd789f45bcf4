// Package alerting is the value-added layer over the alerts repository:
// cooldown enforcement, severity classification, and routing to notifiers.
package alerting

import (
	"fmt"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCooldown is the per-(symbol, type, subtype) suppression window
// applied when a rule family doesn't configure its own.
const DefaultCooldown = 30 * time.Minute

// AlertData is the payload a checker produces; the service stamps an ID,
// time, and severity before persisting it.
type AlertData struct {
	Symbol         string
	PositionID     string
	AlertType      string
	AlertSubtype   string
	Price          float64
	PivotAtAlert   float64
	AvgCostAtAlert float64
	PnLPctAtAlert  float64
	VolumeRatio    float64
	MA21           float64
	MA50           float64
	Grade          string
	Score          float64
	MarketRegime   string
	StateAtAlert   domain.State
}

// Repository is the subset of AlertRepository the service depends on.
type Repository interface {
	Create(a *domain.Alert) error
	CheckCooldown(symbol, alertType, alertSubtype string, window time.Duration) (bool, error)
	MarkSent(alertID, channel string, at time.Time) error
	GetLatestForPosition(positionID string) (*domain.Alert, error)
	GetLatestForSymbols(symbols []string) (map[string]*domain.Alert, error)
	Acknowledge(alertID string) error
}

// Notifier delivers one already-persisted alert to an external channel.
// The service does not care about the wire format; it hands over the
// domain record and gets a channel name + error back.
type Notifier interface {
	Notify(a *domain.Alert) (channel string, err error)
}

// CooldownWindows lets callers override the default suppression window
// per (alert_type, alert_subtype) rule family.
type CooldownWindows map[[2]string]time.Duration

// Service is the AlertService: classification, cooldown, persistence, and
// notification fan-out.
type Service struct {
	repo      Repository
	notifiers []Notifier
	bus       *events.Bus
	windows   CooldownWindows
	log       zerolog.Logger
}

// NewService creates a Service. bus may be nil if nothing subscribes to
// alert events.
func NewService(repo Repository, bus *events.Bus, windows CooldownWindows, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		bus:     bus,
		windows: windows,
		log:     log.With().Str("component", "alert_service").Logger(),
	}
}

// AddNotifier registers a delivery channel. Notifiers are called in
// registration order; one failing does not stop the others.
func (s *Service) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *Service) cooldownFor(alertType, alertSubtype string) time.Duration {
	if w, ok := s.windows[[2]string{alertType, alertSubtype}]; ok {
		return w
	}
	return DefaultCooldown
}

// Severity looks up the severity for an (alertType, alertSubtype) pair.
func (s *Service) Severity(alertType, alertSubtype string) domain.Severity {
	return domain.SeverityFor(alertType, alertSubtype)
}

// Emit validates, applies the cooldown policy, persists, and enqueues the
// alert for notification. Returns the persisted alert and whether it was
// suppressed by cooldown (a suppressed alert is never persisted).
func (s *Service) Emit(data AlertData) (*domain.Alert, bool, error) {
	if data.Symbol == "" || data.AlertType == "" || data.AlertSubtype == "" {
		return nil, false, fmt.Errorf("alert requires symbol, alert_type and alert_subtype")
	}

	window := s.cooldownFor(data.AlertType, data.AlertSubtype)
	inCooldown, err := s.repo.CheckCooldown(data.Symbol, data.AlertType, data.AlertSubtype, window)
	if err != nil {
		return nil, false, fmt.Errorf("check cooldown: %w", err)
	}
	if inCooldown {
		return nil, true, nil
	}

	alert := &domain.Alert{
		AlertTime:      time.Now(),
		ID:             uuid.NewString(),
		PositionID:     data.PositionID,
		AlertType:      data.AlertType,
		AlertSubtype:   data.AlertSubtype,
		Severity:       domain.SeverityFor(data.AlertType, data.AlertSubtype),
		Price:          data.Price,
		PivotAtAlert:   data.PivotAtAlert,
		AvgCostAtAlert: data.AvgCostAtAlert,
		PnLPctAtAlert:  data.PnLPctAtAlert,
		VolumeRatio:    data.VolumeRatio,
		MA21:           data.MA21,
		MA50:           data.MA50,
		Grade:          data.Grade,
		Score:          data.Score,
		MarketRegime:   data.MarketRegime,
		StateAtAlert:   data.StateAtAlert,
	}

	if err := s.repo.Create(alert); err != nil {
		return nil, false, fmt.Errorf("persist alert: %w", err)
	}

	if s.bus != nil {
		s.bus.Emit(events.AlertEmitted, "alert_service", alert)
	}

	s.notify(alert)
	return alert, false, nil
}

// notify fans the alert out to every registered notifier, logging but
// never returning individual failures: one bad webhook must not block the
// others or the caller.
func (s *Service) notify(alert *domain.Alert) {
	for _, n := range s.notifiers {
		channel, err := n.Notify(alert)
		if err != nil {
			s.log.Error().Err(err).Str("alert_id", alert.ID).Str("channel", channel).Msg("notifier failed")
			continue
		}
		if err := s.repo.MarkSent(alert.ID, channel, time.Now()); err != nil {
			s.log.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to record notification")
		}
	}
}

// LatestForPosition returns the most recent alert for a position, if any.
func (s *Service) LatestForPosition(positionID string) (*domain.Alert, error) {
	return s.repo.GetLatestForPosition(positionID)
}

// LatestForSymbols returns the most recent alert per symbol, for symbols
// that have one.
func (s *Service) LatestForSymbols(symbols []string) (map[string]*domain.Alert, error) {
	return s.repo.GetLatestForSymbols(symbols)
}

// Acknowledge idempotently flips an alert's acknowledged flag.
func (s *Service) Acknowledge(alertID string) error {
	return s.repo.Acknowledge(alertID)
}
