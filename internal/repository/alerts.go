package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// AlertRepository persists Alert records and answers the cooldown query
// AlertService uses to suppress duplicate emissions.
type AlertRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sql.DB, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{
		db:  db,
		log: log.With().Str("repository", "alerts").Logger(),
	}
}

// Create persists an alert. Per spec, an alert is written before it is
// delivered — Create never blocks on notification.
func (r *AlertRepository) Create(a *domain.Alert) error {
	if a.AlertTime.IsZero() {
		a.AlertTime = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO alerts (
			id, position_id, symbol, alert_type, alert_subtype, severity,
			price, pivot_at_alert, avg_cost_at_alert, pnl_pct_at_alert, volume_ratio, ma21, ma50,
			grade, score, market_regime, state_at_alert,
			alert_time, acknowledged, notified_at, notify_channel
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, nullString(a.PositionID), a.Symbol, a.AlertType, a.AlertSubtype, string(a.Severity),
		a.Price, a.PivotAtAlert, a.AvgCostAtAlert, a.PnLPctAtAlert, a.VolumeRatio, a.MA21, a.MA50,
		a.Grade, a.Score, a.MarketRegime, float64(a.StateAtAlert),
		a.AlertTime.Format(time.RFC3339Nano), a.Acknowledged, nullTime(a.NotifiedAt), nullString(a.NotifyChannel),
	)
	if err != nil {
		return fmt.Errorf("create alert %s/%s for %s: %w", a.AlertType, a.AlertSubtype, a.Symbol, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func alertColumns() string {
	return `id, position_id, symbol, alert_type, alert_subtype, severity,
		price, pivot_at_alert, avg_cost_at_alert, pnl_pct_at_alert, volume_ratio, ma21, ma50,
		grade, score, market_regime, state_at_alert,
		alert_time, acknowledged, notified_at, notify_channel`
}

func scanAlert(row interface{ Scan(...any) error }) (*domain.Alert, error) {
	var a domain.Alert
	var positionID, notifyChannel sql.NullString
	var severity string
	var state float64
	var alertTime string
	var notifiedAt sql.NullString

	err := row.Scan(
		&a.ID, &positionID, &a.Symbol, &a.AlertType, &a.AlertSubtype, &severity,
		&a.Price, &a.PivotAtAlert, &a.AvgCostAtAlert, &a.PnLPctAtAlert, &a.VolumeRatio, &a.MA21, &a.MA50,
		&a.Grade, &a.Score, &a.MarketRegime, &state,
		&alertTime, &a.Acknowledged, &notifiedAt, &notifyChannel,
	)
	if err != nil {
		return nil, err
	}

	a.PositionID = positionID.String
	a.Severity = domain.Severity(severity)
	a.StateAtAlert = domain.State(state)
	if t, err := time.Parse(time.RFC3339Nano, alertTime); err == nil {
		a.AlertTime = t
	}
	a.NotifiedAt = parseTime(notifiedAt)
	a.NotifyChannel = notifyChannel.String

	return &a, nil
}

// CheckCooldown reports whether an alert matching (symbol, alertType,
// alertSubtype) fired within window of now, using MAX(alert_time) over
// matching rows.
func (r *AlertRepository) CheckCooldown(symbol, alertType, alertSubtype string, window time.Duration) (bool, error) {
	var maxTime sql.NullString
	err := r.db.QueryRow(`
		SELECT MAX(alert_time) FROM alerts
		WHERE symbol = ? AND alert_type = ? AND alert_subtype = ?
	`, symbol, alertType, alertSubtype).Scan(&maxTime)
	if err != nil {
		return false, fmt.Errorf("check cooldown for %s/%s/%s: %w", symbol, alertType, alertSubtype, err)
	}
	if !maxTime.Valid {
		return false, nil
	}
	last, err := time.Parse(time.RFC3339Nano, maxTime.String)
	if err != nil {
		return false, fmt.Errorf("parse last alert_time for %s: %w", symbol, err)
	}
	return time.Since(last) < window, nil
}

// MarkSent records the notification channel and timestamp for a
// previously-persisted alert.
func (r *AlertRepository) MarkSent(alertID, channel string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(
		"UPDATE alerts SET notified_at = ?, notify_channel = ? WHERE id = ?",
		at.Format(time.RFC3339Nano), channel, alertID,
	)
	if err != nil {
		return fmt.Errorf("mark alert %s sent: %w", alertID, err)
	}
	return nil
}

// GetLatestForPosition returns the most recent alert for a position, or
// (nil, nil) when none exist.
func (r *AlertRepository) GetLatestForPosition(positionID string) (*domain.Alert, error) {
	row := r.db.QueryRow(
		"SELECT "+alertColumns()+" FROM alerts WHERE position_id = ? ORDER BY alert_time DESC LIMIT 1",
		positionID,
	)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest alert for position %s: %w", positionID, err)
	}
	return a, nil
}

// GetLatestForSymbols returns, per symbol, the single most recent alert —
// used by status/display read paths.
func (r *AlertRepository) GetLatestForSymbols(symbols []string) (map[string]*domain.Alert, error) {
	if len(symbols) == 0 {
		return map[string]*domain.Alert{}, nil
	}

	placeholders := make([]string, len(symbols))
	args := make([]any, len(symbols))
	for i, s := range symbols {
		placeholders[i] = "?"
		args[i] = s
	}

	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE symbol IN (%s)
		AND alert_time = (
			SELECT MAX(alert_time) FROM alerts a2 WHERE a2.symbol = alerts.symbol
		)
	`, alertColumns(), strings.Join(placeholders, ","))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get latest alerts for symbols: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.Alert)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan latest alert row: %w", err)
		}
		out[a.Symbol] = a
	}
	return out, rows.Err()
}

// Acknowledge idempotently flips an alert's acknowledged flag to true.
func (r *AlertRepository) Acknowledge(alertID string) error {
	_, err := r.db.Exec("UPDATE alerts SET acknowledged = 1 WHERE id = ?", alertID)
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}
	return nil
}
