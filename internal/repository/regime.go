package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// RegimeRepository persists the daily MarketRegimeAlert snapshot and
// per-symbol DistributionDay occurrences that back the D-Day rolling
// window in internal/regime.
type RegimeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRegimeRepository creates a new regime repository.
func NewRegimeRepository(db *sql.DB, log zerolog.Logger) *RegimeRepository {
	return &RegimeRepository{
		db:  db,
		log: log.With().Str("repository", "regime").Logger(),
	}
}

const dateLayout = "2006-01-02"

// Upsert writes (or replaces) a MarketRegimeAlert, keyed by date. Matches
// internal/regime.AlertStore so the historical seeder can use a
// RegimeRepository directly.
func (r *RegimeRepository) Upsert(ctx context.Context, alert domain.MarketRegimeAlert) error {
	m := &alert
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO market_regime_alerts (
			date, composite_score, entry_risk_score, regime,
			spy_d_count, qqq_d_count, spy_5day_delta, qqq_5day_delta, d_day_trend, market_phase,
			rally_day, has_confirmed_ftd, es_change_pct, nq_change_pct, ym_change_pct,
			fear_greed_score, fear_greed_rating, vix_close
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			composite_score = excluded.composite_score,
			entry_risk_score = excluded.entry_risk_score,
			regime = excluded.regime,
			spy_d_count = excluded.spy_d_count,
			qqq_d_count = excluded.qqq_d_count,
			spy_5day_delta = excluded.spy_5day_delta,
			qqq_5day_delta = excluded.qqq_5day_delta,
			d_day_trend = excluded.d_day_trend,
			market_phase = excluded.market_phase,
			rally_day = excluded.rally_day,
			has_confirmed_ftd = excluded.has_confirmed_ftd,
			es_change_pct = excluded.es_change_pct,
			nq_change_pct = excluded.nq_change_pct,
			ym_change_pct = excluded.ym_change_pct,
			fear_greed_score = excluded.fear_greed_score,
			fear_greed_rating = excluded.fear_greed_rating,
			vix_close = excluded.vix_close
	`,
		m.Date.Format(dateLayout), m.CompositeScore, m.EntryRiskScore, string(m.Regime),
		m.SPYDCount, m.QQQDCount, m.SPY5DayDelta, m.QQQ5DayDelta, string(m.DDayTrend), string(m.MarketPhase),
		m.RallyDay, m.HasConfirmedFTD, m.ESChangePct, m.NQChangePct, m.YMChangePct,
		m.FearGreedScore, string(m.FearGreedRating), m.VIXClose,
	)
	if err != nil {
		return fmt.Errorf("upsert regime alert for %s: %w", m.Date.Format(dateLayout), err)
	}
	return nil
}

func regimeColumns() string {
	return `date, composite_score, entry_risk_score, regime,
		spy_d_count, qqq_d_count, spy_5day_delta, qqq_5day_delta, d_day_trend, market_phase,
		rally_day, has_confirmed_ftd, es_change_pct, nq_change_pct, ym_change_pct,
		fear_greed_score, fear_greed_rating, vix_close`
}

func scanRegime(row interface{ Scan(...any) error }) (*domain.MarketRegimeAlert, error) {
	var m domain.MarketRegimeAlert
	var date, regime, ddayTrend, marketPhase, fgRating string

	err := row.Scan(
		&date, &m.CompositeScore, &m.EntryRiskScore, &regime,
		&m.SPYDCount, &m.QQQDCount, &m.SPY5DayDelta, &m.QQQ5DayDelta, &ddayTrend, &marketPhase,
		&m.RallyDay, &m.HasConfirmedFTD, &m.ESChangePct, &m.NQChangePct, &m.YMChangePct,
		&m.FearGreedScore, &fgRating, &m.VIXClose,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse regime date %q: %w", date, err)
	}
	m.Date = t
	m.Regime = domain.Regime(regime)
	m.DDayTrend = domain.DDayTrend(ddayTrend)
	m.MarketPhase = domain.MarketPhase(marketPhase)
	m.FearGreedRating = domain.FearGreedRating(fgRating)
	return &m, nil
}

// GetCurrent returns today's MarketRegimeAlert, or (nil, nil) if none has
// been written yet.
func (r *RegimeRepository) GetCurrent() (*domain.MarketRegimeAlert, error) {
	m, found, err := r.GetByDate(context.Background(), time.Now())
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

// GetByDate returns the MarketRegimeAlert for a specific date. Matches
// internal/regime.AlertStore's lookup signature; found is false when no
// row exists for that date (not an error).
func (r *RegimeRepository) GetByDate(ctx context.Context, date time.Time) (domain.MarketRegimeAlert, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+regimeColumns()+" FROM market_regime_alerts WHERE date = ?", date.Format(dateLayout))
	m, err := scanRegime(row)
	if err == sql.ErrNoRows {
		return domain.MarketRegimeAlert{}, false, nil
	}
	if err != nil {
		return domain.MarketRegimeAlert{}, false, fmt.Errorf("get regime alert for %s: %w", date.Format(dateLayout), err)
	}
	return *m, true, nil
}

// GetRange returns MarketRegimeAlerts between from and to (inclusive),
// ordered by date ascending, used by the historical seeder's
// skip-existing check and by analytics.
func (r *RegimeRepository) GetRange(from, to time.Time) ([]*domain.MarketRegimeAlert, error) {
	rows, err := r.db.Query(
		"SELECT "+regimeColumns()+" FROM market_regime_alerts WHERE date >= ? AND date <= ? ORDER BY date",
		from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("get regime range: %w", err)
	}
	defer rows.Close()

	var out []*domain.MarketRegimeAlert
	for rows.Next() {
		m, err := scanRegime(rows)
		if err != nil {
			return nil, fmt.Errorf("scan regime row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateDistributionDay inserts a new qualifying distribution day for
// (symbol, date).
func (r *RegimeRepository) CreateDistributionDay(d *domain.DistributionDay) error {
	_, err := r.db.Exec(`
		INSERT INTO distribution_days (symbol, date, pct_change, volume_ratio, trigger_close, expired)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			pct_change = excluded.pct_change,
			volume_ratio = excluded.volume_ratio,
			trigger_close = excluded.trigger_close,
			expired = excluded.expired
	`, d.Symbol, d.Date.Format(dateLayout), d.PctChange, d.VolumeRatio, d.TriggerClose, d.Expired)
	if err != nil {
		return fmt.Errorf("create distribution day %s/%s: %w", d.Symbol, d.Date.Format(dateLayout), err)
	}
	return nil
}

// GetActiveDistributionDays returns non-expired distribution days for a
// symbol within the rolling window (caller passes the cutoff date),
// ordered oldest-first.
func (r *RegimeRepository) GetActiveDistributionDays(symbol string, since time.Time) ([]*domain.DistributionDay, error) {
	rows, err := r.db.Query(`
		SELECT symbol, date, pct_change, volume_ratio, trigger_close, expired
		FROM distribution_days
		WHERE symbol = ? AND date >= ? AND expired = 0
		ORDER BY date
	`, symbol, since.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get active distribution days for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []*domain.DistributionDay
	for rows.Next() {
		var d domain.DistributionDay
		var date string
		if err := rows.Scan(&d.Symbol, &date, &d.PctChange, &d.VolumeRatio, &d.TriggerClose, &d.Expired); err != nil {
			return nil, fmt.Errorf("scan distribution day: %w", err)
		}
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse distribution day date %q: %w", date, err)
		}
		d.Date = t
		out = append(out, &d)
	}
	return out, rows.Err()
}

// ExpireDistributionDay marks a single (symbol, date) distribution day as
// expired, e.g. once price advances 5% above its trigger_close.
func (r *RegimeRepository) ExpireDistributionDay(symbol string, date time.Time) error {
	_, err := r.db.Exec(
		"UPDATE distribution_days SET expired = 1 WHERE symbol = ? AND date = ?",
		symbol, date.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("expire distribution day %s/%s: %w", symbol, date.Format(dateLayout), err)
	}
	return nil
}
