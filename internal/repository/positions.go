package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/events"
	"github.com/rs/zerolog"
)

// trackedFields lists the Position columns whose mutations are captured
// into position_history, mirroring the entity's TRACKED_FIELDS set.
var trackedFields = map[string]bool{
	"state": true, "e1_shares": true, "e1_price": true, "e1_date": true,
	"e2_shares": true, "e2_price": true, "e2_date": true,
	"e3_shares": true, "e3_price": true, "e3_date": true,
	"tp1_sold": true, "tp1_price": true, "tp1_date": true,
	"tp2_sold": true, "tp2_price": true, "tp2_date": true,
	"total_shares": true, "avg_cost": true, "current_pnl_pct": true,
	"stop_price": true, "tp1_target": true, "tp2_target": true,
	"hard_stop_pct": true, "tp1_pct": true, "tp2_pct": true,
	"pattern": true, "base_stage": true, "base_depth": true, "base_length": true,
	"pivot": true, "pivot_set_date": true, "original_pivot": true,
	"rs_rating": true, "eps_rating": true, "comp_rating": true, "ad_rating": true,
	"industry_rank": true, "fund_count": true,
	"entry_grade": true, "entry_score": true,
	"running_high": true,
	"exit_date": true, "exit_price": true, "exit_reason": true,
}

// PositionRepository persists Position aggregates and enforces the three
// repository invariants: change capture, recalc discipline, and
// transition gating (spec.md §4.3).
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
	bus *events.Bus
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repository", "positions").Logger(),
	}
}

// SetEventBus wires an events.Bus for PositionTransitioned notifications.
// Optional: a repository with no bus set simply skips publishing.
func (r *PositionRepository) SetEventBus(bus *events.Bus) {
	r.bus = bus
}

// Create inserts a new position. When pivot is set and pivot_set_date is
// zero, pivot_set_date is auto-stamped to now.
func (r *PositionRepository) Create(p *domain.Position) error {
	now := time.Now()
	if p.Pivot != 0 && p.PivotSetDate.IsZero() {
		p.PivotSetDate = now
	}
	if p.HardStopPct == 0 {
		p.HardStopPct = domain.DefaultHardStopPct
	}
	if p.TP1Pct == 0 {
		p.TP1Pct = domain.DefaultTP1Pct
	}
	if p.TP2Pct == 0 {
		p.TP2Pct = domain.DefaultTP2Pct
	}

	_, err := r.db.Exec(`
		INSERT INTO positions (
			id, symbol, portfolio, state,
			e1_shares, e1_price, e1_date, e2_shares, e2_price, e2_date, e3_shares, e3_price, e3_date,
			tp1_sold, tp1_price, tp1_date, tp2_sold, tp2_price, tp2_date,
			total_shares, avg_cost, current_pnl_pct,
			stop_price, stop_price_set_by_user, tp1_target, tp1_target_set_by_user, tp2_target, tp2_target_set_by_user,
			hard_stop_pct, tp1_pct, tp2_pct,
			pattern, base_stage, base_depth, base_length, pivot, pivot_set_date, original_pivot,
			rs_rating, eps_rating, comp_rating, ad_rating, industry_rank, fund_count,
			entry_grade, entry_score,
			last_price, last_price_time, running_high, avg_volume_50d, earnings_date,
			needs_sheet_sync, watching_exited_since, ma_test_count,
			exit_date, exit_price, exit_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Symbol, p.Portfolio, float64(p.State),
		p.E1.Shares, p.E1.Price, nullTime(p.E1.Date), p.E2.Shares, p.E2.Price, nullTime(p.E2.Date), p.E3.Shares, p.E3.Price, nullTime(p.E3.Date),
		p.TP1.Sold, p.TP1.Price, nullTime(p.TP1.Date), p.TP2.Sold, p.TP2.Price, nullTime(p.TP2.Date),
		p.TotalShares, p.AvgCost, p.CurrentPnLPct,
		p.StopPrice, p.StopPriceSetByUser, p.TP1Target, p.TP1TargetSetByUser, p.TP2Target, p.TP2TargetSetByUser,
		p.HardStopPct, p.TP1Pct, p.TP2Pct,
		p.Pattern, p.BaseStage, p.BaseDepthPct, p.BaseLengthWeek, p.Pivot, nullTime(p.PivotSetDate), p.OriginalPivot,
		p.RSRating, p.EPSRating, p.CompRating, p.ADRating, p.IndustryRank, p.FundCount,
		p.EntryGrade, p.EntryScore,
		p.LastPrice, nullTime(p.LastPriceTime), p.RunningHigh, p.AvgVolume50D, nullTime(p.EarningsDate),
		p.NeedsSheetSync, nullTime(p.WatchingExitedSince), p.MATestCount,
		nullTime(p.ExitDate), p.ExitPrice, p.ExitReason,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create position %s: %w", p.Symbol, err)
	}
	return nil
}

// CreateWatchlistItem creates a position in state WATCHING (0) with the
// given pivot and pattern.
func (r *PositionRepository) CreateWatchlistItem(p *domain.Position) error {
	p.State = domain.StateWatching
	return r.Create(p)
}

func positionColumns() string {
	return `id, symbol, portfolio, state,
		e1_shares, e1_price, e1_date, e2_shares, e2_price, e2_date, e3_shares, e3_price, e3_date,
		tp1_sold, tp1_price, tp1_date, tp2_sold, tp2_price, tp2_date,
		total_shares, avg_cost, current_pnl_pct,
		stop_price, stop_price_set_by_user, tp1_target, tp1_target_set_by_user, tp2_target, tp2_target_set_by_user,
		hard_stop_pct, tp1_pct, tp2_pct,
		pattern, base_stage, base_depth, base_length, pivot, pivot_set_date, original_pivot,
		rs_rating, eps_rating, comp_rating, ad_rating, industry_rank, fund_count,
		entry_grade, entry_score,
		last_price, last_price_time, running_high, avg_volume_50d, earnings_date,
		needs_sheet_sync, watching_exited_since, ma_test_count,
		exit_date, exit_price, exit_reason`
}

func scanPosition(row interface{ Scan(...any) error }) (*domain.Position, error) {
	var p domain.Position
	var state float64
	var e1Date, e2Date, e3Date, tp1Date, tp2Date, pivotSetDate, lastPriceTime, earningsDate, watchingExitedSince, exitDate sql.NullString

	err := row.Scan(
		&p.ID, &p.Symbol, &p.Portfolio, &state,
		&p.E1.Shares, &p.E1.Price, &e1Date, &p.E2.Shares, &p.E2.Price, &e2Date, &p.E3.Shares, &p.E3.Price, &e3Date,
		&p.TP1.Sold, &p.TP1.Price, &tp1Date, &p.TP2.Sold, &p.TP2.Price, &tp2Date,
		&p.TotalShares, &p.AvgCost, &p.CurrentPnLPct,
		&p.StopPrice, &p.StopPriceSetByUser, &p.TP1Target, &p.TP1TargetSetByUser, &p.TP2Target, &p.TP2TargetSetByUser,
		&p.HardStopPct, &p.TP1Pct, &p.TP2Pct,
		&p.Pattern, &p.BaseStage, &p.BaseDepthPct, &p.BaseLengthWeek, &p.Pivot, &pivotSetDate, &p.OriginalPivot,
		&p.RSRating, &p.EPSRating, &p.CompRating, &p.ADRating, &p.IndustryRank, &p.FundCount,
		&p.EntryGrade, &p.EntryScore,
		&p.LastPrice, &lastPriceTime, &p.RunningHigh, &p.AvgVolume50D, &earningsDate,
		&p.NeedsSheetSync, &watchingExitedSince, &p.MATestCount,
		&exitDate, &p.ExitPrice, &p.ExitReason,
	)
	if err != nil {
		return nil, err
	}

	p.State = domain.State(state)
	p.E1.Date = parseTime(e1Date)
	p.E2.Date = parseTime(e2Date)
	p.E3.Date = parseTime(e3Date)
	p.TP1.Date = parseTime(tp1Date)
	p.TP2.Date = parseTime(tp2Date)
	p.PivotSetDate = parseTime(pivotSetDate)
	p.LastPriceTime = parseTime(lastPriceTime)
	p.EarningsDate = parseTime(earningsDate)
	p.WatchingExitedSince = parseTime(watchingExitedSince)
	p.ExitDate = parseTime(exitDate)

	return &p, nil
}

// GetByID fetches a position by its stable identity. Returns
// (nil, nil) when not found.
func (r *PositionRepository) GetByID(id string) (*domain.Position, error) {
	row := r.db.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

// GetBySymbol fetches a position by ticker, optionally scoped to a
// portfolio. Returns (nil, nil) when not found.
func (r *PositionRepository) GetBySymbol(symbol, portfolio string) (*domain.Position, error) {
	query := "SELECT " + positionColumns() + " FROM positions WHERE symbol = ?"
	args := []any{strings.ToUpper(symbol)}
	if portfolio != "" {
		query += " AND portfolio = ?"
		args = append(args, portfolio)
	}
	query += " LIMIT 1"

	row := r.db.QueryRow(query, args...)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position by symbol %s: %w", symbol, err)
	}
	return p, nil
}

// GetAll returns every position ordered by symbol, excluding closed
// states (state < 0) unless includeClosed is set.
func (r *PositionRepository) GetAll(includeClosed bool) ([]*domain.Position, error) {
	query := "SELECT " + positionColumns() + " FROM positions"
	if !includeClosed {
		query += " WHERE state >= 0"
	}
	query += " ORDER BY symbol"
	return r.queryPositions(query)
}

// GetByState returns all positions in the given state, ordered by symbol.
func (r *PositionRepository) GetByState(state domain.State) ([]*domain.Position, error) {
	return r.queryPositions("SELECT "+positionColumns()+" FROM positions WHERE state = ? ORDER BY symbol", float64(state))
}

// GetWatching returns all watchlist positions (state 0).
func (r *PositionRepository) GetWatching() ([]*domain.Position, error) {
	return r.GetByState(domain.StateWatching)
}

// GetInPosition returns all active positions (state >= 1).
func (r *PositionRepository) GetInPosition() ([]*domain.Position, error) {
	return r.queryPositions("SELECT " + positionColumns() + " FROM positions WHERE state >= 1 ORDER BY symbol")
}

// GetWatchingExited returns all re-entry-watch positions (state -1.5).
func (r *PositionRepository) GetWatchingExited() ([]*domain.Position, error) {
	return r.GetByState(domain.StateWatchingExited)
}

func (r *PositionRepository) queryPositions(query string, args ...any) ([]*domain.Position, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// fieldChange is a single tracked-field mutation captured for the
// position_history audit log.
type fieldChange struct {
	field    string
	oldValue any
	newValue any
}

func recordChanges(tx *sql.Tx, positionID string, changes []fieldChange, source string) error {
	if len(changes) == 0 {
		return nil
	}
	changedAt := time.Now().Format(time.RFC3339Nano)
	stmt, err := tx.Prepare(`
		INSERT INTO position_history (position_id, field_name, changed_at, old_value, new_value, change_source)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range changes {
		oldStr := valueToString(c.oldValue)
		newStr := valueToString(c.newValue)
		if strPtrEqual(oldStr, newStr) {
			continue
		}
		if _, err := stmt.Exec(positionID, c.field, changedAt, oldStr, newStr, source); err != nil {
			return fmt.Errorf("record change %s: %w", c.field, err)
		}
	}
	return nil
}

// strPtrEqual compares two optional strings by value, treating nil as
// distinct from the empty string.
func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func valueToString(v any) *string {
	if v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case bool:
		if val {
			s = "true"
		} else {
			s = "false"
		}
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case time.Time:
		if val.IsZero() {
			return nil
		}
		s = val.Format(time.RFC3339)
	case string:
		s = val
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpdateOpts describes a field-level update to a position, mirroring the
// kwargs-style partial update of the system this replaces. Only non-nil
// pointer fields are applied.
type UpdateOpts struct {
	Pivot                        *float64
	StopPrice, TP1Target, TP2Target *float64
	HardStopPct, TP1Pct, TP2Pct  *float64
	Pattern, BaseStage           *string
	BaseDepthPct                 *float64
	BaseLengthWeek               *int
	RSRating, EPSRating, CompRating, IndustryRank, FundCount *int
	ADRating                     *string
	EntryGrade                   *string
	EntryScore                   *float64
	E1Shares, E1Price            *float64
	E2Shares, E2Price            *float64
	E3Shares, E3Price            *float64
	TP1Sold, TP1Price            *float64
	TP2Sold, TP2Price            *float64
	ChangeSource                 string
}

// Update applies a partial field update, capturing history for every
// tracked field that actually changes (invariant 1: change capture), and
// recomputing total_shares/avg_cost/current_pnl_pct/default targets when
// any entry- or sell-related field is present (invariant 2: recalc
// discipline). Explicitly-supplied StopPrice/TP1Target/TP2Target mark
// their *SetByUser flag and are never overwritten by the recompute that
// follows in this same call.
func (r *PositionRepository) Update(id string, opts UpdateOpts) (*domain.Position, error) {
	source := opts.ChangeSource
	if source == "" {
		source = "manual_edit"
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("update: load position %s: %w", id, err)
	}

	before := *p
	var changes []fieldChange

	needsRecalc := opts.E1Shares != nil || opts.E1Price != nil ||
		opts.E2Shares != nil || opts.E2Price != nil ||
		opts.E3Shares != nil || opts.E3Price != nil ||
		opts.TP1Sold != nil || opts.TP2Sold != nil

	if opts.E1Shares != nil {
		p.E1.Shares = *opts.E1Shares
	}
	if opts.E1Price != nil {
		p.E1.Price = *opts.E1Price
	}
	if opts.E2Shares != nil {
		p.E2.Shares = *opts.E2Shares
	}
	if opts.E2Price != nil {
		p.E2.Price = *opts.E2Price
	}
	if opts.E3Shares != nil {
		p.E3.Shares = *opts.E3Shares
	}
	if opts.E3Price != nil {
		p.E3.Price = *opts.E3Price
	}
	if opts.TP1Sold != nil {
		p.TP1.Sold = *opts.TP1Sold
	}
	if opts.TP1Price != nil {
		p.TP1.Price = *opts.TP1Price
	}
	if opts.TP2Sold != nil {
		p.TP2.Sold = *opts.TP2Sold
	}
	if opts.TP2Price != nil {
		p.TP2.Price = *opts.TP2Price
	}

	if opts.Pivot != nil && *opts.Pivot != p.Pivot {
		p.SetPivot(*opts.Pivot, time.Now())
	}
	if opts.Pattern != nil {
		p.Pattern = *opts.Pattern
	}
	if opts.BaseStage != nil {
		p.BaseStage = *opts.BaseStage
	}
	if opts.BaseDepthPct != nil {
		p.BaseDepthPct = *opts.BaseDepthPct
	}
	if opts.BaseLengthWeek != nil {
		p.BaseLengthWeek = *opts.BaseLengthWeek
	}
	if opts.RSRating != nil {
		p.RSRating = *opts.RSRating
	}
	if opts.EPSRating != nil {
		p.EPSRating = *opts.EPSRating
	}
	if opts.CompRating != nil {
		p.CompRating = *opts.CompRating
	}
	if opts.IndustryRank != nil {
		p.IndustryRank = *opts.IndustryRank
	}
	if opts.FundCount != nil {
		p.FundCount = *opts.FundCount
	}
	if opts.ADRating != nil {
		p.ADRating = *opts.ADRating
	}
	if opts.EntryGrade != nil {
		p.EntryGrade = *opts.EntryGrade
	}
	if opts.EntryScore != nil {
		p.EntryScore = *opts.EntryScore
	}
	if opts.HardStopPct != nil {
		p.HardStopPct = *opts.HardStopPct
	}
	if opts.TP1Pct != nil {
		p.TP1Pct = *opts.TP1Pct
	}
	if opts.TP2Pct != nil {
		p.TP2Pct = *opts.TP2Pct
	}

	// Sticky-override: an explicit value in this call both sets the
	// target and marks it as user-owned, so future recomputes skip it.
	if opts.StopPrice != nil {
		p.StopPrice = *opts.StopPrice
		p.StopPriceSetByUser = true
	}
	if opts.TP1Target != nil {
		p.TP1Target = *opts.TP1Target
		p.TP1TargetSetByUser = true
	}
	if opts.TP2Target != nil {
		p.TP2Target = *opts.TP2Target
		p.TP2TargetSetByUser = true
	}

	if needsRecalc {
		p.Recompute()
		p.RecomputeTargets()
		if p.AvgCost > 0 && p.LastPrice > 0 {
			p.UpdatePnL(p.LastPrice)
		}
	}

	for field := range trackedFields {
		oldVal, newVal := fieldValues(&before, p, field)
		changes = append(changes, fieldChange{field: field, oldValue: oldVal, newValue: newVal})
	}

	if err := recordChanges(tx, id, changes, source); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return p, nil
}

// fieldValues returns the before/after values of a tracked field by
// name, used to build history rows generically.
func fieldValues(before, after *domain.Position, field string) (old, new any) {
	switch field {
	case "state":
		return float64(before.State), float64(after.State)
	case "e1_shares":
		return before.E1.Shares, after.E1.Shares
	case "e1_price":
		return before.E1.Price, after.E1.Price
	case "e1_date":
		return before.E1.Date, after.E1.Date
	case "e2_shares":
		return before.E2.Shares, after.E2.Shares
	case "e2_price":
		return before.E2.Price, after.E2.Price
	case "e2_date":
		return before.E2.Date, after.E2.Date
	case "e3_shares":
		return before.E3.Shares, after.E3.Shares
	case "e3_price":
		return before.E3.Price, after.E3.Price
	case "e3_date":
		return before.E3.Date, after.E3.Date
	case "tp1_sold":
		return before.TP1.Sold, after.TP1.Sold
	case "tp1_price":
		return before.TP1.Price, after.TP1.Price
	case "tp1_date":
		return before.TP1.Date, after.TP1.Date
	case "tp2_sold":
		return before.TP2.Sold, after.TP2.Sold
	case "tp2_price":
		return before.TP2.Price, after.TP2.Price
	case "tp2_date":
		return before.TP2.Date, after.TP2.Date
	case "total_shares":
		return before.TotalShares, after.TotalShares
	case "avg_cost":
		return before.AvgCost, after.AvgCost
	case "current_pnl_pct":
		return before.CurrentPnLPct, after.CurrentPnLPct
	case "stop_price":
		return before.StopPrice, after.StopPrice
	case "tp1_target":
		return before.TP1Target, after.TP1Target
	case "tp2_target":
		return before.TP2Target, after.TP2Target
	case "hard_stop_pct":
		return before.HardStopPct, after.HardStopPct
	case "tp1_pct":
		return before.TP1Pct, after.TP1Pct
	case "tp2_pct":
		return before.TP2Pct, after.TP2Pct
	case "pattern":
		return before.Pattern, after.Pattern
	case "base_stage":
		return before.BaseStage, after.BaseStage
	case "base_depth":
		return before.BaseDepthPct, after.BaseDepthPct
	case "base_length":
		return before.BaseLengthWeek, after.BaseLengthWeek
	case "pivot":
		return before.Pivot, after.Pivot
	case "pivot_set_date":
		return before.PivotSetDate, after.PivotSetDate
	case "original_pivot":
		return before.OriginalPivot, after.OriginalPivot
	case "rs_rating":
		return before.RSRating, after.RSRating
	case "eps_rating":
		return before.EPSRating, after.EPSRating
	case "comp_rating":
		return before.CompRating, after.CompRating
	case "ad_rating":
		return before.ADRating, after.ADRating
	case "industry_rank":
		return before.IndustryRank, after.IndustryRank
	case "fund_count":
		return before.FundCount, after.FundCount
	case "entry_grade":
		return before.EntryGrade, after.EntryGrade
	case "entry_score":
		return before.EntryScore, after.EntryScore
	case "running_high":
		return before.RunningHigh, after.RunningHigh
	case "exit_date":
		return before.ExitDate, after.ExitDate
	case "exit_price":
		return before.ExitPrice, after.ExitPrice
	case "exit_reason":
		return before.ExitReason, after.ExitReason
	default:
		return nil, nil
	}
}

func (r *PositionRepository) persist(tx *sql.Tx, p *domain.Position) error {
	_, err := tx.Exec(`
		UPDATE positions SET
			symbol = ?, portfolio = ?, state = ?,
			e1_shares = ?, e1_price = ?, e1_date = ?, e2_shares = ?, e2_price = ?, e2_date = ?, e3_shares = ?, e3_price = ?, e3_date = ?,
			tp1_sold = ?, tp1_price = ?, tp1_date = ?, tp2_sold = ?, tp2_price = ?, tp2_date = ?,
			total_shares = ?, avg_cost = ?, current_pnl_pct = ?,
			stop_price = ?, stop_price_set_by_user = ?, tp1_target = ?, tp1_target_set_by_user = ?, tp2_target = ?, tp2_target_set_by_user = ?,
			hard_stop_pct = ?, tp1_pct = ?, tp2_pct = ?,
			pattern = ?, base_stage = ?, base_depth = ?, base_length = ?, pivot = ?, pivot_set_date = ?, original_pivot = ?,
			rs_rating = ?, eps_rating = ?, comp_rating = ?, ad_rating = ?, industry_rank = ?, fund_count = ?,
			entry_grade = ?, entry_score = ?,
			last_price = ?, last_price_time = ?, running_high = ?, avg_volume_50d = ?, earnings_date = ?,
			needs_sheet_sync = ?, watching_exited_since = ?, ma_test_count = ?,
			exit_date = ?, exit_price = ?, exit_reason = ?,
			updated_at = ?
		WHERE id = ?
	`,
		p.Symbol, p.Portfolio, float64(p.State),
		p.E1.Shares, p.E1.Price, nullTime(p.E1.Date), p.E2.Shares, p.E2.Price, nullTime(p.E2.Date), p.E3.Shares, p.E3.Price, nullTime(p.E3.Date),
		p.TP1.Sold, p.TP1.Price, nullTime(p.TP1.Date), p.TP2.Sold, p.TP2.Price, nullTime(p.TP2.Date),
		p.TotalShares, p.AvgCost, p.CurrentPnLPct,
		p.StopPrice, p.StopPriceSetByUser, p.TP1Target, p.TP1TargetSetByUser, p.TP2Target, p.TP2TargetSetByUser,
		p.HardStopPct, p.TP1Pct, p.TP2Pct,
		p.Pattern, p.BaseStage, p.BaseDepthPct, p.BaseLengthWeek, p.Pivot, nullTime(p.PivotSetDate), p.OriginalPivot,
		p.RSRating, p.EPSRating, p.CompRating, p.ADRating, p.IndustryRank, p.FundCount,
		p.EntryGrade, p.EntryScore,
		p.LastPrice, nullTime(p.LastPriceTime), p.RunningHigh, p.AvgVolume50D, nullTime(p.EarningsDate),
		p.NeedsSheetSync, nullTime(p.WatchingExitedSince), p.MATestCount,
		nullTime(p.ExitDate), p.ExitPrice, p.ExitReason,
		time.Now().Format(time.RFC3339),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("persist position %s: %w", p.ID, err)
	}
	return nil
}

// LogEntry records an entry tranche fill (1, 2 or 3), recomputes totals
// and targets, and advances state 0->1, 1->2, 2->3 as applicable.
func (r *PositionRepository) LogEntry(id string, tranche domain.Tranche, shares, price float64, at time.Time) (*domain.Position, error) {
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin log entry tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("log entry: load position %s: %w", id, err)
	}
	before := *p

	p.SetEntryTranche(tranche, shares, price, at)
	p.Recompute()
	p.RecomputeTargets()

	var newState = p.State
	switch {
	case tranche == domain.Tranche1 && p.State == domain.StateWatching:
		newState = domain.StateInitial
	case tranche == domain.Tranche2 && p.State == domain.StateInitial:
		newState = domain.StatePyramid1
	case tranche == domain.Tranche3 && p.State == domain.StatePyramid1:
		newState = domain.StateFull
	}
	p.State = newState
	p.NeedsSheetSync = true

	var changes []fieldChange
	for _, f := range []string{"state", "e1_shares", "e1_price", "e1_date", "e2_shares", "e2_price", "e2_date",
		"e3_shares", "e3_price", "e3_date", "total_shares", "avg_cost", "current_pnl_pct",
		"stop_price", "tp1_target", "tp2_target"} {
		oldVal, newVal := fieldValues(&before, p, f)
		changes = append(changes, fieldChange{field: f, oldValue: oldVal, newValue: newVal})
	}
	if err := recordChanges(tx, id, changes, "system_calc"); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit log entry: %w", err)
	}
	return p, nil
}

// UpdatePrice refreshes last_price/last_price_time and recomputes
// current_pnl_pct against avg_cost. Price updates are not tracked-field
// history events per se, but current_pnl_pct is, under the 'price_update'
// change source.
func (r *PositionRepository) UpdatePrice(id string, price float64, at time.Time) (*domain.Position, error) {
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin update price tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("update price: load position %s: %w", id, err)
	}
	oldPnL := p.CurrentPnLPct
	oldHigh := p.RunningHigh

	p.UpdatePnL(price)
	p.LastPriceTime = at

	var changes []fieldChange
	if oldPnL != p.CurrentPnLPct {
		changes = append(changes, fieldChange{field: "current_pnl_pct", oldValue: oldPnL, newValue: p.CurrentPnLPct})
	}
	if oldHigh != p.RunningHigh {
		changes = append(changes, fieldChange{field: "running_high", oldValue: oldHigh, newValue: p.RunningHigh})
	}
	if len(changes) > 0 {
		if err := recordChanges(tx, id, changes, "price_update"); err != nil {
			return nil, err
		}
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update price: %w", err)
	}
	return p, nil
}

// TransitionState validates from -> to against domain.ValidateTransition,
// requires the transition's mandatory fields be present in fields, then
// applies state plus any co-updated fields and records a single
// 'state_transition' history batch (invariant 3: transition gating).
func (r *PositionRepository) TransitionState(id string, to domain.State, fields map[string]any) (*domain.Position, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("transition: load position %s: %w", id, err)
	}

	required, err := domain.ValidateTransition(p.State, to)
	if err != nil {
		return nil, err
	}
	if err := domain.RequireFields(required, fields); err != nil {
		return nil, err
	}

	before := *p
	p.State = to

	applyTransitionFields(p, fields)

	var changes []fieldChange
	changes = append(changes, fieldChange{field: "state", oldValue: float64(before.State), newValue: float64(p.State)})
	for f := range fields {
		if !trackedFields[f] {
			continue
		}
		oldVal, newVal := fieldValues(&before, p, f)
		changes = append(changes, fieldChange{field: f, oldValue: oldVal, newValue: newVal})
	}

	p.NeedsSheetSync = true
	if err := recordChanges(tx, id, changes, "state_transition"); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	if r.bus != nil {
		r.bus.Emit(events.PositionTransitioned, "positions", transitionEvent{
			PositionID: p.ID, Symbol: p.Symbol, From: before.State, To: p.State,
		})
	}
	return p, nil
}

// transitionEvent is the PositionTransitioned payload: enough to identify
// the position and the state change without shipping the whole row.
type transitionEvent struct {
	PositionID string
	Symbol     string
	From, To   domain.State
}

// applyTransitionFields writes the caller-supplied field map onto p for
// the fields a transition commonly carries. Unknown keys are ignored.
func applyTransitionFields(p *domain.Position, fields map[string]any) {
	asFloat := func(v any) (float64, bool) {
		f, ok := v.(float64)
		return f, ok
	}
	asTime := func(v any) (time.Time, bool) {
		t, ok := v.(time.Time)
		return t, ok
	}
	asString := func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	}

	if v, ok := fields["e1_shares"]; ok {
		if f, ok := asFloat(v); ok {
			p.E1.Shares = f
		}
	}
	if v, ok := fields["e1_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.E1.Price = f
		}
	}
	if v, ok := fields["e2_shares"]; ok {
		if f, ok := asFloat(v); ok {
			p.E2.Shares = f
		}
	}
	if v, ok := fields["e2_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.E2.Price = f
		}
	}
	if v, ok := fields["e3_shares"]; ok {
		if f, ok := asFloat(v); ok {
			p.E3.Shares = f
		}
	}
	if v, ok := fields["e3_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.E3.Price = f
		}
	}
	if v, ok := fields["tp1_sold"]; ok {
		if f, ok := asFloat(v); ok {
			p.TP1.Sold = f
		}
	}
	if v, ok := fields["tp1_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.TP1.Price = f
		}
	}
	if v, ok := fields["tp2_sold"]; ok {
		if f, ok := asFloat(v); ok {
			p.TP2.Sold = f
		}
	}
	if v, ok := fields["tp2_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.TP2.Price = f
		}
	}
	if v, ok := fields["stop_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.StopPrice = f
			p.StopPriceSetByUser = true
		}
	}
	if v, ok := fields["exit_date"]; ok {
		if t, ok := asTime(v); ok {
			p.ExitDate = t
		}
	}
	if v, ok := fields["exit_price"]; ok {
		if f, ok := asFloat(v); ok {
			p.ExitPrice = f
		}
	}
	if v, ok := fields["exit_reason"]; ok {
		if s, ok := asString(v); ok {
			p.ExitReason = s
		}
	}

	if p.E1.Shares > 0 || p.E2.Shares > 0 || p.E3.Shares > 0 || p.TP1.Sold > 0 || p.TP2.Sold > 0 {
		p.Recompute()
	}
}

// TransitionToWatchingExited moves a stopped-out or closed position to
// the -1.5 re-entry watch: preserves original_pivot, zeros active
// tranches, stamps watching_exited_since, resets ma_test_count.
func (r *PositionRepository) TransitionToWatchingExited(id string, exitPrice float64, reason string) (*domain.Position, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin watching-exited tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("watching-exited: load position %s: %w", id, err)
	}

	if _, err := domain.ValidateTransition(p.State, domain.StateWatchingExited); err != nil {
		return nil, err
	}

	before := *p
	now := time.Now()

	p.OriginalPivot = p.Pivot
	p.ExitDate = now
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.WatchingExitedSince = now
	p.MATestCount = 0
	p.TotalShares = 0
	p.SetEntryTranche(domain.Tranche1, 0, 0, time.Time{})
	p.SetEntryTranche(domain.Tranche2, 0, 0, time.Time{})
	p.SetEntryTranche(domain.Tranche3, 0, 0, time.Time{})
	p.StopPrice = 0
	p.StopPriceSetByUser = false
	p.State = domain.StateWatchingExited
	p.NeedsSheetSync = true

	changes := []fieldChange{
		{field: "state", oldValue: float64(before.State), newValue: float64(p.State)},
		{field: "original_pivot", oldValue: before.OriginalPivot, newValue: p.OriginalPivot},
		{field: "exit_date", oldValue: before.ExitDate, newValue: p.ExitDate},
		{field: "exit_price", oldValue: before.ExitPrice, newValue: p.ExitPrice},
		{field: "exit_reason", oldValue: before.ExitReason, newValue: p.ExitReason},
		{field: "total_shares", oldValue: before.TotalShares, newValue: p.TotalShares},
		{field: "stop_price", oldValue: before.StopPrice, newValue: p.StopPrice},
	}
	if err := recordChanges(tx, id, changes, "state_transition"); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit watching-exited: %w", err)
	}
	return p, nil
}

// ReturnToWatchlist moves a -1.5 position back to state 0 with a fresh
// pivot for a newly-formed base. Only legal from WatchingExited.
func (r *PositionRepository) ReturnToWatchlist(id string, newPivot float64) (*domain.Position, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin return-to-watchlist tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("return-to-watchlist: load position %s: %w", id, err)
	}

	if _, err := domain.ValidateTransition(p.State, domain.StateWatching); err != nil {
		return nil, err
	}

	before := *p
	now := time.Now()

	p.ExitDate = time.Time{}
	p.ExitPrice = 0
	p.ExitReason = ""
	p.WatchingExitedSince = time.Time{}
	p.MATestCount = 0
	p.State = domain.StateWatching
	p.SetPivot(newPivot, now)
	p.NeedsSheetSync = true

	changes := []fieldChange{
		{field: "state", oldValue: float64(before.State), newValue: float64(p.State)},
		{field: "pivot", oldValue: before.Pivot, newValue: p.Pivot},
		{field: "pivot_set_date", oldValue: before.PivotSetDate, newValue: p.PivotSetDate},
	}
	if err := recordChanges(tx, id, changes, "state_transition"); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return-to-watchlist: %w", err)
	}
	return p, nil
}

// ReenterFromWatchingExited re-enters a -1.5 position as a fresh Entry 1.
// original_pivot is preserved for reference; stop_price is the caller's
// explicit value (sticky) since recompute is skipped for it, mirroring
// the source system's skip_stop_price=True re-entry path.
func (r *PositionRepository) ReenterFromWatchingExited(id string, shares, price, stop float64, at time.Time) (*domain.Position, error) {
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin reenter tx: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPosition(tx.QueryRow("SELECT "+positionColumns()+" FROM positions WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("reenter: load position %s: %w", id, err)
	}

	if _, err := domain.ValidateTransition(p.State, domain.StateInitial); err != nil {
		return nil, err
	}

	before := *p

	p.SetEntryTranche(domain.Tranche1, shares, price, at)
	p.StopPrice = stop
	p.StopPriceSetByUser = true
	p.ExitDate = time.Time{}
	p.ExitPrice = 0
	p.ExitReason = ""
	p.WatchingExitedSince = time.Time{}

	p.Recompute()
	p.RecomputeTargets()

	p.State = domain.StateInitial
	p.NeedsSheetSync = true

	changes := []fieldChange{
		{field: "state", oldValue: float64(before.State), newValue: float64(p.State)},
		{field: "e1_shares", oldValue: before.E1.Shares, newValue: p.E1.Shares},
		{field: "e1_price", oldValue: before.E1.Price, newValue: p.E1.Price},
		{field: "e1_date", oldValue: before.E1.Date, newValue: p.E1.Date},
		{field: "stop_price", oldValue: before.StopPrice, newValue: p.StopPrice},
		{field: "total_shares", oldValue: before.TotalShares, newValue: p.TotalShares},
		{field: "avg_cost", oldValue: before.AvgCost, newValue: p.AvgCost},
	}
	if err := recordChanges(tx, id, changes, "state_transition"); err != nil {
		return nil, err
	}
	if err := r.persist(tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reenter: %w", err)
	}
	return p, nil
}

// ExpireWatchingExited archives every -1.5 position whose
// watching_exited_since predates the threshold into state -2
// (StoppedOut/archived). Returns the count moved.
func (r *PositionRepository) ExpireWatchingExited(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin expire tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT "+positionColumns()+" FROM positions WHERE state = ? AND watching_exited_since < ?",
		float64(domain.StateWatchingExited), cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("query expiring positions: %w", err)
	}
	var toExpire []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expiring position: %w", err)
		}
		toExpire = append(toExpire, p)
	}
	rows.Close()

	for _, p := range toExpire {
		oldState := p.State
		p.State = domain.StateStoppedOut
		p.NeedsSheetSync = true
		changes := []fieldChange{{field: "state", oldValue: float64(oldState), newValue: float64(p.State)}}
		if err := recordChanges(tx, p.ID, changes, "system_calc"); err != nil {
			return 0, err
		}
		if err := r.persist(tx, p); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expire: %w", err)
	}
	return len(toExpire), nil
}

// IncrementMATestCount bumps ma_test_count by one, used by MAChecker to
// track consecutive moving-average tests.
func (r *PositionRepository) IncrementMATestCount(id string) (int, error) {
	_, err := r.db.Exec("UPDATE positions SET ma_test_count = ma_test_count + 1, updated_at = ? WHERE id = ?",
		time.Now().Format(time.RFC3339), id)
	if err != nil {
		return 0, fmt.Errorf("increment ma_test_count for %s: %w", id, err)
	}
	var count int
	if err := r.db.QueryRow("SELECT ma_test_count FROM positions WHERE id = ?", id).Scan(&count); err != nil {
		return 0, fmt.Errorf("read ma_test_count for %s: %w", id, err)
	}
	return count, nil
}
