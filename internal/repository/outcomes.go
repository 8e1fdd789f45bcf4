package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// OutcomeRepository persists closed-position Outcome records consumed by
// the offline learning subsystem (reads outcomes, writes learned_weights
// — both outside this module's scope beyond persistence).
type OutcomeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOutcomeRepository creates a new outcome repository.
func NewOutcomeRepository(db *sql.DB, log zerolog.Logger) *OutcomeRepository {
	return &OutcomeRepository{
		db:  db,
		log: log.With().Str("repository", "outcomes").Logger(),
	}
}

// Create persists a closed-position outcome.
func (r *OutcomeRepository) Create(o *domain.Outcome) error {
	_, err := r.db.Exec(`
		INSERT INTO outcomes (
			id, position_id, symbol, entry_date, exit_date,
			rs_rating_at_entry, eps_rating_at_entry, grade_at_entry, score_at_entry,
			gross_pct, holding_days, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.PositionID, o.Symbol, o.EntryDate.Format(dateLayout), o.ExitDate.Format(dateLayout),
		o.RSRatingAtEntry, o.EPSRatingAtEntry, o.GradeAtEntry, o.ScoreAtEntry,
		o.GrossPct, o.HoldingDays, string(o.Outcome),
	)
	if err != nil {
		return fmt.Errorf("create outcome for %s: %w", o.Symbol, err)
	}
	return nil
}

func scanOutcome(row interface{ Scan(...any) error }) (*domain.Outcome, error) {
	var o domain.Outcome
	var entryDate, exitDate, outcome string

	err := row.Scan(
		&o.ID, &o.PositionID, &o.Symbol, &entryDate, &exitDate,
		&o.RSRatingAtEntry, &o.EPSRatingAtEntry, &o.GradeAtEntry, &o.ScoreAtEntry,
		&o.GrossPct, &o.HoldingDays, &outcome,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(dateLayout, entryDate); err == nil {
		o.EntryDate = t
	}
	if t, err := time.Parse(dateLayout, exitDate); err == nil {
		o.ExitDate = t
	}
	o.Outcome = domain.OutcomeKind(outcome)
	return &o, nil
}

// GetBySymbol returns every recorded outcome for a symbol, oldest first.
func (r *OutcomeRepository) GetBySymbol(symbol string) ([]*domain.Outcome, error) {
	rows, err := r.db.Query(`
		SELECT id, position_id, symbol, entry_date, exit_date,
			rs_rating_at_entry, eps_rating_at_entry, grade_at_entry, score_at_entry,
			gross_pct, holding_days, outcome
		FROM outcomes WHERE symbol = ? ORDER BY exit_date
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("get outcomes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []*domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetAll returns every outcome ordered by exit date, used by the offline
// learning subsystem to derive learned_weights.
func (r *OutcomeRepository) GetAll() ([]*domain.Outcome, error) {
	rows, err := r.db.Query(`
		SELECT id, position_id, symbol, entry_date, exit_date,
			rs_rating_at_entry, eps_rating_at_entry, grade_at_entry, score_at_entry,
			gross_pct, holding_days, outcome
		FROM outcomes ORDER BY exit_date
	`)
	if err != nil {
		return nil, fmt.Errorf("get all outcomes: %w", err)
	}
	defer rows.Close()

	var out []*domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
