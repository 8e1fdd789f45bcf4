package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// SnapshotRepository persists point-in-time payload snapshots (e.g. a
// worker's scoring inputs or regime computation) for later offline
// analysis. Optional per the read path — nothing in the alerting or
// checker pipeline depends on snapshots existing.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Create persists a snapshot, stamping TakenAt if the caller left it zero.
func (r *SnapshotRepository) Create(s *domain.Snapshot) error {
	if s.TakenAt.IsZero() {
		s.TakenAt = time.Now()
	}
	_, err := r.db.Exec(
		"INSERT INTO snapshots (id, taken_at, kind, payload) VALUES (?, ?, ?, ?)",
		s.ID, s.TakenAt.Format(time.RFC3339Nano), s.Kind, s.Payload,
	)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", s.Kind, err)
	}
	return nil
}

// GetByKind returns the most recent `limit` snapshots of a given kind,
// newest first.
func (r *SnapshotRepository) GetByKind(kind string, limit int) ([]*domain.Snapshot, error) {
	rows, err := r.db.Query(
		"SELECT id, taken_at, kind, payload FROM snapshots WHERE kind = ? ORDER BY taken_at DESC LIMIT ?",
		kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get snapshots for kind %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		var takenAt string
		if err := rows.Scan(&s.ID, &takenAt, &s.Kind, &s.Payload); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, takenAt); err == nil {
			s.TakenAt = t
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// Prune deletes snapshots older than before, returning the number removed.
// Used by the backup/retention path to keep the table bounded.
func (r *SnapshotRepository) Prune(before time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM snapshots WHERE taken_at < ?", before.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots before %s: %w", before, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots rows affected: %w", err)
	}
	return n, nil
}
