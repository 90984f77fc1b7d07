package sqlite

import (
	"database/sql"
	"fmt"

	"parkingwatch/internal/model"
)

// IntervalRepository implements repository.IntervalRepository for SQLite.
type IntervalRepository struct {
	db *DB
}

// NewIntervalRepository creates a new SQLite interval repository.
func NewIntervalRepository(db *DB) *IntervalRepository {
	return &IntervalRepository{db: db}
}

// Insert adds a captured interval to the database.
func (r *IntervalRepository) Insert(iv *model.Interval) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO intervals (run_id, ordinal, frame, vehicles, available, stale, filename, filepath, filesize, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, iv.RunID, iv.Ordinal, iv.Frame, iv.Vehicles, iv.Available, iv.Stale, iv.Filename, iv.FilePath, iv.FileSize, iv.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert interval: %w", err)
	}

	return result.LastInsertId()
}

// GetByRunID retrieves the intervals of a run in capture order.
func (r *IntervalRepository) GetByRunID(runID string) ([]model.Interval, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, ordinal, frame, vehicles, available, stale, filename, filepath, filesize, created_at
		FROM intervals WHERE run_id = ? ORDER BY ordinal
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query intervals: %w", err)
	}
	defer rows.Close()

	var intervals []model.Interval
	for rows.Next() {
		var iv model.Interval
		if err := rows.Scan(&iv.ID, &iv.RunID, &iv.Ordinal, &iv.Frame, &iv.Vehicles, &iv.Available,
			&iv.Stale, &iv.Filename, &iv.FilePath, &iv.FileSize, &iv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interval: %w", err)
		}
		intervals = append(intervals, iv)
	}

	return intervals, rows.Err()
}

// GetByOrdinal retrieves one interval of a run. A missing interval yields nil without error.
func (r *IntervalRepository) GetByOrdinal(runID string, ordinal int) (*model.Interval, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var iv model.Interval
	err := r.db.Conn().QueryRow(`
		SELECT id, run_id, ordinal, frame, vehicles, available, stale, filename, filepath, filesize, created_at
		FROM intervals WHERE run_id = ? AND ordinal = ?
	`, runID, ordinal).Scan(&iv.ID, &iv.RunID, &iv.Ordinal, &iv.Frame, &iv.Vehicles, &iv.Available,
		&iv.Stale, &iv.Filename, &iv.FilePath, &iv.FileSize, &iv.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interval: %w", err)
	}
	return &iv, nil
}

// DeleteByRunID removes all intervals of a run.
func (r *IntervalRepository) DeleteByRunID(runID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM intervals WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete intervals: %w", err)
	}
	return nil
}
