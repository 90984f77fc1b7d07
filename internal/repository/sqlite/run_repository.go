package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"parkingwatch/internal/model"
)

const runColumns = `id, source_name, total_spaces, fps, prediction_interval, capture_interval,
	status, error, frames_read, intervals, output_dir, started_at, finished_at`

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert adds a new run record to the database.
func (r *RunRepository) Insert(run *model.Run) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceName, run.TotalSpaces, run.FPS, run.PredictionInterval, run.CaptureInterval,
		run.Status, run.Error, run.FramesRead, run.Intervals, run.OutputDir, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Finish stores the final state of a run.
func (r *RunRepository) Finish(id, status, errMsg string, framesRead, intervals int, finishedAt time.Time) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE runs SET status = ?, error = ?, frames_read = ?, intervals = ?, finished_at = ?
		WHERE id = ?
	`, status, errMsg, framesRead, intervals, finishedAt, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// MarkInterrupted fails every run still marked as running, e.g. after a crash.
func (r *RunRepository) MarkInterrupted(finishedAt time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, model.RunStatusFailed, "interrupted", finishedAt, model.RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

// GetByID retrieves a run by its ID. A missing run yields nil without error.
func (r *RunRepository) GetByID(id string) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetAll retrieves runs, newest first.
func (r *RunRepository) GetAll(filter *model.RunFilter) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetTotalCount returns the number of runs matching the filter.
func (r *RunRepository) GetTotalCount(filter *model.RunFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM runs WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Delete removes a run and its intervals.
func (r *RunRepository) Delete(id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM intervals WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete intervals: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &run.SourceName, &run.TotalSpaces, &run.FPS, &run.PredictionInterval,
		&run.CaptureInterval, &run.Status, &run.Error, &run.FramesRead, &run.Intervals,
		&run.OutputDir, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
