package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"safetyvision/internal/dto"
	"safetyvision/internal/model"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `r.id, r.uid, r.filename, r.upload_path, r.output_path, r.inference_ms, r.created_at,
	(SELECT COUNT(*) FROM detections d WHERE d.run_id = r.id)`

func scanRun(row interface{ Scan(...any) error }) (*model.Run, error) {
	var run model.Run
	err := row.Scan(&run.ID, &run.UID, &run.Filename, &run.UploadPath, &run.OutputPath,
		&run.InferenceMs, &run.CreatedAt, &run.DetectionCount)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Insert adds a new run record and returns its id.
func (r *RunRepository) Insert(run *model.Run) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO runs (uid, filename, upload_path, output_path, inference_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.UID, run.Filename, run.UploadPath, run.OutputPath, run.InferenceMs, run.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a run by its ID. A missing run yields ErrNotFound.
func (r *RunRepository) GetByID(id int64) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	run, err := scanRun(r.db.Conn().QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetByOutputPath retrieves the run that produced an annotated file.
func (r *RunRepository) GetByOutputPath(path string) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	run, err := scanRun(r.db.Conn().QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.output_path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func buildRunWhere(filter *dto.RunFilters) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.Label != "" {
		where += " AND EXISTS (SELECT 1 FROM detections d WHERE d.run_id = r.id AND d.label = ?)"
		args = append(args, filter.Label)
	}

	if !filter.DateAfter.IsZero() {
		where += " AND DATE(r.created_at) >= DATE(?)"
		args = append(args, filter.DateAfter)
	}

	if !filter.DateBefore.IsZero() {
		where += " AND DATE(r.created_at) <= DATE(?)"
		args = append(args, filter.DateBefore)
	}

	return where, args
}

// GetAll retrieves runs, newest first, matching the filter.
func (r *RunRepository) GetAll(filter *dto.RunFilters) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildRunWhere(filter)
	query := `SELECT ` + runColumns + ` FROM runs r` + where + " ORDER BY r.created_at DESC, r.id DESC"

	if filter != nil && filter.Limit > 0 {
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
func (r *RunRepository) GetTotalCount(filter *dto.RunFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildRunWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM runs r`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// Delete removes a run; its detections go with it.
func (r *RunRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes all runs and their detections.
func (r *RunRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}

	return nil
}
