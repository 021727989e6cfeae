package sqlite

import (
	"fmt"

	"safetyvision/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds the detections of one run in a single transaction.
func (r *DetectionRepository) InsertBatch(runID int64, detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (run_id, class_id, label, confidence, x1, y1, x2, y2, flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(runID, det.ClassID, det.Label, det.Confidence, det.X1, det.Y1, det.X2, det.Y2, det.Flagged); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

const detectionColumns = `d.id, d.run_id, d.class_id, d.label, d.confidence, d.x1, d.y1, d.x2, d.y2, d.flagged, r.filename`

func (r *DetectionRepository) query(where string, args ...interface{}) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT `+detectionColumns+`
		FROM detections d JOIN runs r ON r.id = d.run_id
		`+where+`
		ORDER BY d.run_id DESC, d.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.ID, &det.RunID, &det.ClassID, &det.Label, &det.Confidence,
			&det.X1, &det.Y1, &det.X2, &det.Y2, &det.Flagged, &det.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, rows.Err()
}

// GetByRunID retrieves all detections of a run.
func (r *DetectionRepository) GetByRunID(runID int64) ([]model.Detection, error) {
	return r.query(`WHERE d.run_id = ?`, runID)
}

// GetFlagged retrieves detections marked for review.
func (r *DetectionRepository) GetFlagged() ([]model.Detection, error) {
	return r.query(`WHERE d.flagged = 1`)
}

// GetAll retrieves every stored detection.
func (r *DetectionRepository) GetAll() ([]model.Detection, error) {
	return r.query(``)
}

// CountByLabel returns the number of stored detections per class label.
func (r *DetectionRepository) CountByLabel() (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT label, COUNT(*) FROM detections GROUP BY label ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[label] = count
	}
	return counts, rows.Err()
}

// SetFlagged marks or unmarks a detection for review.
func (r *DetectionRepository) SetFlagged(id int64, flagged bool) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE detections SET flagged = ? WHERE id = ?`, flagged, id)
	if err != nil {
		return fmt.Errorf("failed to update detection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
