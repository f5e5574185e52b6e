package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fieldport/fieldsync/internal/errors"
	"github.com/fieldport/fieldsync/internal/models"
)

const captureColumns = `id, project_id, milestone_id, payload, mime_type, file_name, file_size,
	latitude, longitude, accuracy, category, note, tags, captured_at, status, retry_count, created_at`

// Enqueue persists a new capture and returns its assigned id.
// The record always starts as pending with a zero retry count; enqueuing
// involves no network and cannot fail because the device is offline.
func (s *Store) Enqueue(ctx context.Context, c *models.PendingCapture) (int64, error) {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return 0, errors.Wrap(errors.ErrInvalid, "encode tags", err)
	}

	var lat, lon, acc any
	if c.Location != nil {
		lat, lon, acc = c.Location.Latitude, c.Location.Longitude, c.Location.Accuracy
	}

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO pending_captures (project_id, milestone_id, payload, mime_type, file_name, file_size,
		latitude, longitude, accuracy, category, note, tags, captured_at, status, retry_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?)`,
		c.ProjectID, c.MilestoneID, c.Payload, c.MimeType, c.FileName, c.FileSize,
		lat, lon, acc, c.Category, c.Note, string(tags), c.CapturedAt, now)
	if err != nil {
		return 0, errors.Wrap(errors.ErrStore, "enqueue capture", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(errors.ErrStore, "read assigned id", err)
	}
	c.ID = id
	c.Status = models.CaptureStatusPending
	c.RetryCount = 0
	c.CreatedAt = now
	return id, nil
}

// Get retrieves a single capture by id.
func (s *Store) Get(ctx context.Context, id int64) (*models.PendingCapture, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+captureColumns+" FROM pending_captures WHERE id = ?", id)
	c, err := scanCapture(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrNotFound, "capture not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "get capture", err)
	}
	return c, nil
}

// ListAll returns every queued capture ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]*models.PendingCapture, error) {
	return s.list(ctx, "SELECT "+captureColumns+" FROM pending_captures ORDER BY id ASC")
}

// ListByProject returns the queued captures for one project.
func (s *Store) ListByProject(ctx context.Context, projectID int64) ([]*models.PendingCapture, error) {
	return s.list(ctx,
		"SELECT "+captureColumns+" FROM pending_captures WHERE project_id = ? ORDER BY id ASC", projectID)
}

// ListPending returns captures awaiting delivery. Records stuck in
// 'uploading' were left mid-flight by a crash and are retried, not skipped.
func (s *Store) ListPending(ctx context.Context) ([]*models.PendingCapture, error) {
	return s.list(ctx,
		"SELECT "+captureColumns+" FROM pending_captures WHERE status IN ('pending','uploading') ORDER BY id ASC")
}

// Count returns the number of queued captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_captures").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrStore, "count captures", err)
	}
	return n, nil
}

// Remove deletes a capture. Removing an id that no longer exists is a no-op;
// the record was already resolved by a concurrent pass.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_captures WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrStore, "remove capture", err)
	}
	return nil
}

// SetStatus updates a capture's status, and its retry count when retryCount
// is non-nil. The update is silently dropped when the row is gone.
func (s *Store) SetStatus(ctx context.Context, id int64, status models.CaptureStatus, retryCount *int) error {
	var err error
	if retryCount != nil {
		_, err = s.db.ExecContext(ctx,
			"UPDATE pending_captures SET status = ?, retry_count = ? WHERE id = ?", status, *retryCount, id)
	} else {
		_, err = s.db.ExecContext(ctx,
			"UPDATE pending_captures SET status = ? WHERE id = ?", status, id)
	}
	if err != nil {
		return errors.Wrap(errors.ErrStore, "set capture status", err)
	}
	return nil
}

// ReplaceProjectCache atomically replaces the offline project snapshot.
func (s *Store) ReplaceProjectCache(ctx context.Context, projects []models.CachedProjectRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrStore, "begin project cache replace", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM project_cache"); err != nil {
		tx.Rollback()
		return errors.Wrap(errors.ErrStore, "clear project cache", err)
	}
	for _, p := range projects {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO project_cache (id, name, code, status) VALUES (?, ?, ?, ?)",
			p.ID, p.Name, p.Code, p.Status); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrStore, "insert project ref", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrStore, "commit project cache replace", err)
	}
	return nil
}

// ProjectCache returns the cached project snapshot, stale but available.
func (s *Store) ProjectCache(ctx context.Context) ([]models.CachedProjectRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, code, status FROM project_cache ORDER BY name ASC")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "read project cache", err)
	}
	defer rows.Close()

	var projects []models.CachedProjectRef
	for rows.Next() {
		var p models.CachedProjectRef
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Status); err != nil {
			return nil, errors.Wrap(errors.ErrStore, "scan project ref", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*models.PendingCapture, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStore, "list captures", err)
	}
	defer rows.Close()

	var captures []*models.PendingCapture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrStore, "scan capture", err)
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (*models.PendingCapture, error) {
	var (
		c           models.PendingCapture
		milestoneID sql.NullInt64
		lat, lon    sql.NullFloat64
		acc         sql.NullFloat64
		tags        string
	)
	err := row.Scan(&c.ID, &c.ProjectID, &milestoneID, &c.Payload, &c.MimeType, &c.FileName,
		&c.FileSize, &lat, &lon, &acc, &c.Category, &c.Note, &tags, &c.CapturedAt,
		&c.Status, &c.RetryCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if milestoneID.Valid {
		c.MilestoneID = &milestoneID.Int64
	}
	if lat.Valid && lon.Valid {
		c.Location = &models.GeoPoint{
			Latitude:  lat.Float64,
			Longitude: lon.Float64,
			Accuracy:  acc.Float64,
		}
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		// A malformed tag blob should not hide the capture itself.
		c.Tags = nil
	}
	return &c, nil
}
