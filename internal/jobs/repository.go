package jobs

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	Create(ctx context.Context, job *Job) error
	// Get returns nil, nil when the job does not exist.
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, projectID string, limit int) ([]*Job, error)
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string, failedStep *int) error
	UpdateProgress(ctx context.Context, id string, progress float64) error
	Complete(ctx context.Context, id, outputPath, filename string, size int64) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, project_id, status, progress, error, failed_step, output_path, filename,
	format, quality, size_bytes, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, string(j.Status), j.Progress, nullString(j.Error), nullInt(j.FailedStep),
		nullString(j.OutputPath), nullString(j.Filename), j.Format, j.Quality, j.SizeBytes,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

// List returns the newest jobs first. An empty projectID lists every
// project's jobs.
func (r *SQLiteRepository) List(ctx context.Context, projectID string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM export_jobs
		WHERE (? = '' OR project_id = ?)
		ORDER BY created_at DESC LIMIT ?
	`, projectID, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status, errMsg string, failedStep *int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = ?, error = ?, failed_step = ?, updated_at = ? WHERE id = ?
	`, string(status), nullString(errMsg), nullInt(failedStep), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id string, progress float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) Complete(ctx context.Context, id, outputPath, filename string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs
		SET status = ?, progress = 100, error = NULL, failed_step = NULL,
		    output_path = ?, filename = ?, size_bytes = ?, updated_at = ?
		WHERE id = ?
	`, string(StatusCompleted), outputPath, filename, size, formatTime(time.Now()), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var status string
	var errMsg, outputPath, filename sql.NullString
	var failedStep sql.NullInt64
	var createdAt, updatedAt string

	err := s.Scan(&j.ID, &j.ProjectID, &status, &j.Progress, &errMsg, &failedStep, &outputPath, &filename,
		&j.Format, &j.Quality, &j.SizeBytes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.Status = Status(status)
	j.Error = errMsg.String
	j.OutputPath = outputPath.String
	j.Filename = filename.String
	if failedStep.Valid {
		step := int(failedStep.Int64)
		j.FailedStep = &step
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
