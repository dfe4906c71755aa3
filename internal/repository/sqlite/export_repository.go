package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

const createExportJobsTable = `
CREATE TABLE IF NOT EXISTS export_jobs (
	id TEXT PRIMARY KEY,
	search TEXT NOT NULL DEFAULT '',
	is_admin INTEGER NULL,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	requested_by INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	completed_at DATETIME NULL
);
`

const exportColumns = `id, search, is_admin, status, row_count, location, error_message, requested_by, created_at, updated_at, completed_at`

type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) repository.ExportRepository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createExportJobsTable); err != nil {
		return fmt.Errorf("create export_jobs table: %w", err)
	}
	return nil
}

func (r *ExportRepository) Create(ctx context.Context, job *domain.ExportJob) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	var isAdmin any
	if job.IsAdmin != nil {
		isAdmin = *job.IsAdmin
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO export_jobs (id, search, is_admin, status, row_count, location, error_message, requested_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Search,
		isAdmin,
		string(job.Status),
		job.Rows,
		job.Location,
		job.ErrorMessage,
		job.RequestedBy,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export job: %w", err)
	}
	return nil
}

func (r *ExportRepository) UpdateStatus(ctx context.Context, id string, status domain.ExportStatus, errorMessage *string) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE export_jobs
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

func (r *ExportRepository) MarkCompleted(ctx context.Context, id string, location string, rows int, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE export_jobs
SET status=?, location=?, row_count=?, completed_at=?, updated_at=?
WHERE id=?`,
		string(domain.ExportStatusCompleted),
		location,
		rows,
		completedAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return nil
}

func (r *ExportRepository) Get(ctx context.Context, id string) (*domain.ExportJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+exportColumns+`
FROM export_jobs
WHERE id=?`,
		id,
	)
	return scanExportJob(row)
}

func (r *ExportRepository) List(ctx context.Context) ([]domain.ExportJob, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+exportColumns+`
FROM export_jobs
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query export jobs: %w", err)
	}
	defer rows.Close()

	return collectExportJobs(rows)
}

func (r *ExportRepository) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.ExportJob, error) {
	if len(statuses) == 0 {
		return []domain.ExportJob{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM export_jobs
WHERE status IN (%s)
ORDER BY created_at ASC`, exportColumns, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("query export jobs by status: %w", err)
	}
	defer rows.Close()

	return collectExportJobs(rows)
}

func collectExportJobs(rows *sql.Rows) ([]domain.ExportJob, error) {
	var jobs []domain.ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanExportJob(scanner interface {
	Scan(dest ...any) error
}) (*domain.ExportJob, error) {
	var (
		job         domain.ExportJob
		status      string
		isAdmin     sql.NullBool
		completedAt sql.NullTime
	)

	if err := scanner.Scan(
		&job.ID,
		&job.Search,
		&isAdmin,
		&status,
		&job.Rows,
		&job.Location,
		&job.ErrorMessage,
		&job.RequestedBy,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("export job: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan export job: %w", err)
	}

	job.Status = domain.ExportStatus(status)
	if isAdmin.Valid {
		v := isAdmin.Bool
		job.IsAdmin = &v
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}
