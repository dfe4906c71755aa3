package repository

import (
	"context"
	"time"

	"account-console/internal/domain"
)

// ExportRepository persists changelist export jobs.
type ExportRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, job *domain.ExportJob) error
	UpdateStatus(ctx context.Context, id string, status domain.ExportStatus, errorMessage *string) error
	MarkCompleted(ctx context.Context, id string, location string, rows int, completedAt time.Time) error
	Get(ctx context.Context, id string) (*domain.ExportJob, error)
	List(ctx context.Context) ([]domain.ExportJob, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.ExportJob, error)
}
