package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

// ExportService coordinates export job bookkeeping backed by a repository.
type ExportService interface {
	CreateJob(ctx context.Context, search string, isAdmin *bool, requestedBy int64) (*domain.ExportJob, error)
	GetJob(ctx context.Context, id string) (*domain.ExportJob, error)
	ListJobs(ctx context.Context) ([]domain.ExportJob, error)
	ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ExportStatus, errMsg *string) error
	MarkCompleted(ctx context.Context, id string, location string, rows int) error
}

type exportService struct {
	jobs repository.ExportRepository
}

func NewExportService(jobs repository.ExportRepository) ExportService {
	return &exportService{jobs: jobs}
}

func (s *exportService) CreateJob(ctx context.Context, search string, isAdmin *bool, requestedBy int64) (*domain.ExportJob, error) {
	job := &domain.ExportJob{
		ID:          uuid.NewString(),
		Search:      search,
		IsAdmin:     isAdmin,
		Status:      domain.ExportStatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *exportService) GetJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	return s.jobs.Get(ctx, id)
}

func (s *exportService) ListJobs(ctx context.Context) ([]domain.ExportJob, error) {
	return s.jobs.List(ctx)
}

func (s *exportService) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.ExportJob, error) {
	return s.jobs.ListByStatuses(ctx, statuses...)
}

func (s *exportService) UpdateStatus(ctx context.Context, id string, status domain.ExportStatus, errMsg *string) error {
	return s.jobs.UpdateStatus(ctx, id, status, errMsg)
}

func (s *exportService) MarkCompleted(ctx context.Context, id string, location string, rows int) error {
	return s.jobs.MarkCompleted(ctx, id, location, rows, time.Now())
}
