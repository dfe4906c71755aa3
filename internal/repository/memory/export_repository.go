package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

// ExportRepository keeps export jobs in process memory.
type ExportRepository struct {
	mu   sync.RWMutex
	jobs map[string]domain.ExportJob
}

func NewExportRepository() *ExportRepository {
	return &ExportRepository{jobs: make(map[string]domain.ExportJob)}
}

var _ repository.ExportRepository = (*ExportRepository)(nil)

func (r *ExportRepository) Init(ctx context.Context) error {
	return nil
}

func (r *ExportRepository) Create(ctx context.Context, job *domain.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("export job %s: %w", job.ID, repository.ErrAlreadyExists)
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = copyJob(*job)
	return nil
}

func (r *ExportRepository) UpdateStatus(ctx context.Context, id string, status domain.ExportStatus, errorMessage *string) error {
	return r.mutate(id, func(job *domain.ExportJob) {
		job.Status = status
		job.ErrorMessage = ""
		if errorMessage != nil {
			job.ErrorMessage = *errorMessage
		}
	})
}

func (r *ExportRepository) MarkCompleted(ctx context.Context, id string, location string, rows int, completedAt time.Time) error {
	return r.mutate(id, func(job *domain.ExportJob) {
		t := completedAt.UTC()
		job.Status = domain.ExportStatusCompleted
		job.Location = location
		job.Rows = rows
		job.CompletedAt = &t
	})
}

func (r *ExportRepository) mutate(id string, fn func(job *domain.ExportJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("export job %s: %w", id, repository.ErrNotFound)
	}
	fn(&job)
	job.UpdatedAt = time.Now().UTC()
	r.jobs[id] = job
	return nil
}

func (r *ExportRepository) Get(ctx context.Context, id string) (*domain.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("export job: %w", repository.ErrNotFound)
	}
	out := copyJob(job)
	return &out, nil
}

func (r *ExportRepository) List(ctx context.Context) ([]domain.ExportJob, error) {
	jobs := r.filter(nil)
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

func (r *ExportRepository) ListByStatuses(ctx context.Context, statuses ...domain.ExportStatus) ([]domain.ExportJob, error) {
	if len(statuses) == 0 {
		return []domain.ExportJob{}, nil
	}
	wanted := make(map[domain.ExportStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}
	jobs := r.filter(func(job domain.ExportJob) bool {
		_, ok := wanted[job.Status]
		return ok
	})
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (r *ExportRepository) filter(keep func(domain.ExportJob) bool) []domain.ExportJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []domain.ExportJob
	for _, job := range r.jobs {
		if keep == nil || keep(job) {
			jobs = append(jobs, copyJob(job))
		}
	}
	return jobs
}

func copyJob(j domain.ExportJob) domain.ExportJob {
	if j.IsAdmin != nil {
		v := *j.IsAdmin
		j.IsAdmin = &v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
