package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"account-console/internal/admin"
	"account-console/internal/domain"
	"account-console/internal/repository"
	"account-console/internal/service"
	"account-console/internal/storage"
)

// Manager renders changelist exports to CSV and uploads them to object storage.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Enqueue(ctx context.Context, jobID string) error
	Resume(ctx context.Context) error
	// Cancel stops a queued or running export and marks it cancelled.
	// Finished jobs are left untouched.
	Cancel(ctx context.Context, jobID string) error
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	PageSize      int
	Logger        *logrus.Logger
}

type manager struct {
	cfg        Config
	exports    service.ExportService
	accounts   repository.AccountRepository
	changelist *admin.AccountAdmin
	storage    storage.Service

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[string]*jobHandle
}

type jobHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, exports service.ExportService, accounts repository.AccountRepository, changelist *admin.AccountAdmin, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:        cfg,
		exports:    exports,
		accounts:   accounts,
		changelist: changelist,
		storage:    store,
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		active:     make(map[string]*jobHandle),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("export bucket is required")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("export manager started, bucket: %s, workers: %d", m.cfg.Bucket, m.cfg.MaxConcurrent)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("export manager stopped")
}

func (m *manager) Enqueue(ctx context.Context, jobID string) error {
	if m.ctx == nil {
		return fmt.Errorf("export manager not started")
	}
	job, err := m.exports.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	m.spawnJob(*job)
	return nil
}

// Resume restarts jobs left pending or running by a previous process.
func (m *manager) Resume(ctx context.Context) error {
	jobs, err := m.exports.ListByStatuses(ctx,
		domain.ExportStatusPending,
		domain.ExportStatusRunning,
	)
	if err != nil {
		return err
	}

	for i := range jobs {
		m.spawnJob(jobs[i])
	}
	return nil
}

func (m *manager) spawnJob(job domain.ExportJob) {
	jobCtx, cancel := context.WithCancel(m.ctx)
	handle := &jobHandle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.registerJob(job.ID, handle)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.unregisterJob(job.ID)
			close(handle.done)
		}()
		select {
		case <-m.ctx.Done():
			return
		case <-jobCtx.Done():
			return
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
			m.handleJob(jobCtx, &job)
		}
	}()
}

func (m *manager) registerJob(id string, handle *jobHandle) {
	m.mu.Lock()
	m.active[id] = handle
	m.mu.Unlock()
}

func (m *manager) unregisterJob(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *manager) Cancel(ctx context.Context, jobID string) error {
	m.mu.Lock()
	handle, ok := m.active[jobID]
	m.mu.Unlock()

	if ok {
		handle.cancel()
		select {
		case <-handle.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	job, err := m.exports.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return nil
	}
	msg := "cancelled"
	if err := m.exports.UpdateStatus(ctx, jobID, domain.ExportStatusCancelled, &msg); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	m.cfg.Logger.WithField("job_id", jobID).Info("export cancelled")
	return nil
}

func (m *manager) handleJob(ctx context.Context, job *domain.ExportJob) {
	logger := m.cfg.Logger.WithField("job_id", job.ID)
	if job.Done() {
		logger.Debug("export already finished, skipping")
		return
	}

	if err := m.exports.UpdateStatus(ctx, job.ID, domain.ExportStatusRunning, nil); err != nil {
		logger.Errorf("update status failed: %v", err)
		return
	}
	job.Status = domain.ExportStatusRunning

	body, rows, err := m.render(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("export cancelled, left for resume")
			return
		}
		m.failJob(job.ID, fmt.Errorf("render: %w", err))
		return
	}
	logger.Infof("rendered %d accounts (%s)", rows, formatBytes(int64(body.Len())))

	location, err := m.storage.UploadObject(ctx, body, storage.UploadOptions{
		Bucket:      m.cfg.Bucket,
		Key:         storage.ObjectKey(m.cfg.KeyPrefix, job.ID+".csv"),
		ContentType: "text/csv",
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("upload cancelled, left for resume")
			return
		}
		m.failJob(job.ID, fmt.Errorf("upload: %w", err))
		return
	}

	if err := m.exports.MarkCompleted(ctx, job.ID, location, rows); err != nil {
		logger.Errorf("mark completed: %v", err)
		return
	}
	job.Status = domain.ExportStatusCompleted

	logger.Infof("export uploaded to %s", location)
}

// render writes the header and every matching row, page by page.
func (m *manager) render(ctx context.Context, job *domain.ExportJob) (*bytes.Buffer, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	columns := m.changelist.Columns()
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Field
	}
	if err := w.Write(header); err != nil {
		return nil, 0, err
	}

	query := m.changelist.Query(admin.ChangelistParams{Query: job.Search, IsAdmin: job.IsAdmin})
	query.Limit = m.cfg.PageSize

	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		accounts, total, err := m.accounts.List(ctx, query)
		if err != nil {
			return nil, 0, err
		}
		for i := range accounts {
			row := m.changelist.Row(&accounts[i])
			record := make([]string, len(row.Values))
			for j, v := range row.Values {
				record[j] = fmt.Sprint(v)
			}
			if err := w.Write(record); err != nil {
				return nil, 0, err
			}
			rows++
		}
		query.Offset += len(accounts)
		if len(accounts) == 0 || query.Offset >= total {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, err
	}
	return &buf, rows, nil
}

// failJob records the failure with a fresh context so cancellation still persists.
func (m *manager) failJob(jobID string, failErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := failErr.Error()
	if err := m.exports.UpdateStatus(ctx, jobID, domain.ExportStatusFailed, &msg); err != nil {
		m.cfg.Logger.WithField("job_id", jobID).Errorf("persist failure status: %v", err)
	}
	m.cfg.Logger.WithField("job_id", jobID).Error(msg)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB",
		float64(b)/float64(div),
		"KMGTPE"[exp],
	)
}

var _ Manager = (*manager)(nil)
