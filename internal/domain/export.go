package domain

import "time"

type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
	ExportStatusCancelled ExportStatus = "cancelled"
)

// ExportJob tracks one changelist export to object storage.
type ExportJob struct {
	ID           string
	Search       string
	IsAdmin      *bool
	Status       ExportStatus
	Rows         int
	Location     string
	ErrorMessage string
	RequestedBy  int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Done reports whether the job reached a terminal status.
func (j *ExportJob) Done() bool {
	switch j.Status {
	case ExportStatusCompleted, ExportStatusFailed, ExportStatusCancelled:
		return true
	}
	return false
}
