package http

import (
	"time"

	"account-console/internal/domain"
)

type AccountResponse struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	Birthdate         string  `json:"birthdate"`
	IsActive          bool    `json:"is_active"`
	IsAdmin           bool    `json:"is_admin"`
	IsStaff           bool    `json:"is_staff"`
	HasUsablePassword bool    `json:"has_usable_password"`
	LastLogin         *string `json:"last_login,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func accountToResponse(account *domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:                account.ID,
		Email:             account.Email,
		Birthdate:         account.Birthdate.Format(domain.DateLayout),
		IsActive:          account.Active,
		IsAdmin:           account.IsAdmin,
		IsStaff:           account.IsStaff(),
		HasUsablePassword: account.HasUsablePassword(),
		CreatedAt:         account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         account.UpdatedAt.Format(time.RFC3339),
	}
	if account.LastLogin != nil {
		v := account.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &v
	}
	return resp
}

type ExportResponse struct {
	ID           string              `json:"id"`
	Query        string              `json:"q"`
	IsAdmin      *bool               `json:"is_admin,omitempty"`
	Status       domain.ExportStatus `json:"status"`
	Rows         int                 `json:"rows"`
	Location     string              `json:"location,omitempty"`
	DownloadURL  string              `json:"download_url,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RequestedBy  int64               `json:"requested_by"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
	CompletedAt  *string             `json:"completed_at,omitempty"`
}

func exportToResponse(job domain.ExportJob) ExportResponse {
	resp := ExportResponse{
		ID:           job.ID,
		Query:        job.Search,
		IsAdmin:      job.IsAdmin,
		Status:       job.Status,
		Rows:         job.Rows,
		Location:     job.Location,
		ErrorMessage: job.ErrorMessage,
		RequestedBy:  job.RequestedBy,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		v := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}
