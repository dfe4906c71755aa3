package repository

import (
	"context"

	"account-console/internal/domain"
)

// AccountQuery narrows and orders an account listing.
type AccountQuery struct {
	// Search matches a case-insensitive substring of the email.
	Search  string
	IsAdmin *bool
	// OrderBy holds field names, "-" prefixed for descending. Defaults to email.
	OrderBy []string
	Limit   int
	Offset  int
}

// AccountRepository defines persistence operations for Account entities.
type AccountRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, account *domain.Account) (int64, error)
	Update(ctx context.Context, account *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	// List returns one page of matches plus the total match count.
	List(ctx context.Context, query AccountQuery) ([]domain.Account, int, error)
}

// SortableAccountFields maps orderable field names to storage columns.
var SortableAccountFields = map[string]string{
	"id":         "id",
	"email":      "email",
	"birthdate":  "birthdate",
	"is_active":  "is_active",
	"is_admin":   "is_admin",
	"last_login": "last_login",
	"created_at": "created_at",
}
