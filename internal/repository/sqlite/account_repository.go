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

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	birthdate TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	is_admin INTEGER NOT NULL DEFAULT 0,
	password_hash TEXT NOT NULL,
	last_login DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_is_admin ON accounts(is_admin);
`

const accountColumns = `id, email, birthdate, is_active, is_admin, password_hash, last_login, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAccountsTable); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (int64, error) {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (email, birthdate, is_active, is_admin, password_hash, last_login, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.Email,
		account.Birthdate.Format(domain.DateLayout),
		account.Active,
		account.IsAdmin,
		account.PasswordHash,
		nullTime(account.LastLogin),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("account %s: %w", account.Email, repository.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account last insert id: %w", err)
	}
	account.ID = id
	return id, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	account.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE accounts
SET email=?, birthdate=?, is_active=?, is_admin=?, password_hash=?, last_login=?, updated_at=?
WHERE id=?`,
		account.Email,
		account.Birthdate.Format(domain.DateLayout),
		account.Active,
		account.IsAdmin,
		account.PasswordHash,
		nullTime(account.LastLogin),
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", account.Email, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("update account: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("account update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("account %d: %w", account.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE email = ?`,
		domain.NormalizeEmail(email),
	)
	return scanAccount(row)
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE id = ?`,
		id,
	)
	return scanAccount(row)
}

func (r *AccountRepository) List(ctx context.Context, query repository.AccountQuery) ([]domain.Account, int, error) {
	var (
		where []string
		args  []any
	)
	if search := strings.TrimSpace(query.Search); search != "" {
		where = append(where, `email LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(search)+"%")
	}
	if query.IsAdmin != nil {
		where = append(where, `is_admin = ?`)
		args = append(args, *query.IsAdmin)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	order, err := orderClause(query.OrderBy)
	if err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = -1
	}
	pageArgs := append(append([]any{}, args...), limit, query.Offset)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM accounts
%s
ORDER BY %s
LIMIT ? OFFSET ?`, accountColumns, clause, order), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, *account)
	}

	return accounts, total, rows.Err()
}

func orderClause(fields []string) (string, error) {
	if len(fields) == 0 {
		fields = []string{"email"}
	}
	parts := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		dir := "ASC"
		name := field
		if strings.HasPrefix(field, "-") {
			dir = "DESC"
			name = field[1:]
		}
		column, ok := repository.SortableAccountFields[name]
		if !ok {
			return "", fmt.Errorf("cannot order accounts by %q", field)
		}
		parts = append(parts, column+" "+dir)
	}
	return strings.Join(append(parts, "id ASC"), ", "), nil
}

func scanAccount(row interface {
	Scan(dest ...any) error
}) (*domain.Account, error) {
	var (
		account   domain.Account
		birthdate string
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&birthdate,
		&account.Active,
		&account.IsAdmin,
		&account.PasswordHash,
		&lastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	date, err := domain.ParseDate(birthdate)
	if err != nil {
		return nil, fmt.Errorf("parse birthdate %q: %w", birthdate, err)
	}
	account.Birthdate = date
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		account.LastLogin = &t
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
