package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

// AccountRepository keeps accounts in process memory.
type AccountRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]domain.Account
	byEmail map[string]int64
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[int64]domain.Account),
		byEmail: make(map[string]int64),
	}
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

func (r *AccountRepository) Init(ctx context.Context) error {
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.NormalizeEmail(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return 0, fmt.Errorf("account %s: %w", account.Email, repository.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	r.nextID++
	account.ID = r.nextID
	account.CreatedAt = now
	account.UpdatedAt = now

	r.byID[account.ID] = copyAccount(*account)
	r.byEmail[key] = account.ID
	return account.ID, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return fmt.Errorf("account %d: %w", account.ID, repository.ErrNotFound)
	}
	key := domain.NormalizeEmail(account.Email)
	if owner, exists := r.byEmail[key]; exists && owner != account.ID {
		return fmt.Errorf("account %s: %w", account.Email, repository.ErrAlreadyExists)
	}

	account.UpdatedAt = time.Now().UTC()
	delete(r.byEmail, domain.NormalizeEmail(current.Email))
	r.byID[account.ID] = copyAccount(*account)
	r.byEmail[key] = account.ID
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("account: %w", repository.ErrNotFound)
	}
	account := copyAccount(r.byID[id])
	return &account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("account: %w", repository.ErrNotFound)
	}
	account := copyAccount(stored)
	return &account, nil
}

func (r *AccountRepository) List(ctx context.Context, query repository.AccountQuery) ([]domain.Account, int, error) {
	less, err := accountLess(query.OrderBy)
	if err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	search := strings.ToLower(strings.TrimSpace(query.Search))
	var matched []domain.Account
	for _, account := range r.byID {
		if search != "" && !strings.Contains(strings.ToLower(account.Email), search) {
			continue
		}
		if query.IsAdmin != nil && account.IsAdmin != *query.IsAdmin {
			continue
		}
		matched = append(matched, copyAccount(account))
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return less(&matched[i], &matched[j]) })

	total := len(matched)
	start := min(max(query.Offset, 0), total)
	end := total
	if query.Limit > 0 {
		end = min(start+query.Limit, total)
	}
	return matched[start:end], total, nil
}

func accountLess(fields []string) (func(a, b *domain.Account) bool, error) {
	if len(fields) == 0 {
		fields = []string{"email"}
	}
	type cmpFunc func(a, b *domain.Account) int
	cmps := make([]cmpFunc, 0, len(fields))
	for _, field := range fields {
		desc := strings.HasPrefix(field, "-")
		name := strings.TrimPrefix(field, "-")
		if _, ok := repository.SortableAccountFields[name]; !ok {
			return nil, fmt.Errorf("cannot order accounts by %q", field)
		}
		cmp := compareField(name)
		if desc {
			cmps = append(cmps, func(a, b *domain.Account) int { return -cmp(a, b) })
		} else {
			cmps = append(cmps, cmp)
		}
	}
	return func(a, b *domain.Account) bool {
		for _, cmp := range cmps {
			if c := cmp(a, b); c != 0 {
				return c < 0
			}
		}
		return a.ID < b.ID
	}, nil
}

func compareField(name string) func(a, b *domain.Account) int {
	switch name {
	case "email":
		return func(a, b *domain.Account) int { return strings.Compare(a.Email, b.Email) }
	case "birthdate":
		return func(a, b *domain.Account) int { return a.Birthdate.Compare(b.Birthdate) }
	case "is_active":
		return func(a, b *domain.Account) int { return compareBool(a.Active, b.Active) }
	case "is_admin":
		return func(a, b *domain.Account) int { return compareBool(a.IsAdmin, b.IsAdmin) }
	case "last_login":
		return func(a, b *domain.Account) int { return compareTimePtr(a.LastLogin, b.LastLogin) }
	case "created_at":
		return func(a, b *domain.Account) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return func(a, b *domain.Account) int { return compareInt(a.ID, b.ID) }
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// nil sorts first, matching sqlite's NULL ordering.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

func copyAccount(a domain.Account) domain.Account {
	if a.LastLogin != nil {
		t := *a.LastLogin
		a.LastLogin = &t
	}
	return a
}
