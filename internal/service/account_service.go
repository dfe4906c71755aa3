package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"account-console/internal/domain"
	"account-console/internal/password"
	"account-console/internal/repository"
)

// ErrAccountExists is returned when an email is already registered.
var ErrAccountExists = errors.New("account already exists")

// AccountService creates accounts and manages their credentials.
type AccountService interface {
	// CreateUser stores a regular account. An empty password leaves the
	// account without a usable password.
	CreateUser(ctx context.Context, email string, birthdate time.Time, password string) (*domain.Account, error)
	// CreateAdministrator stores an administrator in a single write.
	CreateAdministrator(ctx context.Context, email string, birthdate time.Time, password string) (*domain.Account, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
	SetPassword(ctx context.Context, id int64, password string) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

type accountService struct {
	accounts repository.AccountRepository
	hasher   password.Hasher
	logger   *logrus.Logger
}

func NewAccountService(accounts repository.AccountRepository, hasher password.Hasher, logger *logrus.Logger) AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &accountService{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
	}
}

func (s *accountService) CreateUser(ctx context.Context, email string, birthdate time.Time, plain string) (*domain.Account, error) {
	account, err := s.build(email, birthdate, plain)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.WithField("account_id", account.ID).Info("account created")
	return account, nil
}

func (s *accountService) CreateAdministrator(ctx context.Context, email string, birthdate time.Time, plain string) (*domain.Account, error) {
	if plain == "" {
		return nil, domain.ErrPasswordRequired
	}
	account, err := s.build(email, birthdate, plain)
	if err != nil {
		return nil, err
	}
	account.IsAdmin = true
	if err := s.create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.WithField("account_id", account.ID).Info("administrator created")
	return account, nil
}

func (s *accountService) build(email string, birthdate time.Time, plain string) (*domain.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, domain.ErrEmailRequired
	}
	account := domain.NewAccount(email, birthdate)
	hash, err := s.encode(plain)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash
	return account, nil
}

func (s *accountService) create(ctx context.Context, account *domain.Account) error {
	if _, err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (s *accountService) encode(plain string) (string, error) {
	if plain == "" {
		return password.MakeUnusable()
	}
	if len(plain) > domain.MaxPasswordBytes {
		return "", domain.ErrPasswordTooLong
	}
	return s.hasher.Hash(plain)
}

func (s *accountService) Authenticate(ctx context.Context, email, plain string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || plain == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.Active || !account.HasUsablePassword() {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(plain, account.PasswordHash)
	if err != nil {
		s.logger.WithField("account_id", account.ID).Warnf("verify password: %v", err)
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	account.LastLogin = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("record last login: %w", err)
	}
	return account, nil
}

func (s *accountService) SetPassword(ctx context.Context, id int64, plain string) error {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := s.encode(plain)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}
	s.logger.WithField("account_id", id).Info("password changed")
	return nil
}

func (s *accountService) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *accountService) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.accounts.GetByEmail(ctx, email)
}

// EnsureAdministrator creates an administrator for email unless an account
// with that email already exists. created reports whether it was written.
func EnsureAdministrator(ctx context.Context, accounts AccountService, email string, birthdate time.Time, plain string) (account *domain.Account, created bool, err error) {
	existing, err := accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup administrator: %w", err)
	}

	account, err = accounts.CreateAdministrator(ctx, email, birthdate, plain)
	if errors.Is(err, ErrAccountExists) {
		existing, err = accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}
