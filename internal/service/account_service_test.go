package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"account-console/internal/domain"
	"account-console/internal/password"
	"account-console/internal/repository/memory"
)

func newTestService(t *testing.T) (AccountService, *memory.AccountRepository, password.Hasher) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewAccountRepository()
	hasher := password.NewRegistry(password.NewBcrypt(bcrypt.MinCost))
	return NewAccountService(repo, hasher, logger), repo, hasher
}

var birthdate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAccountService_CreateUser(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		wantErr    error
		wantEmail  string
		wantUsable bool
	}{
		{
			name:       "normalizes email and hashes password",
			email:      "User@Example.com",
			password:   "secret123",
			wantEmail:  "user@example.com",
			wantUsable: true,
		},
		{
			name:       "without password leaves it unusable",
			email:      "nopass@example.com",
			wantEmail:  "nopass@example.com",
			wantUsable: false,
		},
		{
			name:     "empty email",
			email:    "",
			password: "secret123",
			wantErr:  domain.ErrEmailRequired,
		},
		{
			name:     "blank email",
			email:    "   ",
			password: "secret123",
			wantErr:  domain.ErrEmailRequired,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			svc, repo, hasher := newTestService(t)

			// Act
			account, err := svc.CreateUser(context.Background(), test.email, birthdate, test.password)

			// Assert
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("CreateUser() error = %v, want %v", err, test.wantErr)
				}
				var verr *domain.ValidationError
				if !errors.As(err, &verr) || verr.Field != "email" {
					t.Errorf("CreateUser() error should be a validation error on email, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
			if account.Email != test.wantEmail || !account.Active || account.IsAdmin || account.IsStaff() {
				t.Errorf("CreateUser() = %+v", account)
			}
			if account.HasUsablePassword() != test.wantUsable {
				t.Errorf("HasUsablePassword() = %v, want %v", account.HasUsablePassword(), test.wantUsable)
			}
			if test.password != "" {
				if account.PasswordHash == test.password {
					t.Error("password stored in plaintext")
				}
				ok, err := hasher.Verify(test.password, account.PasswordHash)
				if err != nil || !ok {
					t.Errorf("stored hash does not verify: %v, %v", ok, err)
				}
			}

			stored, err := repo.GetByEmail(context.Background(), test.wantEmail)
			if err != nil || stored.ID != account.ID {
				t.Errorf("account not persisted: %+v, %v", stored, err)
			}
		})
	}
}

func TestAccountService_CreateUserDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "dup@example.com", birthdate, "pw"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	_, err := svc.CreateUser(ctx, "DUP@example.com", birthdate, "pw")
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("CreateUser(duplicate) error = %v, want ErrAccountExists", err)
	}
}

func TestAccountService_CreateAdministrator(t *testing.T) {
	svc, repo, hasher := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAdministrator(ctx, "Root@Example.com", birthdate, "rootpw")
	if err != nil {
		t.Fatalf("CreateAdministrator() error = %v", err)
	}
	if !account.IsAdmin || !account.IsStaff() || !account.Active {
		t.Errorf("CreateAdministrator() = %+v", account)
	}

	stored, err := repo.GetByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !stored.IsAdmin {
		t.Error("persisted account should be an administrator")
	}
	if ok, _ := hasher.Verify("rootpw", stored.PasswordHash); !ok {
		t.Error("administrator password does not verify")
	}

	if _, err := svc.CreateAdministrator(ctx, "other@example.com", birthdate, ""); !errors.Is(err, domain.ErrPasswordRequired) {
		t.Errorf("CreateAdministrator(no password) error = %v, want ErrPasswordRequired", err)
	}
}

func TestAccountService_Authenticate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "User@Example.com", birthdate, "secret123"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := svc.CreateUser(ctx, "nopass@example.com", birthdate, ""); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	inactive, err := svc.CreateUser(ctx, "gone@example.com", birthdate, "secret123")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	inactive.Active = false
	if err := repo.Update(ctx, inactive); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{name: "correct password", email: "user@example.com", password: "secret123"},
		{name: "email is normalized", email: " USER@example.com", password: "secret123"},
		{name: "wrong password", email: "user@example.com", password: "wrong", wantErr: true},
		{name: "unknown email", email: "who@example.com", password: "secret123", wantErr: true},
		{name: "unusable password", email: "nopass@example.com", password: "anything", wantErr: true},
		{name: "inactive account", email: "gone@example.com", password: "secret123", wantErr: true},
		{name: "empty password", email: "user@example.com", password: "", wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			account, err := svc.Authenticate(ctx, test.email, test.password)
			if test.wantErr {
				if !errors.Is(err, domain.ErrInvalidCredentials) {
					t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if account.LastLogin == nil {
				t.Error("Authenticate() should stamp LastLogin")
			}
		})
	}
}

func TestAccountService_SetPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateUser(ctx, "change@example.com", birthdate, "")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "change@example.com", "newpass"); err == nil {
		t.Fatal("account without password should not authenticate")
	}

	if err := svc.SetPassword(ctx, account.ID, "newpass"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "change@example.com", "newpass"); err != nil {
		t.Errorf("Authenticate() after SetPassword error = %v", err)
	}

	if err := svc.SetPassword(ctx, account.ID, ""); err != nil {
		t.Fatalf("SetPassword(empty) error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "change@example.com", "newpass"); err == nil {
		t.Error("SetPassword(empty) should make the password unusable")
	}

	if err := svc.SetPassword(ctx, 999, "x"); err == nil {
		t.Error("SetPassword(unknown id) should fail")
	}
}

func TestAccountService_PasswordTooLong(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	long := strings.Repeat("a", domain.MaxPasswordBytes+1)

	if _, err := svc.CreateUser(ctx, "long@example.com", birthdate, long); !errors.Is(err, domain.ErrPasswordTooLong) {
		t.Errorf("CreateUser() error = %v, want ErrPasswordTooLong", err)
	}
	if _, err := svc.CreateAdministrator(ctx, "long@example.com", birthdate, long); !errors.Is(err, domain.ErrPasswordTooLong) {
		t.Errorf("CreateAdministrator() error = %v, want ErrPasswordTooLong", err)
	}
	if _, err := repo.GetByEmail(ctx, "long@example.com"); err == nil {
		t.Error("rejected account should not be stored")
	}

	account, err := svc.CreateUser(ctx, "limit@example.com", birthdate, long[:domain.MaxPasswordBytes])
	if err != nil {
		t.Fatalf("CreateUser(72 bytes) error = %v", err)
	}
	if err := svc.SetPassword(ctx, account.ID, long); !errors.Is(err, domain.ErrPasswordTooLong) {
		t.Errorf("SetPassword() error = %v, want ErrPasswordTooLong", err)
	}
	if _, err := svc.Authenticate(ctx, "limit@example.com", long[:domain.MaxPasswordBytes]); err != nil {
		t.Errorf("original password should still authenticate: %v", err)
	}
}

func TestEnsureAdministrator(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	account, created, err := EnsureAdministrator(ctx, svc, " Root@Example.com", birthdate, "rootpw")
	if err != nil {
		t.Fatalf("EnsureAdministrator() error = %v", err)
	}
	if !created || !account.IsAdmin || account.Email != "root@example.com" {
		t.Errorf("EnsureAdministrator() = %+v, created = %v", account, created)
	}

	again, created, err := EnsureAdministrator(ctx, svc, "root@example.com", birthdate, "otherpw")
	if err != nil {
		t.Fatalf("EnsureAdministrator(again) error = %v", err)
	}
	if created || again.ID != account.ID {
		t.Errorf("second call = %+v, created = %v", again, created)
	}
	if _, err := svc.Authenticate(ctx, "root@example.com", "rootpw"); err != nil {
		t.Errorf("existing password should be kept: %v", err)
	}

	if _, _, err := EnsureAdministrator(ctx, svc, "nopw@example.com", birthdate, ""); !errors.Is(err, domain.ErrPasswordRequired) {
		t.Errorf("EnsureAdministrator(no password) error = %v", err)
	}
}
