// Package repotest holds behaviour checks shared by every AccountRepository implementation.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"account-console/internal/domain"
	"account-console/internal/repository"
)

// AccountRepository runs the shared checks against repositories built by newRepo.
func AccountRepository(t *testing.T, newRepo func(t *testing.T) repository.AccountRepository) {
	t.Run("create then get", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		account := domain.NewAccount("alice@example.com", date(1990, 5, 17))
		account.PasswordHash = "$2a$04$hash"
		id, err := repo.Create(ctx, account)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if id == 0 || account.ID != id {
			t.Fatalf("Create() id = %d, account.ID = %d", id, account.ID)
		}

		byEmail, err := repo.GetByEmail(ctx, "  ALICE@example.com ")
		if err != nil {
			t.Fatalf("GetByEmail() error = %v", err)
		}
		if byEmail.ID != id || !byEmail.Active || byEmail.IsAdmin {
			t.Errorf("GetByEmail() = %+v", byEmail)
		}
		if !byEmail.Birthdate.Equal(date(1990, 5, 17)) {
			t.Errorf("Birthdate = %v, want 1990-05-17", byEmail.Birthdate)
		}
		if byEmail.PasswordHash != "$2a$04$hash" {
			t.Errorf("PasswordHash = %q", byEmail.PasswordHash)
		}

		byID, err := repo.GetByID(ctx, id)
		if err != nil || byID.Email != "alice@example.com" {
			t.Errorf("GetByID() = %+v, %v", byID, err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		if _, err := repo.Create(ctx, domain.NewAccount("bob@example.com", date(1980, 1, 1))); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err := repo.Create(ctx, &domain.Account{Email: "bob@example.com", Birthdate: date(1981, 1, 1)})
		if !errors.Is(err, repository.ErrAlreadyExists) {
			t.Errorf("Create(duplicate) error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
		}
		if _, err := repo.GetByID(ctx, 42); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("GetByID() error = %v, want ErrNotFound", err)
		}
		if err := repo.Update(ctx, &domain.Account{ID: 42, Email: "x@example.com"}); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		first := domain.NewAccount("carol@example.com", date(1970, 3, 3))
		second := domain.NewAccount("dave@example.com", date(1971, 4, 4))
		mustCreate(t, repo, first, second)

		login := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		first.Email = "carol.new@example.com"
		first.Active = false
		first.IsAdmin = true
		first.LastLogin = &login
		if err := repo.Update(ctx, first); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := repo.GetByID(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Email != "carol.new@example.com" || got.Active || !got.IsAdmin {
			t.Errorf("after Update() = %+v", got)
		}
		if got.LastLogin == nil || !got.LastLogin.Equal(login) {
			t.Errorf("LastLogin = %v, want %v", got.LastLogin, login)
		}
		if _, err := repo.GetByEmail(ctx, "carol@example.com"); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("old email still resolves: %v", err)
		}

		second.Email = "carol.new@example.com"
		if err := repo.Update(ctx, second); !errors.Is(err, repository.ErrAlreadyExists) {
			t.Errorf("Update(taken email) error = %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		zed := domain.NewAccount("zed@example.com", date(1999, 1, 1))
		amy := domain.NewAccount("amy@corp.test", date(1998, 1, 1))
		amy.IsAdmin = true
		maxi := domain.NewAccount("max@example.com", date(1997, 1, 1))
		mustCreate(t, repo, zed, amy, maxi)

		all, total, err := repo.List(ctx, repository.AccountQuery{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if total != 3 || emails(all) != "amy@corp.test,max@example.com,zed@example.com" {
			t.Errorf("List() = %s (total %d)", emails(all), total)
		}

		admins := true
		filtered, total, err := repo.List(ctx, repository.AccountQuery{IsAdmin: &admins})
		if err != nil || total != 1 || emails(filtered) != "amy@corp.test" {
			t.Errorf("List(is_admin) = %s (total %d), %v", emails(filtered), total, err)
		}

		searched, total, err := repo.List(ctx, repository.AccountQuery{Search: "EXAMPLE"})
		if err != nil || total != 2 || emails(searched) != "max@example.com,zed@example.com" {
			t.Errorf("List(search) = %s (total %d), %v", emails(searched), total, err)
		}

		none, total, err := repo.List(ctx, repository.AccountQuery{Search: "%"})
		if err != nil || total != 0 || len(none) != 0 {
			t.Errorf("List(search %%) = %s (total %d), %v", emails(none), total, err)
		}

		paged, total, err := repo.List(ctx, repository.AccountQuery{OrderBy: []string{"-email"}, Limit: 1, Offset: 1})
		if err != nil || total != 3 || emails(paged) != "max@example.com" {
			t.Errorf("List(page) = %s (total %d), %v", emails(paged), total, err)
		}

		byBirth, _, err := repo.List(ctx, repository.AccountQuery{OrderBy: []string{"birthdate"}})
		if err != nil || emails(byBirth) != "max@example.com,amy@corp.test,zed@example.com" {
			t.Errorf("List(birthdate) = %s, %v", emails(byBirth), err)
		}

		if _, _, err := repo.List(ctx, repository.AccountQuery{OrderBy: []string{"password_hash"}}); err == nil {
			t.Error("List() should reject unknown ordering fields")
		}
	})
}

func mustCreate(t *testing.T, repo repository.AccountRepository, accounts ...*domain.Account) {
	t.Helper()
	for _, account := range accounts {
		if account.PasswordHash == "" {
			account.PasswordHash = "!unusable"
		}
		if _, err := repo.Create(context.Background(), account); err != nil {
			t.Fatalf("Create(%s) error = %v", account.Email, err)
		}
	}
}

func emails(accounts []domain.Account) string {
	out := ""
	for i, a := range accounts {
		if i > 0 {
			out += ","
		}
		out += a.Email
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
