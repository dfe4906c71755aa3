package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"account-console/internal/password"
	"account-console/internal/repository/memory"
	"account-console/internal/service"
	"account-console/internal/storage"
)

type listOnlyStorage struct {
	objects []storage.ObjectInfo
	prefix  string
}

func (l *listOnlyStorage) UploadObject(ctx context.Context, body io.Reader, opts storage.UploadOptions) (string, error) {
	return "", nil
}

func (l *listOnlyStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	l.prefix = prefix
	return l.objects, nil
}

func (l *listOnlyStorage) GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "", nil
}

func newTestApp() *app {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hasher := password.NewRegistry(password.NewBcrypt(bcrypt.MinCost))
	return &app{
		accounts:  service.NewAccountService(memory.NewAccountRepository(), hasher, logger),
		bucket:    "exports",
		keyPrefix: "account-exports",
	}
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	open := func(ctx context.Context) (*app, func(), error) { return a, func() {}, nil }
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreateCommands(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantOut   string
		wantAdmin bool
	}{
		{
			name:    "createuser without password",
			args:    []string{"createuser", "--email", "Someone@Example.com", "--birthdate", "1999-09-09"},
			wantOut: "no password set",
		},
		{
			name:      "createadmin",
			args:      []string{"createadmin", "--email", "root@example.com", "--birthdate", "1980-01-01", "--password", "pw"},
			wantOut:   "created administrator root@example.com",
			wantAdmin: true,
		},
		{
			name:    "createadmin requires password",
			args:    []string{"createadmin", "--email", "root@example.com", "--birthdate", "1980-01-01"},
			wantErr: true,
		},
		{
			name:    "bad birthdate",
			args:    []string{"createuser", "--email", "x@example.com", "--birthdate", "09/09/1999"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			a := newTestApp()

			out, err := run(t, a, test.args...)

			if (err != nil) != test.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, test.wantErr)
			}
			if !strings.Contains(out, test.wantOut) {
				t.Errorf("output = %q, want %q", out, test.wantOut)
			}
			if test.wantAdmin {
				account, err := a.accounts.Authenticate(context.Background(), "root@example.com", "pw")
				if err != nil || !account.IsStaff() {
					t.Errorf("administrator = %+v, %v", account, err)
				}
			}
		})
	}
}

func TestSetPasswordCommand(t *testing.T) {
	a := newTestApp()
	if _, err := run(t, a, "createuser", "--email", "u@example.com", "--birthdate", "2000-01-01"); err != nil {
		t.Fatalf("createuser: %v", err)
	}

	if _, err := run(t, a, "setpassword", "--email", "U@example.com", "--password", "fresh"); err != nil {
		t.Fatalf("setpassword: %v", err)
	}
	if _, err := a.accounts.Authenticate(context.Background(), "u@example.com", "fresh"); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}

	if _, err := run(t, a, "setpassword", "--email", "missing@example.com", "--password", "x"); err == nil {
		t.Error("setpassword for unknown email should fail")
	}
}

func TestExportsCommand(t *testing.T) {
	a := newTestApp()
	if _, err := run(t, a, "exports"); err == nil {
		t.Error("exports without storage should fail")
	}

	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &listOnlyStorage{objects: []storage.ObjectInfo{{Key: "account-exports/a.csv", Size: 42, LastModified: &modified}}}
	a.storage = store

	out, err := run(t, a, "exports")
	if err != nil {
		t.Fatalf("exports: %v", err)
	}
	if store.prefix != "account-exports/" {
		t.Errorf("prefix = %q", store.prefix)
	}
	if !strings.Contains(out, "account-exports/a.csv") || !strings.Contains(out, "2026-03-01T12:00:00Z") {
		t.Errorf("output = %q", out)
	}
}
