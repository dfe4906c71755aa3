package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"account-console/internal/admin"
	"account-console/internal/exporter"
	"account-console/internal/password"
	"account-console/internal/repository/memory"
	"account-console/internal/service"
	"account-console/internal/storage"
)

const testSecret = "test-secret"

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	// started makes the next upload signal and then hang until cancelled.
	started chan struct{}
}

func (m *memoryStorage) UploadObject(ctx context.Context, body io.Reader, opts storage.UploadOptions) (string, error) {
	if m.started != nil {
		close(m.started)
		<-ctx.Done()
		return "", ctx.Err()
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[opts.Key] = data
	return fmt.Sprintf("s3://%s/%s", opts.Bucket, opts.Key), nil
}

func (m *memoryStorage) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (m *memoryStorage) GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return "https://download.test/" + bucket + "/" + key, nil
}

type testServer struct {
	router   *gin.Engine
	accounts service.AccountService
	store    *memoryStorage
}

func newTestServer(t *testing.T, withExports bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := memory.NewAccountRepository()
	hasher := password.NewRegistry(password.NewBcrypt(bcrypt.MinCost))
	accounts := service.NewAccountService(repo, hasher, logger)
	accountAdmin := admin.NewAccountAdmin(repo, hasher)
	site := admin.NewSite()
	if err := admin.Setup(site, accountAdmin); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	opts := Options{
		Accounts:  accounts,
		Admin:     accountAdmin,
		Site:      site,
		JWTSecret: testSecret,
		TokenTTL:  time.Minute,
		Logger:    logger,
	}
	var store *memoryStorage
	if withExports {
		store = &memoryStorage{}
		exports := service.NewExportService(memory.NewExportRepository())
		manager := exporter.NewManager(exporter.Config{Bucket: "exports", KeyPrefix: "account-exports", Logger: logger},
			exports, repo, accountAdmin, store)
		if err := manager.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		t.Cleanup(manager.Shutdown)
		opts.Exports, opts.Exporter, opts.Storage = exports, manager, store
	}

	router := gin.New()
	NewHandler(opts).RegisterRoutes(router)

	ctx := context.Background()
	birth := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := accounts.CreateAdministrator(ctx, "root@example.com", birth, "rootpw"); err != nil {
		t.Fatalf("CreateAdministrator() error = %v", err)
	}
	if _, err := accounts.CreateUser(ctx, "user@example.com", birth, "userpw"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return &testServer{router: router, accounts: accounts, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, pw string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": pw})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	if rec := s.do(t, http.MethodGet, "/api/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name       string
		body       gin.H
		wantStatus int
	}{
		{name: "valid", body: gin.H{"email": "USER@example.com", "password": "userpw"}, wantStatus: http.StatusOK},
		{name: "wrong password", body: gin.H{"email": "user@example.com", "password": "wrong"}, wantStatus: http.StatusUnauthorized},
		{name: "unknown email", body: gin.H{"email": "nobody@example.com", "password": "x"}, wantStatus: http.StatusUnauthorized},
		{name: "missing password", body: gin.H{"email": "user@example.com"}, wantStatus: http.StatusBadRequest},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/auth/login", "", test.body)
			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, test.wantStatus, rec.Body.String())
			}
			if rec.Code == http.StatusOK {
				resp := decode[loginResponse](t, rec)
				claims, err := ParseToken(resp.Token, testSecret)
				if err != nil || claims.AccountID != resp.Account.ID || claims.Admin {
					t.Errorf("claims = %+v, err = %v", claims, err)
				}
			}
		})
	}
}

func TestConsoleRequiresStaff(t *testing.T) {
	s := newTestServer(t, false)
	userToken := s.login(t, "user@example.com", "userpw")
	forged, _, _ := GenerateToken(1, true, "other-secret", time.Minute)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{name: "no token", token: "", wantStatus: http.StatusUnauthorized},
		{name: "bad signature", token: forged, wantStatus: http.StatusUnauthorized},
		{name: "non staff", token: userToken, wantStatus: http.StatusForbidden},
		{name: "staff", token: s.login(t, "root@example.com", "rootpw"), wantStatus: http.StatusOK},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if rec := s.do(t, http.MethodGet, "/admin/accounts", test.token, nil); rec.Code != test.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, test.wantStatus)
			}
		})
	}
}

func TestConsoleIndexAndChangelist(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, "root@example.com", "rootpw")

	index := decode[struct {
		Models []admin.ModelEntry `json:"models"`
	}](t, s.do(t, http.MethodGet, "/admin/", token, nil))
	if len(index.Models) != 1 || index.Models[0].Name != admin.AccountModel {
		t.Errorf("index = %+v", index)
	}

	cl := decode[admin.Changelist](t, s.do(t, http.MethodGet, "/admin/accounts?is_admin=true", token, nil))
	if cl.Total != 1 || cl.Rows[0].Values[0] != "root@example.com" {
		t.Errorf("changelist = %+v", cl)
	}

	last := decode[admin.Changelist](t, s.do(t, http.MethodGet, "/admin/accounts?page=9223372036854775807", token, nil))
	if last.Page != 1 || last.NumPages != 1 || len(last.Rows) != 2 {
		t.Errorf("huge page changelist = %+v", last)
	}

	if rec := s.do(t, http.MethodGet, "/admin/accounts?is_admin=maybe", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d", rec.Code)
	}

	add := decode[admin.Detail](t, s.do(t, http.MethodGet, "/admin/accounts/add", token, nil))
	if len(add.Fieldsets) != 1 || len(add.Fieldsets[0].Fields) != 4 {
		t.Errorf("add view = %+v", add)
	}
}

func TestCreateAccount(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, "root@example.com", "rootpw")

	tests := []struct {
		name       string
		body       gin.H
		wantStatus int
		wantField  string
	}{
		{
			name:       "created",
			body:       gin.H{"email": "New@Example.com", "birthdate": "2000-01-01", "password1": "pw", "password2": "pw"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "password mismatch",
			body:       gin.H{"email": "other@example.com", "birthdate": "2000-01-01", "password1": "pw", "password2": "nope"},
			wantStatus: http.StatusBadRequest,
			wantField:  "password2",
		},
		{
			name:       "password over 72 bytes",
			body:       gin.H{"email": "long@example.com", "birthdate": "2000-01-01", "password1": strings.Repeat("a", 73), "password2": strings.Repeat("a", 73)},
			wantStatus: http.StatusBadRequest,
			wantField:  "password1",
		},
		{
			name:       "email taken",
			body:       gin.H{"email": "user@example.com", "birthdate": "2000-01-01", "password1": "pw", "password2": "pw"},
			wantStatus: http.StatusBadRequest,
			wantField:  "email",
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/admin/accounts", token, test.body)
			if rec.Code != test.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, test.wantStatus, rec.Body.String())
			}
			if test.wantField != "" {
				resp := decode[struct {
					Errors map[string][]string `json:"errors"`
				}](t, rec)
				if len(resp.Errors[test.wantField]) == 0 {
					t.Errorf("errors = %v, want %s", resp.Errors, test.wantField)
				}
			}
		})
	}

	if _, err := s.accounts.Authenticate(context.Background(), "new@example.com", "pw"); err != nil {
		t.Errorf("created account cannot authenticate: %v", err)
	}
}

func TestUpdateAccountKeepsPassword(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, "root@example.com", "rootpw")
	user, err := s.accounts.GetByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	path := fmt.Sprintf("/admin/accounts/%d", user.ID)

	rec := s.do(t, http.MethodPut, path, token, gin.H{
		"email":     "user@example.com",
		"birthdate": "1970-07-07",
		"password":  "hijacked",
		"is_admin":  true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[AccountResponse](t, rec); !resp.IsAdmin || resp.Birthdate != "1970-07-07" {
		t.Errorf("response = %+v", resp)
	}

	if _, err := s.accounts.Authenticate(context.Background(), "user@example.com", "userpw"); err != nil {
		t.Errorf("original password should still work: %v", err)
	}
	if _, err := s.accounts.Authenticate(context.Background(), "user@example.com", "hijacked"); err == nil {
		t.Error("submitted password must not be applied")
	}

	detail := decode[admin.Detail](t, s.do(t, http.MethodGet, path, token, nil))
	if strings.Contains(fmt.Sprint(detail), "hijacked") || detail.Fieldsets[0].Fields[1].Name != "password" {
		t.Errorf("detail = %+v", detail)
	}

	if rec := s.do(t, http.MethodGet, "/admin/accounts/999", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing account status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/admin/accounts/abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestSetPassword(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, "root@example.com", "rootpw")
	user, _ := s.accounts.GetByEmail(context.Background(), "user@example.com")
	path := fmt.Sprintf("/admin/accounts/%d/password", user.ID)

	if rec := s.do(t, http.MethodPost, path, token, gin.H{"password1": "a", "password2": "b"}); rec.Code != http.StatusBadRequest {
		t.Errorf("mismatch status = %d", rec.Code)
	}
	long := strings.Repeat("a", 73)
	if rec := s.do(t, http.MethodPost, path, token, gin.H{"password1": long, "password2": long}); rec.Code != http.StatusBadRequest {
		t.Errorf("long password status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, path, token, gin.H{"password1": "fresh", "password2": "fresh"}); rec.Code != http.StatusOK {
		t.Fatalf("set password status = %d, body = %s", rec.Code, rec.Body.String())
	}
	s.login(t, "user@example.com", "fresh")
}

func TestExports(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, "root@example.com", "rootpw")

	rec := s.do(t, http.MethodPost, "/admin/accounts/export", token, gin.H{"q": "example.com"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("export status = %d, body = %s", rec.Code, rec.Body.String())
	}
	job := decode[ExportResponse](t, rec)

	var got ExportResponse
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got = decode[ExportResponse](t, s.do(t, http.MethodGet, "/admin/exports/"+job.ID, token, nil))
		if got.Status != "pending" && got.Status != "running" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got.Status != "completed" || got.Rows != 2 {
		t.Fatalf("export = %+v", got)
	}
	if want := "https://download.test/exports/account-exports/" + job.ID + ".csv"; got.DownloadURL != want {
		t.Errorf("DownloadURL = %q, want %q", got.DownloadURL, want)
	}

	list := decode[[]ExportResponse](t, s.do(t, http.MethodGet, "/admin/exports", token, nil))
	if len(list) != 1 || list[0].RequestedBy == 0 {
		t.Errorf("exports = %+v", list)
	}
}

func TestExportsDisabled(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, "root@example.com", "rootpw")

	if rec := s.do(t, http.MethodPost, "/admin/accounts/export", token, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCancelExport(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, "root@example.com", "rootpw")
	s.store.started = make(chan struct{})

	job := decode[ExportResponse](t, s.do(t, http.MethodPost, "/admin/accounts/export", token, nil))
	select {
	case <-s.store.started:
	case <-time.After(3 * time.Second):
		t.Fatal("export upload never started")
	}

	rec := s.do(t, http.MethodDelete, "/admin/exports/"+job.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[ExportResponse](t, rec); got.Status != "cancelled" {
		t.Errorf("export = %+v", got)
	}

	if rec := s.do(t, http.MethodDelete, "/admin/exports/"+job.ID, token, nil); rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodDelete, "/admin/exports/missing", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing export status = %d", rec.Code)
	}
	userToken := s.login(t, "user@example.com", "userpw")
	if rec := s.do(t, http.MethodDelete, "/admin/exports/"+job.ID, userToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("non staff status = %d", rec.Code)
	}
}
