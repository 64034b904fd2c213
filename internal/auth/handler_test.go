package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/shared"
)

type stubStore struct {
	principal *auth.Principal
}

func (s *stubStore) FindByUsername(_ context.Context, username string) (*auth.Principal, error) {
	if s.principal == nil || s.principal.Username != username {
		return nil, shared.ErrNotFound
	}
	clone := *s.principal
	return &clone, nil
}

func (s *stubStore) Save(_ context.Context, p *auth.Principal) (*auth.Principal, error) {
	clone := *p
	s.principal = &clone
	return p, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	hash, err := auth.HashSecret("s3cret")
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	store := &stubStore{principal: &auth.Principal{
		ID:           1,
		Username:     "jdoe",
		FirstName:    "Jane",
		Email:        "jdoe@example.com",
		PasswordHash: hash,
		Roles:        []auth.Role{auth.RoleUser},
		Active:       true,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec, err := auth.NewCodec("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	svc := auth.NewService(logger, store, codec, auth.DefaultLockoutPolicy())

	r := chi.NewRouter()
	auth.NewHandler(logger, svc).MountRoutes(r, auth.Middleware{Service: svc, Logger: logger})
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/authenticate", `{"username":"jdoe","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IDToken == "" {
		t.Fatal("expected a token in the response")
	}
}

func TestAuthenticateEndpointBadCredentials(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{
		`{"username":"jdoe","password":"wrong-pass"}`,
		`{"username":"nobody","password":"whatever"}`,
	} {
		rec := postJSON(t, router, "/authenticate", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401 for %s", rec.Code, body)
		}
		// The body leaks nothing about whether the account exists.
		if !strings.Contains(rec.Body.String(), "invalid credentials") {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	}
}

func TestAuthenticateEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{
		`{`,
		`{"username":"","password":"s3cret"}`,
		`{"username":"jdoe","password":"x"}`,
	} {
		rec := postJSON(t, router, "/authenticate", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400 for %s", rec.Code, body)
		}
	}
}

func TestAccountEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := postJSON(t, router, "/authenticate", `{"username":"jdoe","password":"s3cret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var login struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer "+login.IDToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var account struct {
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Username != "jdoe" || account.Email != "jdoe@example.com" {
		t.Fatalf("unexpected account %+v", account)
	}
	if len(account.Roles) != 1 || account.Roles[0] != string(auth.RoleUser) {
		t.Fatalf("unexpected roles %v", account.Roles)
	}
}

func TestAccountEndpointRejectsBadTokens(t *testing.T) {
	router := newTestRouter(t)

	for name, header := range map[string]string{
		"missing":      "",
		"not-bearer":   "Basic abc",
		"garbage":      "Bearer not-a-token",
		"wrong-secret": "Bearer eyJhbGciOiJIUzI1NiJ9.e30.x",
	} {
		req := httptest.NewRequest(http.MethodGet, "/account", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}
