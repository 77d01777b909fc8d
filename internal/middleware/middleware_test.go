package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"canvasdesk/internal/domain"
	"canvasdesk/internal/domain/models"
	"canvasdesk/internal/httputil"
)

type stubVerifier struct {
	tokens map[string]string // token -> owner id
}

func (s stubVerifier) VerifyToken(token string) (*models.OwnerClaims, error) {
	owner, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	claims := &models.OwnerClaims{}
	claims.Subject = owner
	return claims, nil
}

func (stubVerifier) Close() error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// echoOwner writes the owner id the request carries.
var echoOwner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, httputil.GetOwnerID(r))
})

func TestOptionalAuth(t *testing.T) {
	verifier := stubVerifier{tokens: map[string]string{"good": "user-1"}}

	tests := []struct {
		name       string
		verifier   bool
		header     string
		query      string
		wantStatus int
		wantOwner  string
	}{
		{"no token is anonymous", true, "", "", http.StatusOK, ""},
		{"bearer header", true, "Bearer good", "", http.StatusOK, "user-1"},
		{"lowercase scheme", true, "bearer good", "", http.StatusOK, "user-1"},
		{"query parameter", true, "", "good", http.StatusOK, "user-1"},
		{"invalid token", true, "Bearer bad", "", http.StatusUnauthorized, ""},
		{"non-bearer header ignored", true, "Basic Zm9vOmJhcg==", "", http.StatusOK, ""},
		{"no verifier", false, "Bearer good", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Handler
			if tt.verifier {
				h = OptionalAuth(verifier, discard())(echoOwner)
			} else {
				h = OptionalAuth(nil, discard())(echoOwner)
			}

			target := "/api/workspace"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != tt.wantOwner {
				t.Errorf("owner = %q, want %q", rec.Body.String(), tt.wantOwner)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspace", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want problem+json", ct)
	}
	if !strings.Contains(logs.String(), "panic recovered") {
		t.Errorf("panic not logged: %s", logs.String())
	}
}

func TestRecoveryRepanicsOnAbort(t *testing.T) {
	h := Recovery(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Error("ErrAbortHandler was swallowed")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRequestLoggerKeepsStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/folders/f1", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if !strings.Contains(logs.String(), `"status":418`) {
		t.Errorf("status not logged: %s", logs.String())
	}
}
