package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func tag(name string, seen *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*seen = append(*seen, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChain_OuterFirst(t *testing.T) {
	var seen []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "handler")
	})

	Chain(tag("request_id", &seen), tag("logger", &seen))(handler).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/live", nil))

	want := "request_id,logger,handler"
	if got := strings.Join(seen, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestChain_NoMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Chain()(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestOps_PanicIsLoggedWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("store handle is nil")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "ops-42")
	rec := httptest.NewRecorder()
	Ops(logger, "/live")(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "ops-42" {
		t.Errorf("%s = %q, want ops-42", RequestIDHeader, got)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.RequestID != "ops-42" {
		t.Errorf("body request_id = %q", body.RequestID)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"msg":"panic recovered"`) {
		t.Errorf("missing panic log: %s", logs)
	}
	// the access log sits outside recovery and sees the 500
	if !strings.Contains(logs, `"msg":"http.request"`) || !strings.Contains(logs, `"status":500`) {
		t.Errorf("missing access log with status 500: %s", logs)
	}
	if strings.Count(logs, `"request_id":"ops-42"`) != 2 {
		t.Errorf("expected both lines to carry the request id: %s", logs)
	}
}

func TestOps_QuietHealthCheck(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Ops(logger, "/live", "/ready")(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}
	if buf.Len() != 0 {
		t.Errorf("health check logged at info: %s", buf.String())
	}
}
