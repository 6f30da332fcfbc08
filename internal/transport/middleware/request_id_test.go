package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/satstream-ledger/pkg/ctxutil"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{name: "uuid is reused", incoming: "0b6f1c9e-6c1a-4d1e-9d8e-2f4b1d2c3a4b", reuse: true},
		{name: "trace style id is reused", incoming: "ops.live:7_a", reuse: true},
		{name: "missing id is generated", incoming: ""},
		{name: "spaces are rejected", incoming: "drop table streams"},
		{name: "newline is rejected", incoming: "abc\nlevel=ERROR"},
		{name: "overlong id is rejected", incoming: strings.Repeat("a", maxRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inCtx string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inCtx = ctxutil.RequestIDFromCtx(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			if tt.incoming != "" {
				req.Header[RequestIDHeader] = []string{tt.incoming}
			}
			rec := httptest.NewRecorder()
			RequestID()(handler).ServeHTTP(rec, req)

			echoed := rec.Header().Get(RequestIDHeader)
			if echoed != inCtx {
				t.Errorf("header %q differs from context %q", echoed, inCtx)
			}
			if tt.reuse {
				if inCtx != tt.incoming {
					t.Errorf("request id = %q, want %q", inCtx, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(inCtx); err != nil {
				t.Errorf("expected a generated UUID, got %q: %v", inCtx, err)
			}
		})
	}
}
