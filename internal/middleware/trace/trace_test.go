package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"finey/internal/log"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !requestIDPattern.MatchString(a) {
		t.Fatalf("unexpected request id %q", a)
	}
	if a == b {
		t.Fatalf("request ids should differ: %q", a)
	}
}

func TestMiddlewarePropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, JSON: true})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.1.2.3" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
			t.Errorf("request logger not installed")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/finance/goals", nil))

	if !requestIDPattern.MatchString(seen) {
		t.Fatalf("request id in context = %q", seen)
	}
	if got := rr.Header().Get(HeaderRequestID); got != seen {
		t.Fatalf("response header %q, context %q", got, seen)
	}
	if !bytes.Contains(buf.Bytes(), []byte(seen)) {
		t.Fatalf("request id missing from logs: %s", buf.String())
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 1 || metrics.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", rw.statusCode)
	}
}

func TestMiddlewareKeepsUpstreamRequestID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		inbound string
		keep    bool
	}{
		{"req_00112233aabbccdd", true},
		{"req_XYZ", false},
		{"<script>", false},
		{"", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		if tt.inbound != "" {
			req.Header.Set(HeaderRequestID, tt.inbound)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if (seen == tt.inbound) != tt.keep {
			t.Errorf("inbound %q: got %q, keep %v", tt.inbound, seen, tt.keep)
		}
		if !requestIDPattern.MatchString(seen) {
			t.Errorf("inbound %q: malformed id %q", tt.inbound, seen)
		}
	}
}
