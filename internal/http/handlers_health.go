package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"finey/internal/log"
)

const readyTimeout = 2 * time.Second

type appMetrics struct {
	started       time.Time
	analyses      atomic.Int64
	cachedReports atomic.Int64
	rateLimits    atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

func (m *appMetrics) analysis(cached bool) {
	m.analyses.Add(1)
	if cached {
		m.cachedReports.Add(1)
	}
}

func (m *appMetrics) rateLimited() { m.rateLimits.Add(1) }

type healthPayload struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, healthPayload{
		Status: "ok",
		Uptime: time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady pings the store. Ping errors stay in the logs.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.events.LogError(ctx, "Readiness check failed", err, log.ComponentStorage, "ping", log.NewFields())
			NewResponse().
				Status(http.StatusServiceUnavailable, StatusUnavailable).
				Data(healthPayload{Status: "unavailable", Error: "store unreachable"}).
				Write(r.Context(), w)
			return
		}
	}
	writeData(w, r, http.StatusOK, healthPayload{Status: "ready"})
}

type metricsPayload struct {
	UptimeSeconds      int64  `json:"uptimeSeconds"`
	Requests           int64  `json:"requests"`
	ServerErrors       int64  `json:"serverErrors"`
	LastLatencyMs      int64  `json:"lastLatencyMs"`
	Analyses           int64  `json:"analyses"`
	CachedReports      int64  `json:"cachedReports"`
	ReportCacheSize    int    `json:"reportCacheSize"`
	ReportCacheHits    uint64 `json:"reportCacheHits"`
	ReportCacheMisses  uint64 `json:"reportCacheMisses"`
	RateLimited        int64  `json:"rateLimited"`
	RateLimitClients   int    `json:"rateLimitClients"`
	SuspiciousRequests int64  `json:"suspiciousRequests"`
	InvalidClientIPs   int64  `json:"invalidClientIps"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(r.Context(), w)
		return
	}

	tm := s.tracer.GetMetrics()
	dm := s.detector.GetMetrics()
	hits, misses := s.reportCache.Stats()

	writeData(w, r, http.StatusOK, metricsPayload{
		UptimeSeconds:      int64(time.Since(s.metrics.started).Seconds()),
		Requests:           tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		LastLatencyMs:      tm.LastLatencyMs,
		Analyses:           s.metrics.analyses.Load(),
		CachedReports:      s.metrics.cachedReports.Load(),
		ReportCacheSize:    s.reportCache.Size(),
		ReportCacheHits:    hits,
		ReportCacheMisses:  misses,
		RateLimited:        s.metrics.rateLimits.Load(),
		RateLimitClients:   s.rateLimiter.ActiveClients(),
		SuspiciousRequests: dm.SuspiciousRequests,
		InvalidClientIPs:   dm.InvalidIPAttempts,
	})
}
