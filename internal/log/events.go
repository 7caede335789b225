package log

import (
	"context"
	"log/slog"
	"net/http"

	"finey/internal/core"
)

// StructuredLogger emits the service's well-known events with a fixed field
// set, so dashboards can rely on their shape.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.Header.Get("User-Agent")).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.WithComponent(ComponentHTTP).log(ctx, level, "HTTP request completed", fields.ToSlice())
}

// LogAnalysisCompleted logs a finished analysis request. Failed views are
// listed by name; their errors were logged where they happened.
func (sl *StructuredLogger) LogAnalysisCompleted(ctx context.Context, op string, accounts int, r core.DateRange, cached bool, failed []string) {
	fields := NewFields().
		WithAnalysis(accounts, r).
		WithOperation(op)
	fields[FieldCached] = cached

	logger := sl.logger.WithComponent(ComponentAnalysis)
	if len(failed) > 0 {
		fields[FieldFailed] = failed
		logger.WarnContext(ctx, "Analysis completed with failed views", fields.ToSlice()...)
		return
	}
	logger.InfoContext(ctx, "Analysis completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogSyncQueued(ctx context.Context, jobID, accountID string, r core.DateRange) {
	fields := NewFields().
		WithSync(jobID, accountID).
		WithOperation(OpEnqueue)
	fields[FieldRange] = r.String()

	sl.logger.WithComponent(ComponentSync).InfoContext(ctx, "Bank sync queued", fields.ToSlice()...)
}

// LogError logs err under the given component and operation. fields may be
// nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation)

	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}
