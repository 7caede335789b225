package log

import "finey/internal/core"

// Field names shared by every log record.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldAccounts   = "accounts"
	FieldRange      = "range"
	FieldRangeDays  = "range_days"
	FieldCached     = "cached"
	FieldFailed     = "failed_views"
	FieldJobID      = "job_id"
	FieldAccountID  = "account_id"
)

const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAnalysis = "analysis"
	ComponentStorage  = "storage"
	ComponentWorker   = "worker"
	ComponentSync     = "sync"
)

const (
	OpAnalyze = "analyze"
	OpTotals  = "totals"
	OpEnqueue = "enqueue"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAnalysis adds the request shape of an analysis call. Account ids are
// never logged, only their count.
func (f LogFields) WithAnalysis(accounts int, r core.DateRange) LogFields {
	f[FieldAccounts] = accounts
	f[FieldRange] = r.String()
	f[FieldRangeDays] = r.Days()
	return f
}

// WithSync adds bank sync job fields
func (f LogFields) WithSync(jobID, accountID string) LogFields {
	f[FieldJobID] = jobID
	f[FieldAccountID] = accountID
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
