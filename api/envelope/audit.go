// Package envelope - Request audit entries
package envelope

import (
	"time"

	"go.uber.org/zap"

	"housecost/internal/errors"
)

// AuditEntry records one optimization request for audit and replay
type AuditEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Catalogue   string    `json:"catalogue,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	Success     bool      `json:"success"`
	ErrorType   string    `json:"error_type,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewAuditEntry creates an audit entry for a request
func NewAuditEntry(requestID, clientIP, userAgent string) *AuditEntry {
	return &AuditEntry{
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   true,
	}
}

// MarkFailed marks the audit entry as failed
func (e *AuditEntry) MarkFailed(err error) {
	e.Success = false
	e.ErrorType = string(errors.TypeOf(err))
	e.Error = err.Error()
}

// SetDuration sets the duration
func (e *AuditEntry) SetDuration(d time.Duration) {
	e.DurationMs = d.Milliseconds()
}

// Log writes the entry to logger. The request ID is expected on the
// logger itself (see the server's request-scoped logger).
func (e *AuditEntry) Log(logger *zap.Logger) {
	fields := []zap.Field{
		zap.String("client_ip", e.ClientIP),
		zap.Int64("duration_ms", e.DurationMs),
		zap.Bool("success", e.Success),
	}
	if e.RunID != "" {
		fields = append(fields, zap.String("run_id", e.RunID))
	}
	if e.Fingerprint != "" {
		fields = append(fields, zap.String("fingerprint", e.Fingerprint))
	}
	if e.Catalogue != "" {
		fields = append(fields, zap.String("catalogue", e.Catalogue))
	}
	if !e.Success {
		fields = append(fields, zap.String("error_type", e.ErrorType), zap.String("error", e.Error))
	}
	logger.Info("audit", fields...)
}
