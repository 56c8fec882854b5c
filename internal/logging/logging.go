// Package logging provides the structured logger used across the storefront layer.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey carries the trace id of the current logical operation.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey carries the storefront user id, when known.
	UserIDKey contextKey = "user_id"
	// TenantKey carries the tenant code, when known.
	TenantKey contextKey = "tenant"
)

// Logger wraps a logrus logger bound to one service name.
type Logger struct {
	*logrus.Logger
	service string
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// New creates a logger writing to stdout.
// level is a logrus level name; format is "json" or "text".
func New(service, level, format string) *Logger {
	return NewWithOutput(service, level, format, os.Stdout)
}

// NewWithOutput creates a logger writing to w.
func NewWithOutput(service, level, format string, w io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{Logger: l, service: service}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithOutput("discard", "panic", "json", io.Discard)
}

// Default returns a process-wide fallback logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New("storefront", "info", "json")
	})
	return defaultLogger
}

// Service returns the service name the logger was created for.
func (l *Logger) Service() string {
	return l.service
}

// WithContext returns an entry annotated with the service name and any
// trace, user or tenant ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if ctx == nil {
		return entry
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	if tenant, ok := ctx.Value(TenantKey).(string); ok && tenant != "" {
		entry = entry.WithField("tenant", tenant)
	}
	return entry.WithContext(ctx)
}

// LogSecurityEvent records an authentication related event at warn level.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).WithField("security_event", event).Warn("security event")
}

// NewTraceID generates a new trace id.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores a trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores a user id in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the user id stored in ctx, or "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTenant stores a tenant code in the context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}
