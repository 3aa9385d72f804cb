package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or the slog default tagged
// as component "unknown" when none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

func attach(next http.Handler, enrich func(*http.Request) *Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), enrich(r))))
	})
}

// Middleware puts logger into every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return attach(next, func(*http.Request) *Logger { return logger })
	}
}

// RequestIDMiddleware tags the request logger with the id returned by
// extractRequestID. It must run after Middleware.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return attach(next, func(r *http.Request) *Logger {
			return FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
		})
	}
}

// StructuredLogger emits the recurring log events with a fixed field layout.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithClientIP(clientIP)
	sl.logger.DebugContext(ctx, "HTTP request started", f.ToSlice()...)
}

// LogHTTPEnd logs at info, warn or error depending on the status class.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	f := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	sl.logger.log(ctx, statusLevel(statusCode), "HTTP request completed", f.ToSlice())
}

func (sl *StructuredLogger) LogInstanceSynced(ctx context.Context, instanceID, templateID int64, year, month int, ref string) {
	f := NewFields().WithInstance(instanceID, templateID, year, month).WithOperation(OpSync)
	sl.logger.InfoContext(ctx, "Transaction mirrored successfully", append(f.ToSlice(), FieldSheetsRef, ref)...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
