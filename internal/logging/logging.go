// Package logging builds the zap loggers shared by the bizhealth binaries.
package logging

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger constructs a zap logger at the given level (default info).
// format is "console" or "json"; timestamps are ISO8601.
func NewLogger(level, format string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	switch format {
	case "", "console":
		zcfg.Encoding = "console"
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	if level == "" {
		level = "info"
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(l)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.CallerKey = "caller"
	return zcfg.Build()
}

// Fields bundles common structured fields used across the service.
type Fields struct {
	Component string
	RequestID string
	Workspace string
	ReportID  string
}

// WithFields attaches the non-empty fields to the logger.
func WithFields(logger *zap.Logger, f Fields) *zap.Logger {
	fields := make([]zap.Field, 0, 4)
	if f.Component != "" {
		fields = append(fields, zap.String("component", f.Component))
	}
	if f.RequestID != "" {
		fields = append(fields, zap.String("request_id", f.RequestID))
	}
	if f.Workspace != "" {
		fields = append(fields, zap.String("workspace", f.Workspace))
	}
	if f.ReportID != "" {
		fields = append(fields, zap.String("report_id", f.ReportID))
	}
	return logger.With(fields...)
}

// WithComponent attaches a component field.
func WithComponent(logger *zap.Logger, component string) *zap.Logger {
	return WithFields(logger, Fields{Component: component})
}

// WithRequest attaches request and workspace identifiers.
func WithRequest(logger *zap.Logger, requestID, workspace string) *zap.Logger {
	return WithFields(logger, Fields{RequestID: requestID, Workspace: workspace})
}

// kvPassword matches the password of a libpq key/value DSN, quoted or bare.
var kvPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// RedactDSN masks the password of a DSN. Both URL and key/value forms
// are handled; unparseable URLs are returned unchanged.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return kvPassword.ReplaceAllString(dsn, "${1}***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

// FieldDSN returns a zap field with a redacted DSN.
func FieldDSN(key, dsn string) zap.Field {
	return zap.String(key, RedactDSN(dsn))
}

// FieldSecret masks secret values.
func FieldSecret(key string) zap.Field {
	return zap.String(key, "***")
}
