// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production. When
// diagnosticsPath is set, Warn and above are also appended to that file as
// "[RFC3339] message" lines; the returned Closer releases it.
func New(development bool, diagnosticsPath string) (*zap.Logger, io.Closer, error) {
	logger, err := build(development)
	if err != nil {
		return nil, nil, err
	}
	if diagnosticsPath == "" {
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(diagnosticsPath), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create diagnostics dir: %w", err)
	}
	// #nosec G304 -- the diagnostics path comes from operator configuration.
	f, err := os.OpenFile(diagnosticsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open diagnostics log: %w", err)
	}
	diag := NewDiagnosticsCore(zapcore.AddSync(f))
	logger = logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, diag)
	}))
	return logger, f, nil
}

func build(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// NewDiagnosticsCore returns a core that writes Warn+ entries to w as
// "[2006-01-02T15:04:05Z07:00] message {fields}".
func NewDiagnosticsCore(w zapcore.WriteSyncer) zapcore.Core {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
		EncodeTime: func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString("[" + t.UTC().Format(time.RFC3339) + "]")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	return zapcore.NewCore(enc, w, zapcore.WarnLevel)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
