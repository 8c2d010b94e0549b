package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/jainyogya07/monolith/pkg/config"
)

func TestNewRespectsLevel(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewConsoleFormat(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "DEBUG", Format: "console"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New(config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected format error")
	}
}
