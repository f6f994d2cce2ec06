package settingsgateway

import (
	"context"
	"log/slog"
	"testing"
)

func TestConfigureLoggingLevelFromEnv(t *testing.T) {
	t.Setenv("SG_LOG_LEVEL", "DEBUG")
	ConfigureLogging()
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("expected debug logging to be enabled")
	}

	t.Setenv("SG_LOG_LEVEL", "ERROR")
	ConfigureLogging()
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("expected warn logging to be disabled at ERROR level")
	}

	SetLogLevel(slog.LevelInfo)
	if !slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("expected info logging after SetLogLevel")
	}
}
