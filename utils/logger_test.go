package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerCriticalCarriesSeverity(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newLoggerFromCore(core).With("run", "r-1")

	l.Critical("[fetcher] batch %d timed out", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.ErrorLevel {
		t.Errorf("level: got %v, want error", e.Level)
	}
	if e.Message != "[fetcher] batch 3 timed out" {
		t.Errorf("message: got %q", e.Message)
	}
	fields := e.ContextMap()
	if fields["severity"] != "critical" {
		t.Errorf("severity: got %v, want critical", fields["severity"])
	}
	if fields["run"] != "r-1" {
		t.Errorf("run: got %v, want r-1", fields["run"])
	}
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := newLoggerFromCore(core)

	l.Debug("hidden")
	l.Info("shown %s", "info")
	l.Warn("shown warn")
	l.Error("shown error")

	if logs.Len() != 3 {
		t.Errorf("entries: got %d, want 3", logs.Len())
	}
}

func TestNewLoggerLevelFallsBack(t *testing.T) {
	l := NewLoggerLevel("not-a-level")
	if l == nil || l.sugar == nil {
		t.Fatal("expected a usable logger for unknown level")
	}
}
