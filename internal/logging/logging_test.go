package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewTestLogger_RecordsLines(t *testing.T) {
	logger, logs := NewTestLogger()
	logger.Info("plan expanded", zap.Int("steps", 2))
	logger.Warn("search limit reached")

	if got := logs.Len(); got != 2 {
		t.Fatalf("recorded %d log lines, want 2", got)
	}
	entries := logs.TakeAll()
	if entries[0].Message != "plan expanded" {
		t.Errorf("entries[0].Message = %q, want %q", entries[0].Message, "plan expanded")
	}
	if entries[1].Message != "search limit reached" {
		t.Errorf("entries[1].Message = %q, want %q", entries[1].Message, "search limit reached")
	}
}

func TestVerbosity_Level(t *testing.T) {
	cases := []struct {
		v    Verbosity
		want string
	}{
		{VerbosityQuiet, "warn"},
		{VerbosityInfo, "info"},
		{VerbosityDebug, "debug"},
	}
	for _, c := range cases {
		if got := c.v.level().String(); got != c.want {
			t.Errorf("Verbosity(%d).level() = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	l := NewNop()
	l.Info("should not panic or print")
}
