// Package logging builds the structured loggers threaded through a
// planner.Context (SPEC_FULL.md §4.8.1): a leveled production logger for
// cmd/vhplan, and a buffered logger for tests that want to assert on
// emitted log lines without cluttering test output.
//
// Grounded on the teacher pack's go.uber.org/zap dependency; the core
// itself never logs directly; it only ever writes through the
// *zap.Logger a Context carries, keeping logging an ambient concern
// rather than something scattered across package-level calls.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Verbosity mirrors spec.md §6's -v flag: 0 is silent (warnings and
// above only), increasing levels add info then debug diagnostics.
type Verbosity int

const (
	VerbosityQuiet Verbosity = iota
	VerbosityInfo
	VerbosityDebug
	VerbosityTrace
)

func (v Verbosity) level() zapcore.Level {
	switch {
	case v >= VerbosityTrace:
		return zapcore.DebugLevel
	case v >= VerbosityDebug:
		return zapcore.DebugLevel
	case v >= VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// New builds the production logger for the given -v level: console
// encoding, no timestamps in the default case (the CLI is typically run
// once and piped, not tailed), colorized level names when attached to a
// terminal is left to the caller's encoder config choice -- kept plain
// here to stay diff-friendly in redirected output.
func New(v Verbosity) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(v.level())
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = ""
	logger, err := cfg.Build()
	if err != nil {
		// zap.NewDevelopmentConfig().Build() only fails on a malformed
		// encoder/output config, which this function never constructs.
		panic(err)
	}
	return logger
}

// NewTestLogger returns a logger at debug level writing to an
// observer core, plus the recorded-log accessor, for tests that assert
// on specific log lines (e.g. a search-limit-reached warning).
func NewTestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// NewNop returns a logger that discards everything, the Context default
// before WithLogger overrides it.
func NewNop() *zap.Logger { return zap.NewNop() }
