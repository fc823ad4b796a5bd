package parser

import "time"

// ParserOpt represents a parser configuration option
type ParserOpt func(*ParserConfig)

// TelemetryMode controls telemetry collection (production-safe)
type TelemetryMode int

const (
	TelemetryOff    TelemetryMode = iota // Zero overhead (default)
	TelemetryTiming                      // Phase timings and arena accounting
)

// DebugLevel controls debug tracing (development only)
type DebugLevel int

const (
	DebugOff   DebugLevel = iota // No debug info (default)
	DebugPaths                   // Production enter/exit tracing
)

// ParserConfig holds parser configuration
type ParserConfig struct {
	telemetry     TelemetryMode
	debug         DebugLevel
	errorCapacity int
	abortOnError  bool
}

func newConfig(opts []ParserOpt) *ParserConfig {
	config := &ParserConfig{errorCapacity: DefaultErrorCapacity}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// WithTelemetryTiming enables phase timing and arena accounting
func WithTelemetryTiming() ParserOpt {
	return func(c *ParserConfig) {
		c.telemetry = TelemetryTiming
	}
}

// WithDebugPaths enables production enter/exit tracing (development only)
func WithDebugPaths() ParserOpt {
	return func(c *ParserConfig) {
		c.debug = DebugPaths
	}
}

// WithErrorCapacity sets how many errors the log stores before counting the
// rest as dropped.
func WithErrorCapacity(n int) ParserOpt {
	return func(c *ParserConfig) {
		c.errorCapacity = n
	}
}

// WithAbortOnError stops at the first failed top-level construct instead of
// resynchronizing at the next top-level binder.
func WithAbortOnError() ParserOpt {
	return func(c *ParserConfig) {
		c.abortOnError = true
	}
}

// ParseTelemetry holds parse performance metrics
type ParseTelemetry struct {
	TokenCount  int
	NodeCount   int
	ParamCount  int
	TypeCount   int
	ErrorCount  int
	LexTime     time.Duration // set by ParseSource
	ParseTime   time.Duration
	CompactTime time.Duration
	TotalTime   time.Duration

	ProvisionalBytes int // provisional node, param and type arrays
	FinalBytes       int // compacted arrays
	ReclaimedBytes   int // zero-filled by the final reclaim
}

// DebugEvent holds debug tracing information (development only)
type DebugEvent struct {
	Timestamp time.Time
	Event     string // "enter_procDef", "error", "exit_compact"
	TokenPos  int    // Current token index
	Context   string
}
