package contracts

import "time"

// LogLevel represents the severity level for logging.
// The values line up with zapcore levels so that the zero value is InfoLevel.
type LogLevel int8

const (
	// DebugLevel indicates verbose messages, including per-cycle timing decisions.
	DebugLevel LogLevel = iota - 1
	// InfoLevel indicates informational messages about state transitions.
	InfoLevel
	// WarnLevel indicates recoverable problems, such as a listener missing the stop grace period.
	WarnLevel
	// ErrorLevel indicates failures reported to a caller or absorbed on the real-time path.
	ErrorLevel
	// FatalLevel indicates errors after which the process exits.
	FatalLevel
)

// LogDestination specifies where the log messages should be directed.
type LogDestination string

const (
	// ConsoleLog directs log messages to standard error.
	ConsoleLog LogDestination = "console"
	// FileLog directs log messages to a file.
	FileLog LogDestination = "file"
)

// Field builds a structured log field.
type Field interface {
	Bool(key string, val bool) Field
	Int(key string, val int) Field
	Float64(key string, val float64) Field
	String(key string, val string) Field
	Time(key string, val time.Time) Field
	Duration(key string, val time.Duration) Field
	Int64(key string, val int64) Field
	Error(key string, val error) Field
	Uint64(key string, val uint64) Field
	Uint8(key string, val uint8) Field
}

// Logger provides leveled, structured logging.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Field() Field

	SetLevel(level LogLevel)
	SetDestination(dest LogDestination, filePath ...string)
}
