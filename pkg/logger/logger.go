package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger that can also fold errors into a LogCollector.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}
	return newWithWriter(out, level), nil
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Frames between zerolog and the code that logged: emit, then Info/Error/...
const callerSkip = 4

func newWithWriter(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).Level(level).With().
		Timestamp().
		CallerWithSkipFrameCount(callerSkip).
		Str("service", "chartsignal").
		Logger()
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l *Logger) emit(level zerolog.Level, msg string, fields []Field) {
	ev := l.zl.WithLevel(level)
	for _, f := range fields {
		f.apply(ev)
	}
	ev.Msg(msg)

	c := l.collector
	if c == nil {
		return
	}
	if level == zerolog.ErrorLevel || (level == zerolog.WarnLevel && c.config.IncludeWarnings) {
		c.AddLog(level.String(), msg, fieldMap(fields), callerOf(3))
	}
}

// callerOf returns file:line relative to the module root.
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	if i := strings.LastIndex(file, "ChartSignal/"); i >= 0 {
		file = file[i+len("ChartSignal/"):]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// AddCollector starts aggregating error logs into config.Topic.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value on a log line.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) apply(ev *zerolog.Event) {
	switch v := f.Value.(type) {
	case nil:
	case string:
		ev.Str(f.Key, v)
	case int:
		ev.Int(f.Key, v)
	case int64:
		ev.Int64(f.Key, v)
	case float64:
		ev.Float64(f.Key, v)
	case bool:
		ev.Bool(f.Key, v)
	case error:
		ev.AnErr(f.Key, v)
	default:
		ev.Interface(f.Key, v)
	}
}

// plain is the value as the collector stores it; errors become their text.
func (f Field) plain() interface{} {
	if err, ok := f.Value.(error); ok {
		return err.Error()
	}
	return f.Value
}

func fieldMap(fields []Field) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.plain()
	}
	return m
}

func String(key, value string) Field          { return Field{key, value} }
func Int(key string, value int) Field         { return Field{key, value} }
func Int64(key string, value int64) Field     { return Field{key, value} }
func Float64(key string, value float64) Field { return Field{key, value} }
func Bool(key string, value bool) Field       { return Field{key, value} }
func Any(key string, value interface{}) Field { return Field{key, value} }

// Strings joins values with ", " so the line stays greppable.
func Strings(key string, values []string) Field { return Field{key, strings.Join(values, ", ")} }

// Duration is logged in milliseconds.
func Duration(key string, d time.Duration) Field { return Field{key, d.Milliseconds()} }

// Error logs err under "error". A nil err adds nothing.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{"error", err}
}
