// Package logger provides leveled, component-scoped logging for the service.
// Components can be toggled individually so chatty subsystems (cipher,
// client) stay quiet unless they are being debugged.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level.
type Level int

const (
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	TRACE: "TRACE",
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Component identifies the subsystem a log entry belongs to.
type Component string

const (
	ComponentApp       Component = "app"
	ComponentAPI       Component = "api"
	ComponentProxy     Component = "proxy"
	ComponentExtractor Component = "extractor"
	ComponentCipher    Component = "cipher"
	ComponentClient    Component = "client"
	ComponentRateLimit Component = "ratelimit"
)

// Format selects the log output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config holds logger configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	Components map[Component]bool
	Timestamp  bool
}

// DefaultConfig enables the service-level components at INFO, leaving the
// noisy extraction internals off.
func DefaultConfig() *Config {
	return &Config{
		Level:  INFO,
		Format: FormatText,
		Output: os.Stdout,
		Components: map[Component]bool{
			ComponentApp:       true,
			ComponentAPI:       true,
			ComponentProxy:     true,
			ComponentExtractor: true,
			ComponentCipher:    false,
			ComponentClient:    false,
			ComponentRateLimit: true,
		},
		Timestamp: true,
	}
}

// Entry is a single log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component Component      `json:"component"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes entries according to its Config.
type Logger struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a Logger; a nil config uses DefaultConfig.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Logger{config: config}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
}

// SetFormat changes the output encoding at runtime.
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Format = format
}

// ParseLevel maps a level name to its Level, defaulting to INFO.
func ParseLevel(name string) Level {
	for level, n := range levelNames {
		if strings.EqualFold(name, n) {
			return level
		}
	}
	return INFO
}

// ParseFormat maps a format name to its Format, defaulting to text.
func ParseFormat(name string) Format {
	if strings.EqualFold(name, "json") {
		return FormatJSON
	}
	return FormatText
}

// EnableComponent toggles a single component.
func (l *Logger) EnableComponent(c Component, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Components[c] = enabled
}

// WithComponent returns a ComponentLogger bound to c.
func (l *Logger) WithComponent(c Component) *ComponentLogger {
	return &ComponentLogger{logger: l, component: c}
}

func (l *Logger) log(level Level, c Component, msg string, fields map[string]any) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.config.Level {
		return
	}
	if enabled, ok := l.config.Components[c]; ok && !enabled {
		return
	}

	entry := Entry{
		Timestamp: time.Now(),
		Level:     levelNames[level],
		Component: c,
		Message:   msg,
		Fields:    fields,
	}

	switch l.config.Format {
	case FormatJSON:
		if b, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.config.Output, string(b))
		}
	default:
		prefix := ""
		if l.config.Timestamp {
			prefix = entry.Timestamp.Format("2006-01-02 15:04:05 ")
		}
		line := fmt.Sprintf("%s[%s] %s: %s", prefix, entry.Level, c, msg)
		for k, v := range fields {
			line += fmt.Sprintf(" %s=%v", k, v)
		}
		fmt.Fprintln(l.config.Output, line)
	}
}

// ComponentLogger is a Logger scoped to one component.
type ComponentLogger struct {
	logger    *Logger
	component Component
}

func (c *ComponentLogger) Trace(msg string, args ...any) { c.emit(TRACE, msg, args...) }
func (c *ComponentLogger) Debug(msg string, args ...any) { c.emit(DEBUG, msg, args...) }
func (c *ComponentLogger) Info(msg string, args ...any)  { c.emit(INFO, msg, args...) }
func (c *ComponentLogger) Warn(msg string, args ...any)  { c.emit(WARN, msg, args...) }
func (c *ComponentLogger) Error(msg string, args ...any) { c.emit(ERROR, msg, args...) }

// WithFields logs msg at level with structured fields attached.
func (c *ComponentLogger) WithFields(level Level, msg string, fields map[string]any) {
	c.logger.log(level, c.component, msg, fields)
}

func (c *ComponentLogger) emit(level Level, msg string, args ...any) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	c.logger.log(level, c.component, msg, nil)
}

var (
	defaultLogger *Logger
	defaultOnce   sync.Once
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(nil)
	})
	return defaultLogger
}

// Get returns a ComponentLogger on the default logger.
func Get(c Component) *ComponentLogger {
	return Default().WithComponent(c)
}
