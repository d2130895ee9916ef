/**
 * Logger Implementation for MPTimer
 *
 * Structured logging using zerolog with context awareness and configurable
 * output. Logs go to stderr by default so that the tick bar and tables own
 * stdout.
 *
 * Author: MPTimer Team
 * Created: 2025-02-06
 */

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	mperrors "github.com/VatsalSy/MPTimer/internal/errors"
)

// Logger wraps zerolog with additional functionality.
type Logger struct {
	logger zerolog.Logger
	config *Config
}

// Config configures the logger behavior.
type Config struct {
	Output        io.Writer
	Fields        map[string]interface{}
	Level         string
	TimeFormat    string
	Pretty        bool
	IncludeCaller bool
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = &Config{
	Level:         "info",
	Output:        os.Stderr,
	Pretty:        false,
	IncludeCaller: false,
	Fields:        make(map[string]interface{}),
	TimeFormat:    time.RFC3339,
}

// New creates a new logger instance.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.TimeFormat == "" {
		config.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = config.TimeFormat

	var output = config.Output
	if config.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        config.Output,
			TimeFormat: config.TimeFormat,
		}
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp()

	for k, v := range config.Fields {
		ctx = ctx.Interface(k, v)
	}

	if config.IncludeCaller {
		ctx = ctx.CallerWithSkipFrameCount(3)
	}

	return &Logger{
		logger: ctx.Logger(),
		config: config,
	}
}

// With creates a child logger with additional key/value fields.
func (l *Logger) With(fields ...interface{}) *Logger {
	newLogger := l.logger.With()

	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			newLogger = newLogger.Interface(key, fields[i+1])
		}
	}

	return &Logger{
		logger: newLogger.Logger(),
		config: l.config,
	}
}

// WithField creates a child logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger: l.logger.With().Interface(key, value).Logger(),
		config: l.config,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.logEvent(l.logger.Debug(), msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.logEvent(l.logger.Info(), msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.logEvent(l.logger.Warn(), msg, fields...)
}

// Error logs an error message. Typed errors carry their category.
func (l *Logger) Error(err error, msg string, fields ...interface{}) {
	event := l.logger.Error()
	if err != nil {
		event = event.Err(err).Str("error_type", mperrors.GetErrorType(err).String())

		var typed *mperrors.Error
		if mperrors.AsError(err, &typed) {
			if typed.Op != "" {
				event = event.Str("op", typed.Op)
			}
			for k, v := range typed.Context {
				event = event.Interface(k, v)
			}
		}
	}
	l.logEvent(event, msg, fields...)
}

func (l *Logger) logEvent(event *zerolog.Event, msg string, fields ...interface{}) {
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case time.Duration:
			event = event.Str(key, v.String())
		default:
			event = event.Interface(key, v)
		}
	}

	event.Msg(msg)
}

// LogOperation logs the start and end of an operation.
func (l *Logger) LogOperation(op string, fn func() error) error {
	start := time.Now()
	l.Debug("Operation started", "operation", op)

	err := fn()

	duration := time.Since(start)
	if err != nil {
		l.Error(err, "Operation failed",
			"operation", op,
			"duration", duration,
		)
	} else {
		l.Info("Operation completed",
			"operation", op,
			"duration", duration,
		)
	}

	return err
}

var globalMu sync.Mutex

// SetGlobal installs an already built logger as the zerolog global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()

	log.Logger = l.logger
}

// Options is the file-facing logging configuration.
type Options struct {
	Level      string
	Format     string // json, pretty
	Output     string // stderr, stdout, file
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup builds a logger from options. The returned closer releases the log
// file, if one was opened.
func Setup(opts Options) (*Logger, io.Closer, error) {
	cfg := &Config{
		Level:      opts.Level,
		Pretty:     opts.Format == "pretty",
		TimeFormat: time.RFC3339,
		Fields:     map[string]interface{}{},
	}
	if cfg.Pretty {
		cfg.TimeFormat = "15:04:05.000"
	}

	var closer io.Closer = nopCloser{}
	switch opts.Output {
	case "", "stderr":
		cfg.Output = os.Stderr
	case "stdout":
		cfg.Output = os.Stdout
	case "file":
		if opts.File == "" {
			return nil, nil, fmt.Errorf("log output is file but no log file is set")
		}
		maxSize := int64(opts.MaxSizeMB) * 1024 * 1024
		if maxSize <= 0 {
			maxSize = 10 * 1024 * 1024
		}
		fw, err := NewFileWriter(opts.File, maxSize, opts.MaxBackups)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cfg.Output = fw
		cfg.Pretty = false
		closer = fw
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", opts.Output)
	}

	if _, err := zerolog.ParseLevel(opts.Level); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	return New(cfg), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FileWriter is an io.Writer with size-based rotation.
type FileWriter struct {
	mu         sync.Mutex
	file       *os.File
	filename   string
	maxSize    int64
	maxBackups int
}

// NewFileWriter creates a new file writer.
func NewFileWriter(filename string, maxSize int64, maxBackups int) (*FileWriter, error) {
	fw := &FileWriter{
		filename:   filename,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}

	if err := fw.openFile(); err != nil {
		return nil, err
	}

	return fw, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file != nil {
		info, err := fw.file.Stat()
		if err == nil && info.Size() > 0 && info.Size()+int64(len(p)) > fw.maxSize {
			if err := fw.rotate(); err != nil {
				return 0, err
			}
		}
	}

	return fw.file.Write(p)
}

// Close closes the file writer.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file != nil {
		return fw.file.Close()
	}
	return nil
}

func (fw *FileWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(fw.filename), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(fw.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	fw.file = file
	return nil
}

func (fw *FileWriter) rotate() error {
	if err := fw.file.Close(); err != nil {
		return err
	}

	for i := fw.maxBackups - 1; i > 0; i-- {
		oldName := fmt.Sprintf("%s.%d", fw.filename, i)
		newName := fmt.Sprintf("%s.%d", fw.filename, i+1)
		_ = os.Rename(oldName, newName)
	}

	if fw.maxBackups > 0 {
		if err := os.Rename(fw.filename, fw.filename+".1"); err != nil {
			return err
		}
	} else if err := os.Truncate(fw.filename, 0); err != nil {
		return err
	}

	return fw.openFile()
}
