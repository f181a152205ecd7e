package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Console defaults to os.Stderr so command output on stdout stays clean.
	Console io.Writer
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m" // 时间：灰色
	colorDebug = "\x1b[36m" // DEBUG：青色
	colorInfo  = "\x1b[32m" // INFO：绿色
	colorWarn  = "\x1b[33m" // WARN：黄色
	colorError = "\x1b[31m" // ERROR：红色
)

// 模块标签颜色
var tagColors = map[string]string{
	"[HTTP]":    "\x1b[95m",
	"[AUTH]":    "\x1b[94m",
	"[REFRESH]": "\x1b[93m",
	"[STORE]":   "\x1b[96m",
	"[BLOB]":    "\x1b[92m",
	"[MOCK]":    "\x1b[97m",
	"[CLI]":     "\x1b[36m",
	"[OBS]":     "\x1b[90m",
}

// consoleHandler 控制台文本处理器，按级别与模块标签着色
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	mu     *sync.Mutex
	attrs  []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(colorTime)
	b.WriteString("[" + r.Time.Format("2006-01-02 15:04:05.000") + "]")
	b.WriteString(colorReset + " ")

	msg := r.Message
	if color, ok := moduleColor(msg); ok {
		b.WriteString(color + msg + colorReset)
	} else {
		levelColor, levelStr := levelStyle(r.Level)
		b.WriteString(levelColor + "[" + levelStr + "]" + colorReset + " " + msg)
	}

	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	if len(attrs) > 0 {
		b.WriteString(" {")
		for _, a := range attrs {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		}
		b.WriteString(" }")
	}
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func moduleColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

func levelStyle(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return colorError, "ERROR"
	case level >= slog.LevelWarn:
		return colorWarn, "WARN"
	case level >= slog.LevelInfo:
		return colorInfo, "INFO"
	default:
		return colorDebug, "DEBUG"
	}
}

// Logger writes every record to the console and, when a directory is
// configured, as JSON lines to a log file.
type Logger struct {
	level      slog.Level
	jsonLogger *slog.Logger
	textLogger *slog.Logger
	logFile    *os.File
	closeOnce  sync.Once
}

func configLogLevelToSlogLevel(configLevel string) slog.Level {
	switch strings.ToLower(configLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := configLogLevelToSlogLevel(cfg.Level)

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	logger := &Logger{
		level: level,
		textLogger: slog.New(&consoleHandler{
			writer: console,
			level:  level,
			mu:     &sync.Mutex{},
		}),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		filename := cfg.Filename
		if filename == "" {
			filename = "dashctl.log"
		}
		file, err := os.OpenFile(filepath.Join(cfg.Dir, filename), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.logFile = file
		logger.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}

	return logger, nil
}

// Discard returns a Logger that drops everything; used by tests and as a
// fallback when callers pass no logger.
func Discard() *Logger {
	return &Logger{
		level:      slog.LevelError + 1,
		textLogger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.logFile != nil {
			err = l.logFile.Close()
		}
	})
	return err
}

// Slog exposes the console logger for structured integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.textLogger
}

func (l *Logger) log(level slog.Level, msg string, fields ...any) {
	if level < l.level {
		return
	}

	var attrs []slog.Attr
	if len(fields) > 0 && fields[0] != nil {
		if fieldsMap, ok := fields[0].(map[string]any); ok {
			keys := make([]string, 0, len(fieldsMap))
			for k := range fieldsMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fieldsMap[k]))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", fields[0]))
		}
	}

	ctx := context.Background()
	if l.jsonLogger != nil {
		l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	}
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

func containsFormatPlaceholders(s string) bool {
	return strings.Contains(s, "%")
}

func (l *Logger) emit(level slog.Level, msg string, args ...any) {
	if l == nil {
		return
	}
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(level, fmt.Sprintf(msg, args...))
		return
	}
	l.log(level, msg, args...)
}

// Debug accepts either printf-style args or a single map of fields.
func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args...) }

func (l *Logger) Info(msg string, args ...any) { l.emit(slog.LevelInfo, msg, args...) }

func (l *Logger) Warn(msg string, args ...any) { l.emit(slog.LevelWarn, msg, args...) }

func (l *Logger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args...) }

// FormatLog prefixes message with a module tag: FormatLog("HTTP", "sent") -> "[HTTP] sent".
// Messages that already start with "[" are returned unchanged.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) DebugTag(tag, msg string, args ...any) {
	l.emit(slog.LevelDebug, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...any) {
	l.emit(slog.LevelInfo, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...any) {
	l.emit(slog.LevelWarn, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...any) {
	l.emit(slog.LevelError, FormatLog(tag, msg), args...)
}

// Tagged binds a module tag so domain packages can log through the plain
// Debug/Info/Warn/Error contract.
func (l *Logger) Tagged(tag string) *TaggedLogger {
	return &TaggedLogger{logger: l, tag: tag}
}

// TaggedLogger satisfies model.Logger with a fixed module tag.
type TaggedLogger struct {
	logger *Logger
	tag    string
}

func (t *TaggedLogger) Debug(msg string, args ...any) { t.logger.DebugTag(t.tag, msg, args...) }

func (t *TaggedLogger) Info(msg string, args ...any) { t.logger.InfoTag(t.tag, msg, args...) }

func (t *TaggedLogger) Warn(msg string, args ...any) { t.logger.WarnTag(t.tag, msg, args...) }

func (t *TaggedLogger) Error(msg string, args ...any) { t.logger.ErrorTag(t.tag, msg, args...) }
