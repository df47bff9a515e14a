package logger

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu            sync.Mutex
	defaultLogger *zap.SugaredLogger
	atomicLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

type ctxKey struct{}

// Init initializes the global logger.
// LOG_FILE (or LOG_DIR) adds a rotating file core next to stdout.
func Init(level string, json bool) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	atomicLevel.SetLevel(parseLevel(level))
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atomicLevel),
	}

	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if logFile == "" {
		if dir := strings.TrimSpace(os.Getenv("LOG_DIR")); dir != "" {
			logFile = filepath.Join(dir, "coinflip.log")
		}
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			lw := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    getenvInt("LOG_MAX_SIZE_MB", 100),
				MaxBackups: getenvInt("LOG_MAX_BACKUPS", 7),
				MaxAge:     getenvInt("LOG_MAX_DAYS", 14),
				Compress:   true,
			}
			// file output is always JSON
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lw), atomicLevel))
		}
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	defaultLogger = l.Sugar()
	mu.Unlock()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return n
	}
	return def
}

// Get returns the default logger
func Get() *zap.SugaredLogger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init("info", false)
		return Get()
	}
	return l
}

// NewContext stores a request-scoped logger in ctx.
func NewContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithContext returns the request-scoped logger, or the default one.
func WithContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}
	return Get()
}

func Info(msg string, args ...any)  { Get().Infow(msg, args...) }
func Debug(msg string, args ...any) { Get().Debugw(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warnw(msg, args...) }
func Error(msg string, args ...any) { Get().Errorw(msg, args...) }

// Fatal logs at error level and exits
func Fatal(msg string, args ...any) {
	Get().Errorw(msg, args...)
	_ = Get().Sync()
	os.Exit(1)
}

// With returns a logger with the given attributes
func With(args ...any) *zap.SugaredLogger {
	return Get().With(args...)
}

// Sync flushes buffered entries.
func Sync() {
	_ = Get().Sync()
}
