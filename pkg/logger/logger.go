package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string { return levelNames[l] }

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger 基于 zap 的 printf 风格日志，保留原有的包级 API
type Logger struct {
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
	prefix string
}

var (
	std     *Logger
	stdOnce sync.Once
	stdMu   sync.RWMutex
)

func newLogger(level Level, out io.Writer, useColor bool) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.CallerKey = ""
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	if useColor {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	atom := zap.NewAtomicLevelAt(level.zapLevel())
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), atom)
	return &Logger{
		level: atom,
		sugar: zap.New(core).Sugar(),
	}
}

func Init(level string, useColor bool) {
	stdOnce.Do(func() {
		setStd(newLogger(parseLevel(level), os.Stderr, useColor))
	})
}

// InitWithFile 日志写入文件，文件打不开时回退到 stderr
func InitWithFile(level string, useColor bool, logFile string) {
	stdOnce.Do(func() {
		var out io.Writer = os.Stderr
		if logFile != "" {
			if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
				out = file
				useColor = false
			}
		}
		setStd(newLogger(parseLevel(level), out, useColor))
	})
}

// SetOutput 替换全局输出，测试中用来捕获日志
func SetOutput(out io.Writer, level string) {
	stdOnce.Do(func() {})
	setStd(newLogger(parseLevel(level), out, false))
}

func setStd(l *Logger) {
	stdMu.Lock()
	std = l
	stdMu.Unlock()
}

func Get() *Logger {
	stdMu.RLock()
	l := std
	stdMu.RUnlock()
	if l == nil {
		Init("INFO", true)
		stdMu.RLock()
		l = std
		stdMu.RUnlock()
	}
	return l
}

func SetLevel(level string) {
	Get().level.SetLevel(parseLevel(level).zapLevel())
}

func parseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func Debug(format string, v ...interface{}) { Get().Debug(format, v...) }

func Info(format string, v ...interface{}) { Get().Info(format, v...) }

func Warn(format string, v ...interface{}) { Get().Warn(format, v...) }

func Error(format string, v ...interface{}) { Get().Error(format, v...) }

func Fatal(format string, v ...interface{}) {
	Get().Error(format, v...)
	Sync()
	os.Exit(1)
}

// Sync 刷新缓冲，进程退出前调用
func Sync() {
	_ = Get().sugar.Sync()
}

func (l *Logger) Debug(format string, v ...interface{}) { l.sugar.Debug(l.format(format, v...)) }

func (l *Logger) Info(format string, v ...interface{}) { l.sugar.Info(l.format(format, v...)) }

func (l *Logger) Warn(format string, v ...interface{}) { l.sugar.Warn(l.format(format, v...)) }

func (l *Logger) Error(format string, v ...interface{}) { l.sugar.Error(l.format(format, v...)) }

func (l *Logger) format(format string, v ...interface{}) string {
	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		return "[" + l.prefix + "] " + msg
	}
	return msg
}

// WithPrefix 派生带前缀的子 logger，共享级别和输出
func WithPrefix(prefix string) *Logger {
	parent := Get()
	return &Logger{
		level:  parent.level,
		sugar:  parent.sugar,
		prefix: prefix,
	}
}
