package diag

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 包装 zap：
// - 控制台（stderr）输出面向用户的 "LEVEL: msg" 行；
// - 若配置了日志目录，同时以单行 JSON 写入轮转文件。
// 每条事件携带 corr_id/comp/stage 字段。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// Options 为日志器的最小配置。
type Options struct {
	CorrID string
	Level  string
	// Dir 为空时不写文件。
	Dir string
	// Console 为 nil 时使用 stderr。
	Console zapcore.WriteSyncer
}

// NewLogger 按配置构建日志器。
func NewLogger(opts Options) *Logger {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stderr)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), console, lvl),
	}
	var sink *RotatingFile
	if strings.TrimSpace(opts.Dir) != "" {
		sink = NewRotatingFile(opts.Dir, 10*1024*1024)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), sink, lvl))
	}
	z := zap.New(zapcore.NewTee(cores...))
	if opts.CorrID != "" {
		z = z.With(zap.String("corr_id", opts.CorrID))
	}
	return &Logger{z: z, sink: sink}
}

// NewNop 返回丢弃所有输出的日志器（测试用）。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

// FromZap 以现成的 zap.Logger 构建（测试中配合 zaptest/observer）。
func FromZap(z *zap.Logger) *Logger { return &Logger{z: z} }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: ": ",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeDuration:   zapcore.MillisDurationEncoder,
	}
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.CallerKey = ""
	return cfg
}

// Sync 刷新并关闭文件 sink。
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

func fileField(fileID string) []zap.Field {
	if fileID == "" {
		return nil
	}
	return []zap.Field{zap.String("file_id", fileID)}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "")
}

// StartWith 记录带 file_id 的 start（debug 级，避免控制台噪声）。
func (l *Logger) StartWith(comp, msg, fileID string) *Timer {
	if l == nil {
		return nil
	}
	l.z.Debug(msg, append(fileField(fileID), zap.String("comp", comp), zap.String("stage", "start"))...)
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Info 记录面向用户的信息事件。
func (l *Logger) Info(comp, msg, fileID string) {
	if l == nil {
		return
	}
	l.z.Info(msg, append(fileField(fileID), zap.String("comp", comp))...)
}

// Warn 记录可恢复问题（单文件错误等）。
func (l *Logger) Warn(comp, code, msg, fileID string) {
	if l == nil {
		return
	}
	l.z.Warn(msg, append(fileField(fileID), zap.String("comp", comp), zap.String("code", code))...)
}

// Error 记录致命事件；durSince 非空时附带耗时。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "")
}

// ErrorWith 支持 file_id。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID string) {
	if l == nil {
		return
	}
	fields := append(fileField(fileID), zap.String("comp", comp), zap.String("stage", "error"), zap.String("code", code))
	if durSince != nil {
		fields = append(fields, zap.Duration("dur", time.Since(*durSince)))
	}
	l.z.Error(msg, fields...)
}

// DebugKV 输出调试级别的键值事件（仅在 level=debug 时生效）。
func (l *Logger) DebugKV(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	fields := make([]zap.Field, 0, len(kv)+1)
	fields = append(fields, zap.String("comp", comp))
	for k, v := range kv {
		fields = append(fields, zap.String(k, v))
	}
	l.z.Debug(msg, fields...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish（debug 级）；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.z.Debug(msg, append(fileField(t.fileID),
		zap.String("comp", t.comp),
		zap.String("stage", "finish"),
		zap.Duration("dur", time.Since(t.t0)),
		zap.Int64("count", count))...)
}
