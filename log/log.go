package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BruceZu/yaraft/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	// Callers that never run InitLog still get console output. Tests and
	// the fatal paths rely on the panic level being wired.
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zapcore.DebugLevel,
	)
	log = zap.New(core)
	sugar = log.Sugar()
}

// InitLog rebuilds the logger from config: one rotating file per level under
// cfg.Director, optionally teed to the console.
func InitLog(cfg *config.ZapConfig) {
	if ok, _ := pathExists(cfg.Director); !ok {
		fmt.Printf("create %v directory\n", cfg.Director)
		_ = os.Mkdir(cfg.Director, os.ModePerm)
	}

	log = zap.New(zapcore.NewTee(getZapCores(cfg)...))
	if cfg.ShowLine {
		log = log.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1))
	}
	sugar = log.Sugar()
}

func Debug(msg string) *Fields {
	return newFields(msg, zapcore.DebugLevel)
}

func Info(msg string) *Fields {
	return newFields(msg, zapcore.InfoLevel)
}

func Warn(msg string) *Fields {
	return newFields(msg, zapcore.WarnLevel)
}

func Error(msg string) *Fields {
	return newFields(msg, zapcore.ErrorLevel)
}

func Panic(msg string) *Fields {
	return newFields(msg, zapcore.PanicLevel)
}

func Fatal(msg string) *Fields {
	return newFields(msg, zapcore.FatalLevel)
}

func Debugf(msg string, param ...any) {
	sugar.Debugf(msg, param...)
}

func Infof(msg string, param ...any) {
	sugar.Infof(msg, param...)
}

func Warnf(msg string, param ...any) {
	sugar.Warnf(msg, param...)
}

func Errorf(msg string, param ...any) {
	sugar.Errorf(msg, param...)
}

// Panicf logs the diagnostic at panic level and unwinds. Safety violations
// in the raft core go through here: the node must stop rather than keep
// running on a divergent log.
func Panicf(msg string, param ...any) {
	sugar.Panicf(msg, param...)
}

type Fields struct {
	level  zapcore.Level
	zap    *zap.Logger
	msg    string
	fields []zapcore.Field
	skip   bool
}

func newFields(msg string, level zapcore.Level) *Fields {
	return &Fields{
		level: level,
		zap:   log,
		msg:   msg,
		skip:  level < zapcore.PanicLevel && !log.Core().Enabled(level),
	}
}

func (f *Fields) Str(key string, val string) *Fields {
	if f.skip {
		return f
	}
	f.fields = append(f.fields, zap.String(key, val))
	return f
}

func (f *Fields) Strs(key string, val []string) *Fields {
	if f.skip {
		return f
	}
	f.fields = append(f.fields, zap.Strings(key, val))
	return f
}

func (f *Fields) Int(key string, val int) *Fields {
	if f.skip {
		return f
	}
	f.fields = append(f.fields, zap.Int(key, val))
	return f
}

func (f *Fields) Uint64(key string, val uint64) *Fields {
	if f.skip {
		return f
	}
	f.fields = append(f.fields, zap.Uint64(key, val))
	return f
}

func (f *Fields) Bool(key string, val bool) *Fields {
	if f.skip {
		return f
	}
	f.fields = append(f.fields, zap.Bool(key, val))
	return f
}

func (f *Fields) Err(key string, err error) *Fields {
	if err == nil || f.skip {
		return f
	}
	f.fields = append(f.fields, zap.NamedError(key, err))
	return f
}

func (f *Fields) Record() {
	if f.skip {
		return
	}
	switch f.level {
	case zapcore.DebugLevel:
		f.zap.Debug(f.msg, f.fields...)
	case zapcore.InfoLevel:
		f.zap.Info(f.msg, f.fields...)
	case zapcore.WarnLevel:
		f.zap.Warn(f.msg, f.fields...)
	case zapcore.ErrorLevel:
		f.zap.Error(f.msg, f.fields...)
	case zapcore.PanicLevel:
		f.zap.Panic(f.msg, f.fields...)
	case zapcore.FatalLevel:
		f.zap.Fatal(f.msg, f.fields...)
	}
}

func zapEncodeLevel(cfg *config.ZapConfig) zapcore.LevelEncoder {
	switch cfg.EncodeLevel {
	case "LowercaseLevelEncoder":
		return zapcore.LowercaseLevelEncoder
	case "LowercaseColorLevelEncoder":
		return zapcore.LowercaseColorLevelEncoder
	case "CapitalLevelEncoder":
		return zapcore.CapitalLevelEncoder
	case "CapitalColorLevelEncoder":
		return zapcore.CapitalColorLevelEncoder
	default:
		return zapcore.LowercaseLevelEncoder
	}
}

func transportLevel(cfg *config.ZapConfig) zapcore.Level {
	switch strings.ToLower(cfg.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.DebugLevel
	}
}

func getEncoder(cfg *config.ZapConfig) zapcore.Encoder {
	if cfg.Format == "json" {
		return zapcore.NewJSONEncoder(getEncoderConfig(cfg))
	}
	return zapcore.NewConsoleEncoder(getEncoderConfig(cfg))
}

func getEncoderConfig(cfg *config.ZapConfig) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "message",
		LevelKey:      "level",
		TimeKey:       "time",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: cfg.StacktraceKey,
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapEncodeLevel(cfg),
		EncodeTime: func(t time.Time, encoder zapcore.PrimitiveArrayEncoder) {
			encoder.AppendString(cfg.Prefix + t.Format("2006/01/02 - 15:04:05.000"))
		},
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.FullCallerEncoder,
	}
}

func getZapCores(cfg *config.ZapConfig) []zapcore.Core {
	cores := make([]zapcore.Core, 0, 7)
	for level := transportLevel(cfg); level <= zapcore.FatalLevel; level++ {
		cores = append(cores, getEncoderCore(cfg, level))
	}
	return cores
}

func getEncoderCore(cfg *config.ZapConfig, l zapcore.Level) zapcore.Core {
	writer, err := getWriteSyncer(cfg, l.String())
	if err != nil {
		fmt.Printf("Get Write Syncer Failed err:%v", err.Error())
		return zapcore.NewNopCore()
	}
	enabler := zap.LevelEnablerFunc(func(level zapcore.Level) bool { return level == l })
	return zapcore.NewCore(getEncoder(cfg), writer, enabler)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
