// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	_globalL atomic.Value // *zap.Logger
	_globalP atomic.Value // *ZapProperties
	_globalS atomic.Value // *zap.SugaredLogger
)

// ZapProperties 记录 zap 日志相关的核心信息。
type ZapProperties struct {
	Core   zapcore.Core
	Syncer zapcore.WriteSyncer
	Level  zap.AtomicLevel
}

func init() {
	l, p, err := InitLogger(DefaultConfig())
	if err != nil {
		panic(err)
	}
	ReplaceGlobals(l, p)
}

// InitLogger 根据配置构造一个新的 Logger。
//
// 说明：
//   - Stdout 与 File 至少启用一个，否则日志将被丢弃到 io.Discard；
//   - 文件日志通过 lumberjack 进行滚动。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var syncers []zapcore.WriteSyncer
	if cfg.Stdout {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if cfg.File.Filename != "" {
		syncer, err := newFileSyncer(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		syncers = append(syncers, syncer)
	}

	var syncer zapcore.WriteSyncer
	switch len(syncers) {
	case 0:
		syncer = zapcore.AddSync(discardWriter{})
	case 1:
		syncer = syncers[0]
	default:
		syncer = zapcore.NewMultiWriteSyncer(syncers...)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	core := zapcore.NewCore(cfg.buildEncoder(), syncer, level)
	opts = append(cfg.buildOptions(syncer), opts...)

	lg := zap.New(core, opts...)
	props := &ZapProperties{
		Core:   core,
		Syncer: syncer,
		Level:  level,
	}
	return lg, props, nil
}

func newFileSyncer(cfg *FileLogConfig) (zapcore.WriteSyncer, error) {
	if st, err := os.Stat(cfg.Filename); err == nil && st.IsDir() {
		return nil, errors.New("can't use directory as log file name")
	}

	filename := cfg.Filename
	if cfg.RootPath != "" {
		filename = filepath.Join(cfg.RootPath, filename)
	}

	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = defaultLogMaxSize
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}), nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// L 返回全局 Logger。
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// S 返回全局 SugaredLogger。
func S() *zap.SugaredLogger {
	return _globalS.Load().(*zap.SugaredLogger)
}

// ReplaceGlobals 替换全局 Logger 及其属性。
// 调用方应在进程初始化早期调用一次（boundary.Initialize 会完成该动作）。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalS.Store(logger.Sugar())
	_globalP.Store(props)
}

// SetLevel 动态调整全局日志级别。
func SetLevel(l zapcore.Level) {
	_globalP.Load().(*ZapProperties).Level.SetLevel(l)
}

// GetLevel 返回当前全局日志级别。
func GetLevel() zapcore.Level {
	return _globalP.Load().(*ZapProperties).Level.Level()
}

// With 基于全局 Logger 附加字段，返回派生 Logger。
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}
