package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func query() (string, int64) { return `SELECT * FROM "request_logs"`, 3 }

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		err     error
		level   zapcore.Level
		message string
	}{
		{name: "failed query", elapsed: time.Millisecond, err: errors.New("relation does not exist"), level: zap.ErrorLevel, message: "query failed"},
		{name: "slow query", elapsed: time.Second, level: zap.WarnLevel, message: "slow query"},
		{name: "fast query", elapsed: time.Millisecond, level: zap.DebugLevel, message: "query"},
		{name: "record not found is not a failure", elapsed: time.Millisecond, err: gorm.ErrRecordNotFound, level: zap.DebugLevel, message: "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			g := newGormLogger(zap.New(core), 200*time.Millisecond)

			g.Trace(context.Background(), time.Now().Add(-tt.elapsed), query, tt.err)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.message, entry.Message)
			assert.Equal(t, "gorm", entry.LoggerName)
			assert.Equal(t, `SELECT * FROM "request_logs"`, entry.ContextMap()["sql"])
		})
	}
}

func TestGormLogger_SkipsDebugWhenDisabled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	g := newGormLogger(zap.New(core), 200*time.Millisecond)

	called := false
	g.Trace(context.Background(), time.Now(), func() (string, int64) { called = true; return "", 0 }, nil)

	assert.Zero(t, logs.Len())
	assert.False(t, called, "sql is not rendered for discarded entries")
}

func TestGormLogger_LogMode(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	g := newGormLogger(zap.New(core), 200*time.Millisecond)

	silent := g.LogMode(logger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), query, errors.New("boom"))
	silent.Error(context.Background(), "ignored %d", 1)
	assert.Zero(t, logs.Len())

	g.Warn(context.Background(), "pool at %d%%", 90)
	g.Info(context.Background(), "below the default level")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "pool at 90%", logs.All()[0].Message)
}

func TestPostgresConfig_Defaults(t *testing.T) {
	var cfg PostgresConfig
	cfg.setDefaults()
	assert.Equal(t, 5, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 500*time.Millisecond, cfg.SlowQuery)

	capped := PostgresConfig{MaxOpenConns: 1, MaxIdleConns: 4}
	capped.setDefaults()
	assert.Equal(t, 1, capped.MaxIdleConns)
}
