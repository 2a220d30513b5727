package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zenara-designs/reviews-gateway/internal/models"
)

// PostgresConfig tunes the request log connection pool. The pool is small:
// the only writer is the batching request logger and the only readers are
// admin queries.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
}

func (c *PostgresConfig) setDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = min(2, c.MaxOpenConns)
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.SlowQuery <= 0 {
		c.SlowQuery = 500 * time.Millisecond
	}
}

// Postgres holds the request log database.
type Postgres struct {
	DB *gorm.DB
}

func NewPostgres(dsn string, cfg PostgresConfig, log *zap.Logger) (*Postgres, error) {
	cfg.setDefaults()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowQuery),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// request logs are written in batches of independent rows
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to request log database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Postgres{DB: db}, nil
}

// Ping is registered as the "database" health probe.
func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// AutoMigrate creates or updates the request_logs table and its indexes.
func (p *Postgres) AutoMigrate() error {
	return p.DB.AutoMigrate(&models.RequestLog{})
}

func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// gormLogger sends gorm's output to zap. Failed queries log at error, slow
// queries at warn, everything else at debug.
type gormLogger struct {
	log   *zap.Logger
	slow  time.Duration
	level logger.LogLevel
}

func newGormLogger(log *zap.Logger, slow time.Duration) *gormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &gormLogger{
		log:   log.Named("gorm"),
		slow:  slow,
		level: logger.Warn,
	}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Info {
		g.log.Sugar().Infof(msg, args...)
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Warn {
		g.log.Sugar().Warnf(msg, args...)
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= logger.Error {
		g.log.Sugar().Errorf(msg, args...)
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		sql, rows := fc()
		g.log.Error("query failed",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		sql, rows := fc()
		g.log.Warn("slow query",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", g.slow),
		)
	case g.log.Core().Enabled(zap.DebugLevel):
		sql, rows := fc()
		g.log.Debug("query",
			zap.String("sql", sql),
			zap.Int64("rows", rows),
			zap.Duration("elapsed", elapsed),
		)
	}
}
