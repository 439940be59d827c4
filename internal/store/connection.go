package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" driver

	"github.com/mrz1836/cortex/internal/clock"
	"github.com/mrz1836/cortex/internal/constants"
	"github.com/mrz1836/cortex/internal/errors"
)

// ErrNilDB indicates a nil gorm handle was passed to a schema helper.
var ErrNilDB = stderrors.New("db is required")

// Options configures Open.
type Options struct {
	// Path is the sqlite file. Parent directories are created.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	// Clock stamps created_at/updated_at. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives SQL errors and slow queries.
	Logger zerolog.Logger
}

// Open opens (creating if needed) the sqlite store at opts.Path and syncs the schema.
//
// Several processes may open the same file. sqlite serializes their writers
// and the claim protocol relies only on the tasks primary key.
func Open(ctx context.Context, opts Options) (*SQLStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("failed to open store: path %w", errors.ErrEmptyValue)
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = constants.DefaultBusyTimeout
	}

	gdb, err := openSQLite(opts)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("%w: %w", errors.ErrStoreUnavailable, err), "failed to open store")
	}

	if err := syncSchema(gdb.WithContext(ctx)); err != nil {
		closeGorm(gdb)
		return nil, errors.Wrap(err, "failed to migrate store")
	}

	return &SQLStore{
		db:     gdb,
		clock:  clock.OrReal(opts.Clock),
		logger: opts.Logger.With().Str("component", "store").Logger(),
	}, nil
}

func openSQLite(opts Options) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
		return nil, err
	}

	busyMS := opts.BusyTimeout.Milliseconds()
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", opts.Path, busyMS)

	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{
		Logger: newGormLogger(opts.Logger),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := gdb.Exec(`PRAGMA journal_mode=WAL;`).Error; err != nil {
		closeGorm(gdb)
		return nil, err
	}
	if err := gdb.Exec(fmt.Sprintf(`PRAGMA busy_timeout=%d;`, busyMS)).Error; err != nil {
		closeGorm(gdb)
		return nil, err
	}
	return gdb, nil
}

func closeGorm(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// gormLogger routes gorm diagnostics to zerolog.
type gormLogger struct {
	logger        zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func newGormLogger(logger zerolog.Logger) gormlogger.Interface {
	return &gormLogger{
		logger:        logger.With().Str("component", "gorm").Logger(),
		level:         gormlogger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info().Msgf(msg, args...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, args...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error().Msgf(msg, args...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
	}
}
