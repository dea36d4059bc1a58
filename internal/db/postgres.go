package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/repository/common"
)

// Ключ advisory lock, под которым применяются миграции.
const migrationsLockKey = 727_001

const (
	maxOpenConns    = 50
	maxIdleConns    = 10
	connMaxLifetime = 5 * time.Minute
)

// NewPostgres открывает пул соединений к PostgreSQL.
// Пока база не отвечает, попытки повторяются с растущей паузой (не дольше connectTimeout).
func NewPostgres(ctx context.Context, dsn string, connectTimeout time.Duration) (*sqlx.DB, error) {
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	backoff := retry.WithMaxDuration(connectTimeout,
		retry.WithCappedDuration(5*time.Second, retry.NewExponential(500*time.Millisecond)))

	var pool *sqlx.DB
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			logger.Log.WithError(err).WithField("attempt", attempt).Warn("postgres: база недоступна")
			return retry.RetryableError(err)
		}
		pool = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: connect после %d попыток: %w", attempt, err)
	}

	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetMaxIdleConns(maxIdleConns)
	pool.SetConnMaxLifetime(connMaxLifetime)
	return pool, nil
}

// RunMigrations применяет по порядку имён ещё не применённые *.sql файлы из dir.
// Каждый файл выполняется в своей транзакции вместе с записью в schema_migrations.
func RunMigrations(ctx context.Context, conn *sqlx.DB, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("migrations: glob %w", err)
	}
	sort.Strings(files)

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("migrations: schema_migrations %w", err)
	}

	// Несколько экземпляров могут стартовать одновременно.
	lockConn, err := conn.Connx(ctx)
	if err != nil {
		return fmt.Errorf("migrations: conn %w", err)
	}
	defer lockConn.Close()
	if _, err := lockConn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationsLockKey); err != nil {
		return fmt.Errorf("migrations: lock %w", err)
	}
	defer func() {
		_, _ = lockConn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationsLockKey)
	}()

	var names []string
	if err := conn.SelectContext(ctx, &names, `SELECT name FROM schema_migrations`); err != nil {
		return fmt.Errorf("migrations: список применённых %w", err)
	}
	applied := lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })

	for _, path := range files {
		name := filepath.Base(path)
		if _, ok := applied[name]; ok {
			continue
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		err = common.WithTransaction(ctx, conn, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrations: %s: %w", name, err)
		}
		logger.Log.WithField("migration", name).Info("migrations: применена")
	}
	return nil
}
