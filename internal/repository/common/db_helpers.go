package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// GetByID читает одну строку таблицы по первичному ключу.
// Колонки таблицы должны совпадать с db-тегами T.
func GetByID[T any](ctx context.Context, q sqlx.QueryerContext, table string, id any, notFound error) (*T, error) {
	out := new(T)
	err := sqlx.GetContext(ctx, q, out, "SELECT * FROM "+table+" WHERE id = $1", id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, notFound
	case err != nil:
		return nil, fmt.Errorf("%s: select by id %w", table, err)
	}
	return out, nil
}

// BatchInserter копит строки и пишет их одним многострочным INSERT.
type BatchInserter struct {
	tx      *sqlx.Tx
	prefix  string
	columns int
	limit   int
	args    []any
	rows    int
}

// NewBatchInserter готовит вставку в table по перечисленным колонкам.
// Буфер сбрасывается автоматически каждые limit строк.
func NewBatchInserter(tx *sqlx.Tx, table string, columns []string, limit int) *BatchInserter {
	if limit <= 0 {
		limit = 100
	}
	return &BatchInserter{
		tx:      tx,
		prefix:  "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES ",
		columns: len(columns),
		limit:   limit,
		args:    make([]any, 0, limit*len(columns)),
	}
}

// Add кладёт строку в буфер.
func (b *BatchInserter) Add(ctx context.Context, row ...any) error {
	if len(row) != b.columns {
		return fmt.Errorf("batch insert: строка из %d значений, ожидалось %d", len(row), b.columns)
	}
	b.args = append(b.args, row...)
	b.rows++
	if b.rows < b.limit {
		return nil
	}
	return b.Flush(ctx)
}

// Flush отправляет накопленные строки.
func (b *BatchInserter) Flush(ctx context.Context) error {
	if b.rows == 0 {
		return nil
	}
	if _, err := b.tx.ExecContext(ctx, b.prefix+placeholders(b.rows, b.columns), b.args...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	b.args = b.args[:0]
	b.rows = 0
	return nil
}

// placeholders строит "($1, $2), ($3, $4)" для rows строк по cols значений.
func placeholders(rows, cols int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// WithTransaction выполняет fn в транзакции: commit при nil, rollback при ошибке или панике.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx: begin %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("tx: commit %w", err)
	}
	committed = true
	return nil
}
