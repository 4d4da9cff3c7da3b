package codes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const codeCols = `key_map, type, value_en, value_vi, created_at, updated_at`

func scanCode(row pgx.Row) (*Code, error) {
	var c Code
	err := row.Scan(&c.KeyMap, &c.Type, &c.ValueEn, &c.ValueVi, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) ListByType(ctx context.Context, codeType string) ([]*Code, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+codeCols+` FROM allcode WHERE type = $1 ORDER BY key_map`, codeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, keyMap string) (*Code, error) {
	c, err := scanCode(r.conn(ctx).QueryRow(ctx,
		`SELECT `+codeCols+` FROM allcode WHERE key_map = $1`, keyMap))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}
