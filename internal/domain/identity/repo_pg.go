package identity

import (
	"context"
	"errors"
	"fmt"

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

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, email, first_name, last_name, role_code, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var roleCode string
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &roleCode, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	role, err := ParseRole(roleCode)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = role
	return &u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *userRepoPG) FindDoctor(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND role_code = $2`, id, RoleDoctor.Code()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}
