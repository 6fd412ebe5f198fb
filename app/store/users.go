package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Users is the registry of user ids that issued the entry command.
type Users struct {
	db *sqlx.DB
}

// Register inserts id if missing and reports whether it was new.
func (u *Users) Register(ctx context.Context, id int64) (bool, error) {
	q := u.db.Rebind(`INSERT INTO bot_users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`)
	res, err := u.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("register user: %w", err)
	}
	return n > 0, nil
}

// List returns every registered id in ascending order.
func (u *Users) List(ctx context.Context) ([]int64, error) {
	var out []int64
	if err := u.db.SelectContext(ctx, &out, `SELECT user_id FROM bot_users ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// Count returns the number of registered users.
func (u *Users) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, u.db, "bot_users")
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
