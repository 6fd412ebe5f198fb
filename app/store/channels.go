package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Channels is the set of gating channel identifiers.
type Channels struct {
	db *sqlx.DB
}

// Add inserts identifier if missing and reports whether it was new.
func (c *Channels) Add(ctx context.Context, identifier string) (bool, error) {
	q := c.db.Rebind(`INSERT INTO gating_channels (identifier) VALUES (?) ON CONFLICT (identifier) DO NOTHING`)
	res, err := c.db.ExecContext(ctx, q, identifier)
	if err != nil {
		return false, fmt.Errorf("add channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add channel: %w", err)
	}
	return n > 0, nil
}

// Remove deletes identifier and reports whether it existed.
func (c *Channels) Remove(ctx context.Context, identifier string) (bool, error) {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM gating_channels WHERE identifier = ?`), identifier)
	if err != nil {
		return false, fmt.Errorf("remove channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove channel: %w", err)
	}
	return n > 0, nil
}

// List returns every identifier in lexical order.
func (c *Channels) List(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.db.SelectContext(ctx, &out, `SELECT identifier FROM gating_channels ORDER BY identifier`); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return out, nil
}

// Count returns the number of channels.
func (c *Channels) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, c.db, "gating_channels")
	if err != nil {
		return 0, fmt.Errorf("count channels: %w", err)
	}
	return n, nil
}
