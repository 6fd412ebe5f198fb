package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatebot/core/logger"
)

// Catalog is the code to media reference table.
type Catalog struct {
	db *sqlx.DB
}

// Upsert stores mediaRef under code, replacing any previous reference.
func (c *Catalog) Upsert(ctx context.Context, code, mediaRef string) error {
	q := c.db.Rebind(`INSERT INTO catalog_entries (code, media_ref) VALUES (?, ?)
ON CONFLICT (code) DO UPDATE SET media_ref = excluded.media_ref`)
	if _, err := c.db.ExecContext(ctx, q, code, mediaRef); err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	logger.SVCCatalog.DebugContext(ctx, "catalog upsert",
		slog.String("event", "catalog.upsert"),
		slog.String("code", code),
	)
	return nil
}

// Delete removes code and reports whether it existed.
func (c *Catalog) Delete(ctx context.Context, code string) (bool, error) {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM catalog_entries WHERE code = ?`), code)
	if err != nil {
		return false, fmt.Errorf("delete catalog entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete catalog entry: %w", err)
	}
	return n > 0, nil
}

// Get returns the media reference stored under code or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, code string) (string, error) {
	var ref string
	err := c.db.GetContext(ctx, &ref, c.db.Rebind(`SELECT media_ref FROM catalog_entries WHERE code = ?`), code)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("get catalog entry: %w", err)
	}
	return ref, nil
}

// List returns all entries ordered by code.
func (c *Catalog) List(ctx context.Context) ([]CatalogEntry, error) {
	var out []CatalogEntry
	if err := c.db.SelectContext(ctx, &out, `SELECT code, media_ref FROM catalog_entries ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return out, nil
}

// Count returns the number of entries.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	n, err := count(ctx, c.db, "catalog_entries")
	if err != nil {
		return 0, fmt.Errorf("count catalog entries: %w", err)
	}
	return n, nil
}
