// Package store persists the catalog, the gating channels and the user registry.
// Queries are written with ? placeholders and rebound for the active driver.
package store

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("store: not found")

// CatalogEntry maps a catalog code to an opaque media reference.
type CatalogEntry struct {
	Code     string `db:"code"`
	MediaRef string `db:"media_ref"`
}

// Store groups the three tables over one database handle.
type Store struct {
	db *sqlx.DB

	Catalog  *Catalog
	Channels *Channels
	Users    *Users
}

// New wraps db.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		Catalog:  &Catalog{db: db},
		Channels: &Channels{db: db},
		Users:    &Users{db: db},
	}
}

// Stats holds row counts of every table.
type Stats struct {
	Users    int
	Entries  int
	Channels int
}

// Stats counts the rows of every table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Users, err = s.Users.Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.Entries, err = s.Catalog.Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.Channels, err = s.Channels.Count(ctx); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func count(ctx context.Context, db *sqlx.DB, table string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, err
	}
	return n, nil
}
