package db

import (
	"context"
	"fmt"
)

// Open connects to the store selected by driver ("postgres" or "sqlite")
// and creates the schema.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var store Store
	switch driver {
	case "postgres":
		pg, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		store = pg
	case "sqlite":
		lite, err := NewSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		store = lite
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
