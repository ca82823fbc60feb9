package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qvarnd-io/qvarnd/internal/layout"
	"github.com/qvarnd-io/qvarnd/internal/schema"
)

// EnsureSchema creates the main/aux/changes/files tables and indexes for
// every registered resource type, idempotently (spec §4.1). The listener
// type is expected to already be registered first in the registry so its
// tables exist before any type that might reference it.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, reg *schema.Registry) error {
	for _, t := range reg.Types() {
		rts, ok := reg.Lookup(t)
		if !ok {
			continue
		}
		if err := ensureType(ctx, pool, rts); err != nil {
			return fmt.Errorf("ensure schema for type %q: %w", t, err)
		}
	}
	return nil
}

func ensureType(ctx context.Context, pool *pgxpool.Pool, rts schema.ResourceTypeSchema) error {
	names := layout.ForType(rts.Type, rts.JSONSubpaths())

	var cols []string
	cols = append(cols, `id TEXT PRIMARY KEY`, `revision TEXT NOT NULL`, `search JSONB NOT NULL`, `data JSONB NOT NULL`)
	for _, col := range names.DataSubpathCols {
		cols = append(cols, fmt.Sprintf(`%s JSONB`, quoteIdent(col)))
	}
	if rts.Type == schema.ListenerType {
		cols = append(cols, `listen_on_type TEXT`)
	}
	mainDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, quoteIdent(names.MainTable), strings.Join(cols, ", "))

	auxDDL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE, data JSONB NOT NULL)`,
		quoteIdent(names.AuxTable), quoteIdent(names.MainTable))
	auxIdxDDL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING BTREE (id)`, quoteIdent(names.AuxIDIndex), quoteIdent(names.AuxTable))

	changesDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL,
		resource_revision TEXT UNIQUE,
		change_type TEXT NOT NULL,
		app_user TEXT,
		"timestamp" TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		listeners TEXT[] NOT NULL DEFAULT '{}',
		data JSONB
	)`, quoteIdent(names.ChangesTable))

	searchIdxDDL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (search jsonb_path_ops)`, quoteIdent(names.SearchIndex), quoteIdent(names.MainTable))

	stmts := []string{mainDDL, auxDDL, auxIdxDDL, changesDDL, searchIdxDDL}

	if len(rts.Files) > 0 {
		filesDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			subpath TEXT NOT NULL,
			content_type TEXT,
			blob BYTEA,
			UNIQUE (id, subpath)
		)`, quoteIdent(names.FilesTable), quoteIdent(names.MainTable))
		stmts = append(stmts, filesDDL)
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// quoteIdent double-quotes a Postgres identifier that has already been
// through layout.ChopLongName, guarding against accidental reserved-word
// collisions ("user" among them, hence app_user above for the changes
// table's user column).
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
