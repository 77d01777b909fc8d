package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements returns the DDL for the Remote backend, in order.
// Every statement is idempotent.
func schemaStatements(t *TableNames) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		`CREATE TABLE IF NOT EXISTS ` + t.Folders + ` (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			is_root BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ` + t.Canvases + ` (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id TEXT NOT NULL,
			folder_id UUID NOT NULL REFERENCES ` + t.Folders + `(id),
			title TEXT NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			content JSONB NOT NULL DEFAULT '{"elements":[],"appState":{}}'::jsonb,
			thumbnail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + t.Prefix + `folders_one_root ON ` + t.Folders + `(owner_id) WHERE is_root`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Prefix + `folders_owner ON ` + t.Folders + `(owner_id, sort_order)`,
		`CREATE INDEX IF NOT EXISTS idx_` + t.Prefix + `canvases_owner_folder ON ` + t.Canvases + `(owner_id, folder_id, sort_order)`,

		`CREATE OR REPLACE FUNCTION ` + t.NextSortOrder + `(p_owner TEXT, p_folder UUID, p_at_beginning BOOLEAN)
		RETURNS INTEGER
		LANGUAGE sql STABLE AS $$
			SELECT CASE
				WHEN COUNT(*) = 0 THEN 1
				WHEN p_at_beginning THEN MIN(sort_order) - 1
				ELSE MAX(sort_order) + 1
			END
			FROM ` + t.Canvases + `
			WHERE owner_id = p_owner AND folder_id = p_folder
		$$`,

		`CREATE OR REPLACE FUNCTION ` + t.EnsureRootFolder + `(p_owner TEXT)
		RETURNS UUID
		LANGUAGE plpgsql AS $$
		DECLARE
			v_id UUID;
		BEGIN
			SELECT id INTO v_id FROM ` + t.Folders + ` WHERE owner_id = p_owner AND is_root;
			IF v_id IS NULL THEN
				INSERT INTO ` + t.Folders + ` (owner_id, name, sort_order, is_root)
				VALUES (p_owner, 'root', 0, TRUE)
				ON CONFLICT DO NOTHING;
				SELECT id INTO v_id FROM ` + t.Folders + ` WHERE owner_id = p_owner AND is_root;
			END IF;
			RETURN v_id;
		END
		$$`,
	}
}

// EnsureSchema creates the tables, indexes and server-side functions the
// Remote backend needs.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for i, stmt := range schemaStatements(tables) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return wrapErr(fmt.Sprintf("schema statement %d", i+1), err)
		}
	}
	return nil
}

// DropSchema removes everything EnsureSchema creates.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	stmts := []string{
		`DROP FUNCTION IF EXISTS ` + tables.EnsureRootFolder + `(TEXT)`,
		`DROP FUNCTION IF EXISTS ` + tables.NextSortOrder + `(TEXT, UUID, BOOLEAN)`,
		`DROP TABLE IF EXISTS ` + tables.Canvases + ` CASCADE`,
		`DROP TABLE IF EXISTS ` + tables.Folders + ` CASCADE`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return wrapErr("drop schema", err)
		}
	}
	return nil
}
