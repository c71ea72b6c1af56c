package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name: "create generations",
		sql: `CREATE TABLE IF NOT EXISTS generations (
	id uuid PRIMARY KEY,
	source text NOT NULL,
	file_names text[] NOT NULL DEFAULT '{}',
	requested text[] NOT NULL,
	valid text[] NOT NULL DEFAULT '{}',
	warnings text[] NOT NULL DEFAULT '{}',
	success_rate double precision NOT NULL DEFAULT 0,
	failed boolean NOT NULL DEFAULT false,
	error_category text,
	artifacts jsonb NOT NULL DEFAULT '[]',
	duration_ms bigint NOT NULL DEFAULT 0,
	created_at timestamptz NOT NULL DEFAULT now()
)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'generations')`,
	},
	{
		name:  "add generations created_at index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations (created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_generations_created_at')`,
	},
	{
		name: "create feedback",
		sql: `CREATE TABLE IF NOT EXISTS feedback (
	id uuid PRIMARY KEY,
	generation_id uuid NOT NULL REFERENCES generations (id) ON DELETE CASCADE,
	output text NOT NULL,
	rating text NOT NULL CHECK (rating IN ('up', 'down')),
	reason text,
	comment text,
	created_at timestamptz NOT NULL DEFAULT now()
)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'feedback')`,
	},
	{
		name:  "add feedback generation index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_feedback_generation ON feedback (generation_id, created_at)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_feedback_generation')`,
	},
}

// Migrate runs all pending schema migrations.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. If the apply fails (e.g. insufficient
// privileges), the error is returned and the caller should treat it as fatal.
func (db *DB) Migrate(ctx context.Context) error {
	pending := pendingMigrations(func(check string) bool {
		var exists bool
		err := db.Pool.QueryRow(ctx, check).Scan(&exists)
		return err == nil && exists
	})
	if len(pending) == 0 {
		db.log.Debug().Msg("schema up to date")
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

func pendingMigrations(applied func(check string) bool) []migration {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" && applied(m.check) {
			continue
		}
		pending = append(pending, m)
	}
	return pending
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL as a database superuser to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart contentgen.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
