package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/feedback"
	"github.com/snarg/contentgen/internal/history"
)

const pgForeignKeyViolation = "23503"

const generationColumns = `id, source, file_names, requested, valid, warnings,
	success_rate, failed, error_category, artifacts, duration_ms, created_at`

// SaveGeneration inserts g, or replaces its mutable fields if it exists.
func (db *DB) SaveGeneration(ctx context.Context, g *history.Generation) error {
	artifacts, err := json.Marshal(g.Artifacts)
	if err != nil {
		return fmt.Errorf("encode artifacts: %w", err)
	}
	fileNames := g.FileNames
	if fileNames == nil {
		fileNames = []string{}
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO generations (`+generationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			valid = EXCLUDED.valid,
			warnings = EXCLUDED.warnings,
			success_rate = EXCLUDED.success_rate,
			failed = EXCLUDED.failed,
			error_category = EXCLUDED.error_category,
			artifacts = EXCLUDED.artifacts
	`,
		g.ID, g.Source, fileNames, keyStrings(g.Requested), keyStrings(g.Valid), keyStrings(g.Warnings),
		g.SuccessRate, g.Failed, g.ErrorCategory, artifacts, g.DurationMs, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

func (db *DB) Generation(ctx context.Context, id uuid.UUID) (*history.Generation, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = $1`, id)
	g, err := scanGeneration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// pageLimit maps limit <= 0 to NULL, which Postgres reads as LIMIT ALL.
func pageLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// ListGenerations returns the newest generations first.
func (db *DB) ListGenerations(ctx context.Context, limit int) ([]history.Generation, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+generationColumns+`
		FROM generations
		ORDER BY created_at DESC
		LIMIT $1
	`, pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []history.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, rows.Err()
}

// SaveFeedback stores f. An unknown generation gives history.ErrNotFound.
func (db *DB) SaveFeedback(ctx context.Context, f feedback.Feedback) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO feedback (id, generation_id, output, rating, reason, comment, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)
	`, f.ID, f.GenerationID, string(f.Output), string(f.Rating), f.Reason, f.Comment, f.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return history.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (db *DB) ListFeedback(ctx context.Context, generationID uuid.UUID) ([]feedback.Feedback, error) {
	var exists bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM generations WHERE id = $1)`, generationID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, history.ErrNotFound
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, generation_id, output, rating, COALESCE(reason, ''), COALESCE(comment, ''), created_at
		FROM feedback
		WHERE generation_id = $1
		ORDER BY created_at
	`, generationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []feedback.Feedback{}
	for rows.Next() {
		var f feedback.Feedback
		var output, rating string
		if err := rows.Scan(&f.ID, &f.GenerationID, &output, &rating, &f.Reason, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Output = analysis.Key(output)
		f.Rating = feedback.Rating(rating)
		result = append(result, f)
	}
	return result, rows.Err()
}

func scanGeneration(row pgx.Row) (*history.Generation, error) {
	var (
		g                          history.Generation
		requested, valid, warnings []string
		errorCategory              *string
		artifacts                  []byte
	)
	err := row.Scan(
		&g.ID, &g.Source, &g.FileNames, &requested, &valid, &warnings,
		&g.SuccessRate, &g.Failed, &errorCategory, &artifacts, &g.DurationMs, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.Requested = stringKeys(requested)
	g.Valid = stringKeys(valid)
	g.Warnings = stringKeys(warnings)
	if errorCategory != nil {
		g.ErrorCategory = *errorCategory
	}
	g.Artifacts = []history.Artifact{}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &g.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	return &g, nil
}

func keyStrings(keys []analysis.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func stringKeys(ss []string) []analysis.Key {
	out := make([]analysis.Key, len(ss))
	for i, s := range ss {
		out[i] = analysis.Key(s)
	}
	return out
}
