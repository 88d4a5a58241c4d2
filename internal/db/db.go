// Package db provides PostgreSQL persistence for generation history.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/soul-spirits/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DefaultListLimit caps ListCocktails when no limit is given
const DefaultListLimit = 20

// MaxListLimit is the largest page ListCocktails returns
const MaxListLimit = 100

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// EnsureSchema creates the history tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveCocktail stores a completed generation. The record ID defaults to the cocktail's ID.
func (db *DB) SaveCocktail(ctx context.Context, rec *CocktailRecord) error {
	if rec.ID == uuid.Nil {
		id, err := uuid.Parse(rec.Cocktail.ID)
		if err != nil {
			id = uuid.New()
		}
		rec.ID = id
	}
	if rec.Attempt == "" {
		rec.Attempt = AttemptSubmit
	}

	recipeJSON, err := json.Marshal(rec.Cocktail.CocktailRecipe)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	profileJSON, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO cocktails (id, session_id, attempt, name, tagline, recipe, image_url, profile, critique)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		rec.ID, rec.SessionID, rec.Attempt, rec.Cocktail.Name, rec.Cocktail.Tagline,
		recipeJSON, rec.Cocktail.ImageURL, profileJSON, rec.Critique,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save cocktail: %w", err)
	}
	return nil
}

// GetCocktail retrieves a record by ID. Returns nil, nil when it does not exist.
func (db *DB) GetCocktail(ctx context.Context, id uuid.UUID) (*CocktailRecord, error) {
	var rec CocktailRecord
	var recipeJSON, profileJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, session_id, attempt, recipe, image_url, profile, critique, created_at
		 FROM cocktails WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.SessionID, &rec.Attempt, &recipeJSON, &rec.Cocktail.ImageURL,
		&profileJSON, &rec.Critique, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cocktail: %w", err)
	}

	var recipe types.CocktailRecipe
	if err := json.Unmarshal(recipeJSON, &recipe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe: %w", err)
	}
	if err := json.Unmarshal(profileJSON, &rec.Profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	rec.Cocktail.CocktailRecipe = recipe
	rec.Cocktail.ID = rec.ID.String()
	rec.Cocktail.CreatedAt = rec.CreatedAt
	return &rec, nil
}

// ListCocktails returns summaries, newest first
func (db *DB) ListCocktails(ctx context.Context, limit, offset int) ([]CocktailSummary, error) {
	limit, offset = clampPage(limit, offset)

	rows, err := db.pool.Query(ctx,
		`SELECT id, name, tagline, attempt, image_url <> '', created_at
		 FROM cocktails
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cocktails: %w", err)
	}
	defer rows.Close()

	summaries := []CocktailSummary{}
	for rows.Next() {
		var s CocktailSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Tagline, &s.Attempt, &s.HasImage, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cocktail: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cocktails: %w", err)
	}
	return summaries, nil
}

// SaveFailure records a failed attempt
func (db *DB) SaveFailure(ctx context.Context, f *GenerationFailure) error {
	if f.Attempt == "" {
		f.Attempt = AttemptSubmit
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO generation_failures (session_id, attempt, step, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		f.SessionID, f.Attempt, f.Step, f.Message,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save generation failure: %w", err)
	}
	return nil
}

// ListFailures returns the most recent failures for a session, newest first
func (db *DB) ListFailures(ctx context.Context, sessionID string, limit int) ([]GenerationFailure, error) {
	limit, _ = clampPage(limit, 0)

	rows, err := db.pool.Query(ctx,
		`SELECT id, session_id, attempt, step, message, created_at
		 FROM generation_failures
		 WHERE session_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	failures := []GenerationFailure{}
	for rows.Next() {
		var f GenerationFailure
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Attempt, &f.Step, &f.Message, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
