package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// GetRuleSet retrieves the rule set for a pillar.
func (r *PostgresRepository) GetRuleSet(ctx context.Context, p pillar.Pillar) (*rules.RuleSet, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT rules FROM rule_sets WHERE pillar = $1`

	var rulesJSON []byte
	err := r.pool.QueryRow(ctx, query, string(p)).Scan(&rulesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleSetNotFound
		}
		return nil, fmt.Errorf("failed to get rule set: %w", err)
	}

	rs := &rules.RuleSet{Pillar: p}
	if err := json.Unmarshal(rulesJSON, &rs.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	return rs, nil
}

// PutRuleSet upserts the rule set for its pillar.
func (r *PostgresRepository) PutRuleSet(ctx context.Context, rs *rules.RuleSet) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rulesJSON, err := json.Marshal(rs.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	query := `
		INSERT INTO rule_sets (pillar, rules, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pillar) DO UPDATE SET rules = EXCLUDED.rules, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, string(rs.Pillar), rulesJSON); err != nil {
		return fmt.Errorf("failed to put rule set: %w", err)
	}

	return nil
}

// DeleteRuleSet removes the rule set for a pillar.
func (r *PostgresRepository) DeleteRuleSet(ctx context.Context, p pillar.Pillar) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM rule_sets WHERE pillar = $1`, string(p))
	if err != nil {
		return fmt.Errorf("failed to delete rule set: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRuleSetNotFound
	}

	return nil
}

// CreatePrompt stores a new prompt document, generating its ID and
// modification timestamp when absent.
func (r *PostgresRepository) CreatePrompt(ctx context.Context, doc *rules.PromptDocument) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if doc.ID == "" {
		id, _ := uuid.NewV7()
		doc.ID = id.String()
	}
	if doc.LastModified.IsZero() {
		doc.LastModified = time.Now().UTC()
	}

	var rulesJSON []byte
	if doc.Rules != nil {
		var err error
		rulesJSON, err = json.Marshal(doc.Rules)
		if err != nil {
			return fmt.Errorf("failed to marshal prompt rules: %w", err)
		}
	}

	query := `
		INSERT INTO prompt_documents (id, category, text, rules, last_modified)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, doc.ID, doc.Category, doc.Text, rulesJSON, doc.LastModified); err != nil {
		return fmt.Errorf("failed to create prompt document: %w", err)
	}

	return nil
}

// ListPrompts returns prompt documents, optionally filtered by a category
// substring, newest first.
func (r *PostgresRepository) ListPrompts(ctx context.Context, category string) ([]*rules.PromptDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, category, text, rules, last_modified
		FROM prompt_documents
		WHERE ($1 = '' OR category ILIKE '%' || $1 || '%')
		ORDER BY last_modified DESC
	`

	pgRows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt documents: %w", err)
	}
	defer pgRows.Close()

	var docs []*rules.PromptDocument
	for pgRows.Next() {
		doc, err := scanPrompt(pgRows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// LatestPromptByCategory returns the most recently modified prompt whose
// category contains the label.
func (r *PostgresRepository) LatestPromptByCategory(ctx context.Context, label string) (*rules.PromptDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, category, text, rules, last_modified
		FROM prompt_documents
		WHERE category ILIKE '%' || $1 || '%'
		ORDER BY last_modified DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, label)
	doc, err := scanPrompt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromptNotFound
		}
		return nil, err
	}

	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*rules.PromptDocument, error) {
	var doc rules.PromptDocument
	var rulesJSON []byte

	if err := row.Scan(&doc.ID, &doc.Category, &doc.Text, &rulesJSON, &doc.LastModified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan prompt document: %w", err)
	}

	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &doc.Rules); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prompt rules: %w", err)
		}
	}

	return &doc, nil
}

// GetOverrides fetches the threshold override document. A missing row is an
// empty override set, not an error.
func (r *PostgresRepository) GetOverrides(ctx context.Context) (*thresholds.Overrides, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var overridesJSON []byte
	err := r.pool.QueryRow(ctx, `SELECT overrides FROM threshold_overrides WHERE id = 1`).Scan(&overridesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &thresholds.Overrides{}, nil
		}
		return nil, fmt.Errorf("failed to get threshold overrides: %w", err)
	}

	var o thresholds.Overrides
	if err := json.Unmarshal(overridesJSON, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal threshold overrides: %w", err)
	}

	return &o, nil
}

// PutOverrides upserts the threshold override document.
func (r *PostgresRepository) PutOverrides(ctx context.Context, o *thresholds.Overrides) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	overridesJSON, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal threshold overrides: %w", err)
	}

	query := `
		INSERT INTO threshold_overrides (id, overrides, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET overrides = EXCLUDED.overrides, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, overridesJSON); err != nil {
		return fmt.Errorf("failed to put threshold overrides: %w", err)
	}

	return nil
}
