// Package repository persists rule sets, prompt documents and threshold
// overrides. The evaluation core only ever reads a snapshot per call; writers
// are the rule editing API and the prompt library.
package repository

import (
	"context"
	"errors"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

var (
	ErrRuleSetNotFound = errors.New("rule set not found")
	ErrPromptNotFound  = errors.New("prompt document not found")
)

type Repository interface {
	// Rule sets, one per pillar.
	GetRuleSet(ctx context.Context, p pillar.Pillar) (*rules.RuleSet, error)
	PutRuleSet(ctx context.Context, rs *rules.RuleSet) error
	DeleteRuleSet(ctx context.Context, p pillar.Pillar) error

	// Prompt library documents.
	CreatePrompt(ctx context.Context, doc *rules.PromptDocument) error
	ListPrompts(ctx context.Context, category string) ([]*rules.PromptDocument, error)
	// LatestPromptByCategory returns the most recently modified document
	// whose category contains the given label, case-insensitively.
	LatestPromptByCategory(ctx context.Context, label string) (*rules.PromptDocument, error)

	// Threshold overrides, a single partial document covering all pillars.
	GetOverrides(ctx context.Context) (*thresholds.Overrides, error)
	PutOverrides(ctx context.Context, o *thresholds.Overrides) error

	Close()
}
