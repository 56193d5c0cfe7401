package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// InMemoryRepository keeps everything in maps guarded by a RWMutex. Used by
// tests and by the CLI when no database is configured.
type InMemoryRepository struct {
	mu        sync.RWMutex
	ruleSets  map[pillar.Pillar]*rules.RuleSet
	prompts   map[string]*rules.PromptDocument
	overrides *thresholds.Overrides
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		ruleSets: make(map[pillar.Pillar]*rules.RuleSet),
		prompts:  make(map[string]*rules.PromptDocument),
	}
}

func (r *InMemoryRepository) Close() {}

func (r *InMemoryRepository) GetRuleSet(_ context.Context, p pillar.Pillar) (*rules.RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.ruleSets[p]
	if !ok {
		return nil, ErrRuleSetNotFound
	}

	out := &rules.RuleSet{Pillar: rs.Pillar, Rules: make([]rules.Rule, len(rs.Rules))}
	copy(out.Rules, rs.Rules)
	return out, nil
}

func (r *InMemoryRepository) PutRuleSet(_ context.Context, rs *rules.RuleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &rules.RuleSet{Pillar: rs.Pillar, Rules: make([]rules.Rule, len(rs.Rules))}
	copy(stored.Rules, rs.Rules)
	r.ruleSets[rs.Pillar] = stored
	return nil
}

func (r *InMemoryRepository) DeleteRuleSet(_ context.Context, p pillar.Pillar) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ruleSets[p]; !ok {
		return ErrRuleSetNotFound
	}
	delete(r.ruleSets, p)
	return nil
}

func (r *InMemoryRepository) CreatePrompt(_ context.Context, doc *rules.PromptDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == "" {
		id, _ := uuid.NewV7()
		doc.ID = id.String()
	}
	if doc.LastModified.IsZero() {
		doc.LastModified = time.Now().UTC()
	}

	stored := *doc
	r.prompts[doc.ID] = &stored
	return nil
}

func (r *InMemoryRepository) ListPrompts(_ context.Context, category string) ([]*rules.PromptDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(category)
	var docs []*rules.PromptDocument
	for _, doc := range r.prompts {
		if needle != "" && !strings.Contains(strings.ToLower(doc.Category), needle) {
			continue
		}
		copied := *doc
		docs = append(docs, &copied)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].LastModified.After(docs[j].LastModified)
	})

	return docs, nil
}

func (r *InMemoryRepository) LatestPromptByCategory(ctx context.Context, label string) (*rules.PromptDocument, error) {
	docs, err := r.ListPrompts(ctx, label)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrPromptNotFound
	}
	return docs[0], nil
}

func (r *InMemoryRepository) GetOverrides(_ context.Context) (*thresholds.Overrides, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.overrides == nil {
		return &thresholds.Overrides{}, nil
	}
	copied := *r.overrides
	return &copied, nil
}

func (r *InMemoryRepository) PutOverrides(_ context.Context, o *thresholds.Overrides) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *o
	r.overrides = &copied
	return nil
}
