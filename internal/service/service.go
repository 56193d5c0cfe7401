// Package service composes the rule store, dataset ingestion, evaluation and
// fallback analysis into the operations the API exposes.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dutylens/dutylens/internal/analyzer"
	"github.com/dutylens/dutylens/internal/cache"
	"github.com/dutylens/dutylens/internal/dataset"
	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/metrics"
	"github.com/dutylens/dutylens/internal/notify"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// RowCache is the subset of the dataset cache the service uses. Nil-able so
// the service runs without Redis.
type RowCache interface {
	Get(ctx context.Context, name string) ([]rules.Row, error)
	Put(ctx context.Context, name string, dataRows []rules.Row) error
	Invalidate(ctx context.Context, name string) error
}

// Report is the payload produced by one pillar analysis.
type Report struct {
	Pillar       pillar.Pillar   `json:"pillar"`
	GeneratedAt  time.Time       `json:"generatedAt"`
	RulesSummary string          `json:"rulesSummary"`
	Findings     []rules.Finding `json:"findings"`
}

type Service struct {
	repo      repository.Repository
	loader    *dataset.Loader
	rowCache  RowCache
	publisher notify.Publisher
	logger    *logging.Logger
}

func NewService(repo repository.Repository, loader *dataset.Loader, rowCache RowCache, publisher notify.Publisher, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		loader:    loader,
		rowCache:  rowCache,
		publisher: publisher,
		logger:    logger,
	}
}

// LoadRuleSet resolves the active rule set for a pillar. A structured set
// stored for the pillar wins; otherwise the newest prompt document for the
// pillar's category is consulted for embedded rules. Returns nil with source
// "fallback" when neither yields rules, which callers treat as a signal to
// run the hardcoded analyzer.
func (s *Service) LoadRuleSet(ctx context.Context, p pillar.Pillar) (*rules.RuleSet, thresholds.Source, error) {
	rs, err := s.repo.GetRuleSet(ctx, p)
	if err == nil && len(rs.Rules) > 0 {
		return rs, thresholds.SourceStructured, nil
	}
	if err != nil && !errors.Is(err, repository.ErrRuleSetNotFound) {
		return nil, thresholds.SourceDefault, err
	}

	doc, err := s.repo.LatestPromptByCategory(ctx, p.CategoryLabel())
	if err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			return nil, thresholds.SourceDefault, nil
		}
		return nil, thresholds.SourceDefault, err
	}

	if len(doc.Rules) > 0 {
		return &rules.RuleSet{Pillar: p, Rules: doc.Rules}, thresholds.SourcePromptLibrary, nil
	}

	return nil, thresholds.SourceDefault, nil
}

// promptText returns the newest prompt text for a pillar, or "" when the
// library has nothing for its category.
func (s *Service) promptText(ctx context.Context, p pillar.Pillar) (string, error) {
	doc, err := s.repo.LatestPromptByCategory(ctx, p.CategoryLabel())
	if err != nil {
		if errors.Is(err, repository.ErrPromptNotFound) {
			return "", nil
		}
		return "", err
	}
	return doc.Text, nil
}

// Analyze evaluates a pillar's rows. With an active rule set it runs the
// deterministic engine; without one it derives thresholds and runs the
// pillar's fallback analyzer.
func (s *Service) Analyze(ctx context.Context, p pillar.Pillar, dataRows []rules.Row) (*Report, error) {
	start := time.Now()

	rs, source, err := s.LoadRuleSet(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule set: %w", err)
	}

	report := &Report{Pillar: p, GeneratedAt: time.Now().UTC()}

	if rs != nil {
		report.Findings = engine.EvaluateDataset(p, dataRows, rs)
		report.RulesSummary = fmt.Sprintf("%d rules (%s)", len(rs.Rules), source)
		metrics.AnalysesTotal.WithLabelValues(string(p), string(source)).Inc()
	} else {
		findings, summary, err := s.analyzeFallback(ctx, p, dataRows)
		if err != nil {
			return nil, err
		}
		report.Findings = findings
		report.RulesSummary = summary
		metrics.AnalysesTotal.WithLabelValues(string(p), "fallback").Inc()
	}

	for _, f := range report.Findings {
		metrics.FindingsTotal.WithLabelValues(string(p), string(f.Severity)).Inc()
	}
	metrics.AnalysisDuration.WithLabelValues(string(p)).Observe(time.Since(start).Seconds())

	s.logger.InfoContext(ctx, "pillar analysis complete",
		"pillar", p, "rows", len(dataRows), "findings", len(report.Findings), "summary", report.RulesSummary)

	if err := s.publisher.PublishJSON(ctx, notify.SubjectFindingsSynced, report); err != nil {
		s.logger.WarnContext(ctx, "failed to publish findings", "error", err)
	}

	return report, nil
}

func (s *Service) analyzeFallback(ctx context.Context, p pillar.Pillar, dataRows []rules.Row) ([]rules.Finding, string, error) {
	o, err := s.repo.GetOverrides(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load threshold overrides: %w", err)
	}

	text, err := s.promptText(ctx, p)
	if err != nil {
		return nil, "", err
	}

	switch p {
	case pillar.ProductsServices:
		t := thresholds.DeriveProductsServices(o.ProductsServices, text)
		return analyzer.AnalyzeProductsServices(dataRows, t), t.Summary(), nil
	case pillar.PriceValue:
		t := thresholds.DerivePriceValue(o.PriceValue, text)
		return analyzer.AnalyzePriceValue(dataRows, t), t.Summary(), nil
	case pillar.ConsumerUnderstanding:
		t := thresholds.DeriveConsumerUnderstanding(o.ConsumerUnderstanding, text)
		return analyzer.AnalyzeConsumerUnderstanding(dataRows, t), t.Summary(), nil
	case pillar.ConsumerSupport:
		t := thresholds.DeriveConsumerSupport(o.ConsumerSupport, text)
		return analyzer.AnalyzeConsumerSupport(dataRows, t), t.Summary(), nil
	}

	return nil, "", fmt.Errorf("unknown pillar %q", p)
}

// AnalyzePillar loads the pillar's dataset (through the row cache when
// configured) and analyzes it.
func (s *Service) AnalyzePillar(ctx context.Context, p pillar.Pillar) (*Report, error) {
	dataRows, err := s.loadRows(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, p, dataRows)
}

func (s *Service) loadRows(ctx context.Context, p pillar.Pillar) ([]rules.Row, error) {
	name := dataset.FileFor(p)

	if s.rowCache != nil {
		if dataRows, err := s.rowCache.Get(ctx, name); err == nil {
			return dataRows, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "dataset cache read failed", "dataset", name, "error", err)
		}
	}

	dataRows, err := s.loader.Load(name)
	if err != nil {
		return nil, err
	}

	if s.rowCache != nil {
		if err := s.rowCache.Put(ctx, name, dataRows); err != nil {
			s.logger.WarnContext(ctx, "dataset cache write failed", "dataset", name, "error", err)
		}
	}

	return dataRows, nil
}

// KnownDataset reports whether name is one of the required dataset files.
func KnownDataset(name string) bool {
	for _, n := range dataset.Required {
		if n == name {
			return true
		}
	}
	return false
}

// UploadDataset parses and stores a CSV extract, replacing any cached rows.
// Returns the number of data rows accepted.
func (s *Service) UploadDataset(ctx context.Context, name string, data []byte) (int, error) {
	dataRows, err := dataset.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	if err := s.loader.Save(name, data); err != nil {
		return 0, err
	}

	if s.rowCache != nil {
		if err := s.rowCache.Put(ctx, name, dataRows); err != nil {
			s.logger.WarnContext(ctx, "dataset cache write failed", "dataset", name, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "dataset uploaded", "dataset", name, "rows", len(dataRows))
	return len(dataRows), nil
}

// DatasetRows returns the raw rows of a named dataset.
func (s *Service) DatasetRows(ctx context.Context, name string) ([]rules.Row, error) {
	return s.loader.Load(name)
}

// DatasetStatus verifies every required dataset file.
func (s *Service) DatasetStatus(ctx context.Context) dataset.Status {
	return s.loader.Verify()
}

// GetRuleSet returns the stored structured rule set for a pillar.
func (s *Service) GetRuleSet(ctx context.Context, p pillar.Pillar) (*rules.RuleSet, error) {
	return s.repo.GetRuleSet(ctx, p)
}

// PutRuleSet validates and stores a rule set, then notifies listeners.
func (s *Service) PutRuleSet(ctx context.Context, rs *rules.RuleSet) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	if err := s.repo.PutRuleSet(ctx, rs); err != nil {
		return err
	}
	s.publishChange(ctx, notify.SubjectRulesChanged, rs.Pillar, "put")
	return nil
}

// DeleteRuleSet removes a pillar's structured rule set.
func (s *Service) DeleteRuleSet(ctx context.Context, p pillar.Pillar) error {
	if err := s.repo.DeleteRuleSet(ctx, p); err != nil {
		return err
	}
	s.publishChange(ctx, notify.SubjectRulesChanged, p, "delete")
	return nil
}

// CreatePrompt stores a prompt document and notifies listeners.
func (s *Service) CreatePrompt(ctx context.Context, doc *rules.PromptDocument) error {
	for _, r := range doc.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if err := s.repo.CreatePrompt(ctx, doc); err != nil {
		return err
	}
	p, _ := pillar.ParseCategory(doc.Category)
	s.publishChange(ctx, notify.SubjectPromptsChanged, p, "create")
	return nil
}

// ListPrompts lists prompt documents, optionally filtered by category.
func (s *Service) ListPrompts(ctx context.Context, category string) ([]*rules.PromptDocument, error) {
	return s.repo.ListPrompts(ctx, category)
}

// Thresholds resolves the effective thresholds for a pillar, as the fallback
// analyzer would see them.
func (s *Service) Thresholds(ctx context.Context, p pillar.Pillar) (any, error) {
	o, err := s.repo.GetOverrides(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.promptText(ctx, p)
	if err != nil {
		return nil, err
	}

	switch p {
	case pillar.ProductsServices:
		return thresholds.DeriveProductsServices(o.ProductsServices, text), nil
	case pillar.PriceValue:
		return thresholds.DerivePriceValue(o.PriceValue, text), nil
	case pillar.ConsumerUnderstanding:
		return thresholds.DeriveConsumerUnderstanding(o.ConsumerUnderstanding, text), nil
	case pillar.ConsumerSupport:
		return thresholds.DeriveConsumerSupport(o.ConsumerSupport, text), nil
	}

	return nil, fmt.Errorf("unknown pillar %q", p)
}

// GetOverrides returns the stored threshold overrides.
func (s *Service) GetOverrides(ctx context.Context) (*thresholds.Overrides, error) {
	return s.repo.GetOverrides(ctx)
}

// PutPillarOverride replaces the override block for one pillar, leaving the
// other pillars' overrides untouched.
func (s *Service) PutPillarOverride(ctx context.Context, p pillar.Pillar, raw json.RawMessage) error {
	o, err := s.repo.GetOverrides(ctx)
	if err != nil {
		return err
	}

	switch p {
	case pillar.ProductsServices:
		var ov thresholds.ProductsServicesOverride
		if err := json.Unmarshal(raw, &ov); err != nil {
			return fmt.Errorf("invalid override body: %w", err)
		}
		o.ProductsServices = &ov
	case pillar.PriceValue:
		var ov thresholds.PriceValueOverride
		if err := json.Unmarshal(raw, &ov); err != nil {
			return fmt.Errorf("invalid override body: %w", err)
		}
		o.PriceValue = &ov
	case pillar.ConsumerUnderstanding:
		var ov thresholds.ConsumerUnderstandingOverride
		if err := json.Unmarshal(raw, &ov); err != nil {
			return fmt.Errorf("invalid override body: %w", err)
		}
		o.ConsumerUnderstanding = &ov
	case pillar.ConsumerSupport:
		var ov thresholds.ConsumerSupportOverride
		if err := json.Unmarshal(raw, &ov); err != nil {
			return fmt.Errorf("invalid override body: %w", err)
		}
		o.ConsumerSupport = &ov
	default:
		return fmt.Errorf("unknown pillar %q", p)
	}

	return s.PutOverrides(ctx, o)
}

// PutOverrides stores threshold overrides and notifies listeners.
func (s *Service) PutOverrides(ctx context.Context, o *thresholds.Overrides) error {
	if err := s.repo.PutOverrides(ctx, o); err != nil {
		return err
	}
	s.publishChange(ctx, notify.SubjectRulesChanged, "", "overrides")
	return nil
}

func (s *Service) publishChange(ctx context.Context, subject string, p pillar.Pillar, action string) {
	event := notify.RuleChangeEvent{Pillar: p, Action: action, Timestamp: time.Now().UTC()}
	if err := s.publisher.PublishJSON(ctx, subject, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish change event", "subject", subject, "error", err)
	}
}
