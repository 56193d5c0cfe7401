package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dutylens/dutylens/internal/dataset"
	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/notify"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// MockRepository is a mock implementation of repository.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetRuleSet(ctx context.Context, p pillar.Pillar) (*rules.RuleSet, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.RuleSet), args.Error(1)
}

func (m *MockRepository) PutRuleSet(ctx context.Context, rs *rules.RuleSet) error {
	args := m.Called(ctx, rs)
	return args.Error(0)
}

func (m *MockRepository) DeleteRuleSet(ctx context.Context, p pillar.Pillar) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) CreatePrompt(ctx context.Context, doc *rules.PromptDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) ListPrompts(ctx context.Context, category string) ([]*rules.PromptDocument, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*rules.PromptDocument), args.Error(1)
}

func (m *MockRepository) LatestPromptByCategory(ctx context.Context, label string) (*rules.PromptDocument, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rules.PromptDocument), args.Error(1)
}

func (m *MockRepository) GetOverrides(ctx context.Context) (*thresholds.Overrides, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*thresholds.Overrides), args.Error(1)
}

func (m *MockRepository) PutOverrides(ctx context.Context, o *thresholds.Overrides) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) Close() {
	m.Called()
}

type capturedEvent struct {
	subject string
	data    interface{}
}

// capturePublisher records every published event.
type capturePublisher struct {
	events []capturedEvent
}

func (c *capturePublisher) PublishJSON(_ context.Context, subject string, data interface{}) error {
	c.events = append(c.events, capturedEvent{subject: subject, data: data})
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func newTestService(repo repository.Repository, loader *dataset.Loader, pub notify.Publisher) *Service {
	return NewService(repo, loader, nil, pub, logging.New(slog.LevelError, "text"))
}

func TestLoadRuleSet(t *testing.T) {
	ctx := context.Background()

	t.Run("structured set wins", func(t *testing.T) {
		repo := new(MockRepository)
		stored := &rules.RuleSet{
			Pillar: pillar.PriceValue,
			Rules:  []rules.Rule{{ID: "pv-1", Severity: rules.SeverityHigh, Conditions: []rules.Condition{{Left: "Fee", Op: rules.OpGT, Right: "50"}}}},
		}
		repo.On("GetRuleSet", ctx, pillar.PriceValue).Return(stored, nil)

		svc := newTestService(repo, nil, nil)
		rs, source, err := svc.LoadRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		assert.Equal(t, thresholds.SourceStructured, source)
		assert.Len(t, rs.Rules, 1)
	})

	t.Run("prompt rules when no structured set", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetRuleSet", ctx, pillar.PriceValue).Return(nil, repository.ErrRuleSetNotFound)
		repo.On("LatestPromptByCategory", ctx, "price & value").Return(&rules.PromptDocument{
			Category: "price & value review",
			Rules:    []rules.Rule{{ID: "pv-p", Severity: rules.SeverityMedium, Conditions: []rules.Condition{{Left: "Fee", Op: rules.OpGT, Right: "75"}}}},
		}, nil)

		svc := newTestService(repo, nil, nil)
		rs, source, err := svc.LoadRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		assert.Equal(t, thresholds.SourcePromptLibrary, source)
		require.NotNil(t, rs)
		assert.Equal(t, "pv-p", rs.Rules[0].ID)
	})

	t.Run("nil when nothing is stored", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetRuleSet", ctx, pillar.PriceValue).Return(nil, repository.ErrRuleSetNotFound)
		repo.On("LatestPromptByCategory", ctx, "price & value").Return(nil, repository.ErrPromptNotFound)

		svc := newTestService(repo, nil, nil)
		rs, _, err := svc.LoadRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		assert.Nil(t, rs)
	})

	t.Run("prompt without rules does not count", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetRuleSet", ctx, pillar.PriceValue).Return(nil, repository.ErrRuleSetNotFound)
		repo.On("LatestPromptByCategory", ctx, "price & value").Return(&rules.PromptDocument{
			Category: "price & value", Text: "Flag fees above £75.",
		}, nil)

		svc := newTestService(repo, nil, nil)
		rs, _, err := svc.LoadRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		assert.Nil(t, rs)
	})
}

func TestAnalyzeWithRules(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	stored := &rules.RuleSet{
		Pillar: pillar.ConsumerSupport,
		Rules: []rules.Rule{{
			ID: "cs-wait", Severity: rules.SeverityHigh, All: true,
			Conditions: []rules.Condition{
				{Left: "Avg_Wait_Time_Min", Op: rules.OpGT, Right: "8"},
				{Left: "First_Contact_Resolution", Op: rules.OpIsNo},
			},
			Message: "Long wait time (${Avg_Wait_Time_Min} min)",
		}},
	}
	repo.On("GetRuleSet", ctx, pillar.ConsumerSupport).Return(stored, nil)

	pub := &capturePublisher{}
	svc := newTestService(repo, nil, pub)

	dataRows := []rules.Row{
		{"Support_ID": "S1", "Avg_Wait_Time_Min": "12", "First_Contact_Resolution": "No"},
		{"Support_ID": "S2", "Avg_Wait_Time_Min": "3", "First_Contact_Resolution": "Yes"},
	}

	report, err := svc.Analyze(ctx, pillar.ConsumerSupport, dataRows)
	require.NoError(t, err)

	assert.Equal(t, pillar.ConsumerSupport, report.Pillar)
	assert.Equal(t, "1 rules (structured)", report.RulesSummary)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "S1", report.Findings[0].ID)
	assert.Equal(t, rules.FindingHigh, report.Findings[0].Severity)
	assert.Equal(t, "Long wait time (12 min)", report.Findings[0].Messages[0].Text)
	assert.False(t, report.GeneratedAt.IsZero())

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.SubjectFindingsSynced, pub.events[0].subject)
}

func TestAnalyzeFallback(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("GetRuleSet", ctx, pillar.ConsumerSupport).Return(nil, repository.ErrRuleSetNotFound)
	repo.On("LatestPromptByCategory", ctx, "consumer support").Return(nil, repository.ErrPromptNotFound)
	repo.On("GetOverrides", ctx).Return(&thresholds.Overrides{}, nil)

	svc := newTestService(repo, nil, nil)

	dataRows := []rules.Row{
		{"Support_ID": "S1", "Avg_Wait_Time_Min": "12", "First_Contact_Resolution": "No"},
	}

	report, err := svc.Analyze(ctx, pillar.ConsumerSupport, dataRows)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, "Support Interaction S1", report.Findings[0].Title)
	assert.Equal(t, "Wait > 8m · CSAT ≤ 2 · SLA breach > 72h (default)", report.RulesSummary)
}

func TestAnalyzeFallbackWithPromptThresholds(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("GetRuleSet", ctx, pillar.ConsumerSupport).Return(nil, repository.ErrRuleSetNotFound)
	repo.On("LatestPromptByCategory", ctx, "consumer support").Return(&rules.PromptDocument{
		Category: "consumer support",
		Text:     "Escalate when average wait time exceeds 15 minutes.",
	}, nil)
	repo.On("GetOverrides", ctx).Return(&thresholds.Overrides{}, nil)

	svc := newTestService(repo, nil, nil)

	dataRows := []rules.Row{
		{"Support_ID": "S1", "Avg_Wait_Time_Min": "12", "First_Contact_Resolution": "No"},
	}

	report, err := svc.Analyze(ctx, pillar.ConsumerSupport, dataRows)
	require.NoError(t, err)

	// The prompt raised the wait threshold above 12 minutes.
	assert.Empty(t, report.Findings)
	assert.Contains(t, report.RulesSummary, "Wait > 15m")
	assert.Contains(t, report.RulesSummary, "(prompt-library)")
}

func TestAnalyzePillarLoadsDataset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	csv := "Support_ID,Avg_Wait_Time_Min,First_Contact_Resolution\nS1,12,No\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ConsumerSupport.csv"), []byte(csv), 0o644))

	repo := new(MockRepository)
	repo.On("GetRuleSet", ctx, pillar.ConsumerSupport).Return(nil, repository.ErrRuleSetNotFound)
	repo.On("LatestPromptByCategory", ctx, "consumer support").Return(nil, repository.ErrPromptNotFound)
	repo.On("GetOverrides", ctx).Return(&thresholds.Overrides{}, nil)

	svc := newTestService(repo, dataset.NewLoader(dir), nil)

	report, err := svc.AnalyzePillar(ctx, pillar.ConsumerSupport)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "S1", report.Findings[0].ID)
}

func TestPutRuleSetValidatesAndNotifies(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid set is rejected before storage", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, nil, nil)

		bad := &rules.RuleSet{Pillar: pillar.PriceValue, Rules: []rules.Rule{{ID: "x", Severity: rules.SeverityHigh}}}
		assert.ErrorIs(t, svc.PutRuleSet(ctx, bad), rules.ErrNoConditions)
		repo.AssertNotCalled(t, "PutRuleSet", mock.Anything, mock.Anything)
	})

	t.Run("valid set is stored and announced", func(t *testing.T) {
		repo := new(MockRepository)
		rs := &rules.RuleSet{
			Pillar: pillar.PriceValue,
			Rules:  []rules.Rule{{ID: "pv-1", Severity: rules.SeverityHigh, Conditions: []rules.Condition{{Left: "Fee", Op: rules.OpGT, Right: "50"}}}},
		}
		repo.On("PutRuleSet", ctx, rs).Return(nil)

		pub := &capturePublisher{}
		svc := newTestService(repo, nil, pub)
		require.NoError(t, svc.PutRuleSet(ctx, rs))

		require.Len(t, pub.events, 1)
		assert.Equal(t, notify.SubjectRulesChanged, pub.events[0].subject)
		event := pub.events[0].data.(notify.RuleChangeEvent)
		assert.Equal(t, "put", event.Action)
		assert.Equal(t, pillar.PriceValue, event.Pillar)
	})
}

func TestCreatePromptValidatesEmbeddedRules(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	svc := newTestService(repo, nil, nil)

	doc := &rules.PromptDocument{
		Category: "price & value",
		Text:     "Structured rules attached.",
		Rules:    []rules.Rule{{ID: "bad", Severity: "SHOUTY", Conditions: []rules.Condition{{Left: "Fee", Op: rules.OpGT}}}},
	}
	assert.ErrorIs(t, svc.CreatePrompt(ctx, doc), rules.ErrUnknownSeverity)
	repo.AssertNotCalled(t, "CreatePrompt", mock.Anything, mock.Anything)
}

func TestThresholds(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	rate := 0.75
	repo.On("GetOverrides", ctx).Return(&thresholds.Overrides{
		PriceValue: &thresholds.PriceValueOverride{OverpricedDeltaPct: &rate},
	}, nil)
	repo.On("LatestPromptByCategory", ctx, "price & value").Return(nil, repository.ErrPromptNotFound)

	svc := newTestService(repo, nil, nil)

	got, err := svc.Thresholds(ctx, pillar.PriceValue)
	require.NoError(t, err)
	pv := got.(thresholds.PriceValue)
	assert.Equal(t, 0.75, pv.OverpricedDeltaPct)
	assert.Equal(t, thresholds.SourceStructured, pv.Source)
}
