package seed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
)

const validRuleSet = `
pillar: price-value
rules:
  - id: pv-lag
    code: PV-001
    name: Slow repricing
    severity: MEDIUM
    all: true
    conditions:
      - left: Rate_Change_Lag_Days
        op: lag_days_gt
        right: "90"
    message: "Rate change delayed ${Rate_Change_Lag_Days} days"
`

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("missing directory is not an error", func(t *testing.T) {
		repo := repository.NewInMemoryRepository()
		s := NewSeeder(filepath.Join(t.TempDir(), "nope"), repo, testLogger())
		assert.NoError(t, s.Seed(ctx))
	})

	t.Run("imports valid rule set", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "price_value.yaml"), []byte(validRuleSet), 0o644))

		repo := repository.NewInMemoryRepository()
		s := NewSeeder(dir, repo, testLogger())
		require.NoError(t, s.Seed(ctx))

		rs, err := repo.GetRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		require.Len(t, rs.Rules, 1)
		assert.Equal(t, "PV-001", rs.Rules[0].Code)
		assert.Equal(t, rules.OpLagDaysGT, rs.Rules[0].Conditions[0].Op)
	})

	t.Run("never overwrites an existing set", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "price_value.yaml"), []byte(validRuleSet), 0o644))

		repo := repository.NewInMemoryRepository()
		existing := &rules.RuleSet{
			Pillar: pillar.PriceValue,
			Rules: []rules.Rule{{
				ID: "edited", Code: "PV-900", Severity: rules.SeverityLow,
				Conditions: []rules.Condition{{Left: "Fee", Op: rules.OpGT, Right: "100"}},
			}},
		}
		require.NoError(t, repo.PutRuleSet(ctx, existing))

		s := NewSeeder(dir, repo, testLogger())
		require.NoError(t, s.Seed(ctx))

		rs, err := repo.GetRuleSet(ctx, pillar.PriceValue)
		require.NoError(t, err)
		assert.Equal(t, "PV-900", rs.Rules[0].Code)
	})

	t.Run("invalid rule set fails the seed", func(t *testing.T) {
		dir := t.TempDir()
		bad := "pillar: price-value\nrules:\n  - id: x\n    code: PV-001\n    severity: MEDIUM\n    conditions: []\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))

		repo := repository.NewInMemoryRepository()
		s := NewSeeder(dir, repo, testLogger())
		assert.Error(t, s.Seed(ctx))
	})

	t.Run("shipped rule sets parse and validate", func(t *testing.T) {
		repo := repository.NewInMemoryRepository()
		s := NewSeeder("../../rulesets", repo, testLogger())
		require.NoError(t, s.Seed(ctx))

		for _, p := range pillar.All() {
			rs, err := repo.GetRuleSet(ctx, p)
			require.NoError(t, err, p)
			assert.NotEmpty(t, rs.Rules, p)
		}
	})
}
