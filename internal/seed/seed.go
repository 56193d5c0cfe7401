// Package seed imports the builtin rule set files shipped with the service
// into the repository on startup.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/rules"
)

// Seeder loads builtin rule set YAML files from a directory. An existing
// stored rule set for a pillar is never overwritten: edits made through the
// API win over shipped defaults.
type Seeder struct {
	dir    string
	repo   repository.Repository
	logger *logging.Logger
}

func NewSeeder(dir string, repo repository.Repository, logger *logging.Logger) *Seeder {
	return &Seeder{dir: dir, repo: repo, logger: logger}
}

// Seed imports every *.yaml rule set file found in the directory.
func (s *Seeder) Seed(ctx context.Context) error {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		s.logger.InfoContext(ctx, "rule set directory does not exist, skipping seed", "dir", s.dir)
		return nil
	}

	files, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to list rule set files: %w", err)
	}

	seeded := 0
	skipped := 0

	for _, file := range files {
		ok, err := s.seedFile(ctx, file)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", filepath.Base(file), err)
		}
		if ok {
			seeded++
		} else {
			skipped++
		}
	}

	s.logger.InfoContext(ctx, "rule set seed complete", "seeded", seeded, "skipped", skipped)
	return nil
}

func (s *Seeder) seedFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	var rs rules.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return false, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return false, err
	}

	if _, err := s.repo.GetRuleSet(ctx, rs.Pillar); err == nil {
		return false, nil
	}

	if err := s.repo.PutRuleSet(ctx, &rs); err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "seeded builtin rule set", "pillar", rs.Pillar, "rules", len(rs.Rules))
	return true, nil
}
