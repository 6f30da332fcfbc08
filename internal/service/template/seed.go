package template

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/satstream-ledger/internal/domain"
)

// seedFile is the YAML catalog layout.
type seedFile struct {
	Templates []struct {
		Name        string        `yaml:"name"`
		Description string        `yaml:"description"`
		Duration    time.Duration `yaml:"duration"`
		Rate        int64         `yaml:"rate"`
		Creator     string        `yaml:"creator"`
	} `yaml:"templates"`
}

const seedCreator = "system"

// SeedResult holds seeding statistics.
type SeedResult struct {
	Inserted int
	Skipped  int
}

// SeedFromFile loads a YAML template catalog. Templates whose name already
// exists are skipped, so seeding is repeatable.
func (s *Service) SeedFromFile(ctx context.Context, path string) (SeedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("read template catalog: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SeedResult{}, fmt.Errorf("parse template catalog %s: %w", path, err)
	}

	var result SeedResult
	for i, t := range file.Templates {
		creator := t.Creator
		if creator == "" {
			creator = seedCreator
		}
		_, err := s.CreateTemplate(ctx, CreateTemplateInput{
			Name:        t.Name,
			Description: t.Description,
			Duration:    t.Duration,
			Rate:        t.Rate,
			Creator:     domain.Principal(creator),
		})
		switch {
		case err == nil:
			result.Inserted++
		case errors.Is(err, domain.ErrAlreadyExists):
			result.Skipped++
		default:
			return result, fmt.Errorf("seed template #%d (%q): %w", i+1, t.Name, err)
		}
	}

	s.log.InfoContext(ctx, "templates seeded",
		"path", path,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
	)
	return result, nil
}
