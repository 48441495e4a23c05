// Package config loads the structured curation config: quota ceilings and
// the upstream source list.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockwire/news-curator/internal/domain"
)

// Source describes one upstream feed the fetcher polls.
type Source struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Network string `yaml:"network"`

	// BreakingCategories marks items whose feed category matches one of
	// these values as breaking news.
	BreakingCategories []string `yaml:"breaking_categories"`
}

type File struct {
	Quotas  domain.QuotaConfig `yaml:"quotas"`
	Sources []Source           `yaml:"sources"`
}

func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parsing config file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("validating config file: %w", err)
	}

	return f, nil
}

func (f File) Validate() error {
	if err := f.Quotas.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(f.Sources))
	for i, s := range f.Sources {
		if s.URL == "" {
			return fmt.Errorf("source %d has no URL", i)
		}
		if seen[s.URL] {
			return fmt.Errorf("duplicate source URL %q", s.URL)
		}
		seen[s.URL] = true

		if s.Network == "" {
			return fmt.Errorf("source %q has no network tag", s.URL)
		}
		if s.Network != domain.NetworkGeneric && !f.Quotas.IsClientNetwork(s.Network) {
			return fmt.Errorf("source %q network %q is neither generic nor a client network", s.URL, s.Network)
		}
	}

	return nil
}
