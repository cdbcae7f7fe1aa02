package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jordanwade90/ledger"
	"github.com/jordanwade90/ledger/schema"
	"gopkg.in/yaml.v3"
)

// config is the YAML file describing a ledger.
type config struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	InitialCapacity uint64 `yaml:"initial_capacity"`
	MaxRows         uint64 `yaml:"max_rows"`

	schema.Decl `yaml:",inline"`
}

func loadConfig(path string) (*config, *schema.Schema, error) {
	if path == "" {
		return nil, nil, errors.New("-config is required")
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line.
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	s, err := cfg.Decl.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, s, nil
}

// options returns ledger options for commands that modify the file.
// They flush on close so that a finished command leaves the file durable.
func (c *config) options() *ledger.Options {
	return &ledger.Options{
		InitialCapacity: c.InitialCapacity,
		MaxRows:         c.MaxRows,
		FlushOnClose:    true,
	}
}
