// Package config loads and validates simulation run configurations.
//
// Configs are YAML documents validated against an embedded CUE schema
// before decoding, so structural errors surface with schema-level
// messages instead of zero-valued fields downstream.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// SinkSpec configures one output destination.
type SinkSpec struct {
	Name string `yaml:"name"`

	// Type is one of "console", "file", "sqlite".
	Type string `yaml:"type"`

	// Path is the output directory (file) or database file (sqlite).
	Path string `yaml:"path"`

	// Topics maps schema names to destination topics. Unmapped schemas
	// use the schema name as the topic.
	Topics map[string]string `yaml:"topics"`
}

// Config is a fully parsed simulation run configuration.
type Config struct {
	Scenario        string
	Seed            int64
	Start           time.Time
	Duration        time.Duration
	Step            time.Duration
	DrawsPerStep    int
	InitialEntities map[string]int
	Journal         string
	Sinks           []SinkSpec
}

// fileConfig is the YAML shape before durations and timestamps parse.
type fileConfig struct {
	Scenario        string         `yaml:"scenario"`
	Seed            int64          `yaml:"seed"`
	StartTime       string         `yaml:"start_time"`
	Duration        string         `yaml:"duration"`
	Step            string         `yaml:"step"`
	DrawsPerStep    int            `yaml:"draws_per_step"`
	InitialEntities map[string]int `yaml:"initial_entities"`
	Journal         string         `yaml:"journal"`
	Sinks           []SinkSpec     `yaml:"sinks"`
}

// Load reads, validates, and parses the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and decodes a YAML config document.
func Parse(data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg := &Config{
		Scenario:        fc.Scenario,
		Seed:            fc.Seed,
		DrawsPerStep:    fc.DrawsPerStep,
		InitialEntities: fc.InitialEntities,
		Journal:         fc.Journal,
		Sinks:           fc.Sinks,
	}
	if cfg.DrawsPerStep == 0 {
		cfg.DrawsPerStep = 1
	}

	var err error
	if cfg.Duration, err = parseDuration("duration", fc.Duration); err != nil {
		return nil, err
	}
	if cfg.Step, err = parseDuration("step", fc.Step); err != nil {
		return nil, err
	}

	switch fc.StartTime {
	case "", "now":
		cfg.Start = time.Now().UTC().Truncate(time.Second)
	default:
		t, err := time.Parse(time.RFC3339, fc.StartTime)
		if err != nil {
			return nil, fmt.Errorf("config field start_time: %w", err)
		}
		cfg.Start = t
	}

	for _, s := range cfg.Sinks {
		if (s.Type == "file" || s.Type == "sqlite") && s.Path == "" {
			return nil, fmt.Errorf("sink %s: type %s requires a path", s.Name, s.Type)
		}
	}

	return cfg, nil
}

// validate unifies the raw document with the embedded CUE schema.
func validate(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(doc))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config field %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config field %s: must be positive, got %s", field, d)
	}
	return d, nil
}
