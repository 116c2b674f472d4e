package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
scenario: ecommerce
seed: 42
start_time: "2026-01-01T00:00:00Z"
duration: "24h"
step: "10m"
draws_per_step: 3
initial_entities:
  User: 25
  Product: 15
journal: "versions.db"
sinks:
  - name: stdout
    type: console
  - name: files
    type: file
    path: out
    topics:
      Purchase: orders
  - name: db
    type: sqlite
    path: events.db
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "ecommerce", cfg.Scenario)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, 24*time.Hour, cfg.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Step)
	assert.Equal(t, 3, cfg.DrawsPerStep)
	assert.Equal(t, map[string]int{"User": 25, "Product": 15}, cfg.InitialEntities)
	assert.Equal(t, "versions.db", cfg.Journal)

	require.Len(t, cfg.Sinks, 3)
	assert.Equal(t, "console", cfg.Sinks[0].Type)
	assert.Equal(t, map[string]string{"Purchase": "orders"}, cfg.Sinks[1].Topics)
	assert.Equal(t, "events.db", cfg.Sinks[2].Path)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
scenario: ecommerce
duration: "1h"
step: "5m"
`))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.DrawsPerStep)
	assert.Equal(t, int64(0), cfg.Seed)
	assert.Empty(t, cfg.Sinks)
	assert.WithinDuration(t, time.Now().UTC(), cfg.Start, time.Minute,
		"missing start_time defaults to now")
}

func TestParse_StartTimeNow(t *testing.T) {
	cfg, err := Parse([]byte(`
scenario: ecommerce
start_time: "now"
duration: "1h"
step: "5m"
`))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), cfg.Start, time.Minute)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing scenario", `
duration: "1h"
step: "5m"
`},
		{"bad sink type", `
scenario: ecommerce
duration: "1h"
step: "5m"
sinks:
  - name: s
    type: kafka
`},
		{"negative initial count", `
scenario: ecommerce
duration: "1h"
step: "5m"
initial_entities:
  User: -1
`},
		{"non-integer seed", `
scenario: ecommerce
seed: "abc"
duration: "1h"
step: "5m"
`},
		{"zero draws per step", `
scenario: ecommerce
duration: "1h"
step: "5m"
draws_per_step: 0
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_BadDurations(t *testing.T) {
	_, err := Parse([]byte(`
scenario: ecommerce
duration: "one day"
step: "5m"
`))
	require.Error(t, err)

	_, err = Parse([]byte(`
scenario: ecommerce
duration: "-1h"
step: "5m"
`))
	require.Error(t, err)
}

func TestParse_BadStartTime(t *testing.T) {
	_, err := Parse([]byte(`
scenario: ecommerce
start_time: "yesterday"
duration: "1h"
step: "5m"
`))
	require.Error(t, err)
}

func TestParse_FileSinkRequiresPath(t *testing.T) {
	_, err := Parse([]byte(`
scenario: ecommerce
duration: "1h"
step: "5m"
sinks:
  - name: files
    type: file
`))
	require.Error(t, err)
}
