package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const testConfig = `
scenario: ecommerce
seed: 42
start_time: "2026-01-01T00:00:00Z"
duration: "10m"
step: "5m"
draws_per_step: 1
initial_entities:
  User: 3
  Product: 2
`

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, testConfig)
	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: scenario ecommerce")
}

func TestValidateCommand_UnknownScenario(t *testing.T) {
	path := writeConfig(t, `
scenario: nope
duration: "10m"
step: "5m"
`)
	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_UnknownSeededEntity(t *testing.T) {
	path := writeConfig(t, `
scenario: ecommerce
duration: "10m"
step: "5m"
initial_entities:
  Warehouse: 3
`)
	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_DefaultsToConsoleSink(t *testing.T) {
	path := writeConfig(t, testConfig)
	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Simulation complete:")
}

func TestRunCommand_SeedOverrideIsReproducible(t *testing.T) {
	path := writeConfig(t, testConfig)
	a, err := execute(t, "run", path, "--seed", "7")
	require.NoError(t, err)
	b, err := execute(t, "run", path, "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed, same stream")
}

func TestRunCommand_MissingConfig(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenariosCommand(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "ecommerce")
}

func TestScenariosCommand_JSON(t *testing.T) {
	out, err := execute(t, "scenarios", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"ecommerce"`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mirage ")
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "scenarios", "--format", "xml")
	require.Error(t, err)
}
