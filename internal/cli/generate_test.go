package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureRunner swaps generateRunner for the duration of the test. Tests
// using it must not run in parallel.
func captureRunner(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func newTestRoot(args ...string) *cobra.Command {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured := captureRunner(t)

	root := newTestRoot(
		"--verbose",
		"generate",
		"--input", "spec.json",
		"--out", "./build",
		"--tags", "foo, bar,foo",
		"--exclude-tags", "baz",
		"--request-module", "~/lib/http",
		"--api-prefix", "/api",
		"--strict",
		"--dry-run",
		"--force",
	)
	require.NoError(t, root.Execute())
	require.NotNil(t, *captured)

	cfg := *captured
	assert.Equal(t, "spec.json", cfg.Input)
	assert.Equal(t, "./build", cfg.Out)
	assert.Equal(t, []string{"foo", "bar"}, cfg.Tags)
	assert.Equal(t, []string{"baz"}, cfg.ExcludeTags)
	assert.Equal(t, "~/lib/http", cfg.RequestModule)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Validate, "strict implies validate")
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Force)
	assert.True(t, cfg.Verbose)
}

func TestGenerateConfigDefaults(t *testing.T) {
	captured := captureRunner(t)

	require.NoError(t, newTestRoot("generate", "--input", "spec.json").Execute())
	cfg := *captured
	assert.Equal(t, "services", cfg.Out)
	assert.Equal(t, "@/services/request", cfg.RequestModule)
	assert.Empty(t, cfg.APIPrefix)
	assert.Nil(t, cfg.Tags)
	assert.False(t, cfg.Validate)
	assert.False(t, cfg.Force)
}

func TestGenerateConfigPrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.json
out: from-config
tags:
  - cfgFoo
excludeTags: cfgBar
requestModule: "@/cfg/request"
api-prefix: /cfg
dryRun: true
force: false
verbose: true
`) + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	// env beats the file, flags beat env
	t.Setenv("ROPENAPI_OUT", "from-env")
	t.Setenv("ROPENAPI_API_PREFIX", "/env")
	t.Setenv("ROPENAPI_INPUT", "env-spec.json")

	captured := captureRunner(t)
	root := newTestRoot(
		"--config", configPath,
		"generate",
		"--input", "flag-spec.json",
		"--tags", "flagTag",
		"--dry-run=false",
		"--force",
	)
	require.NoError(t, root.Execute())

	cfg := *captured
	require.NotNil(t, cfg)
	assert.Equal(t, "flag-spec.json", cfg.Input)
	assert.Equal(t, "from-env", cfg.Out)
	assert.Equal(t, "/env", cfg.APIPrefix)
	assert.Equal(t, "@/cfg/request", cfg.RequestModule)
	assert.Equal(t, []string{"flagTag"}, cfg.Tags)
	assert.Equal(t, []string{"cfgBar"}, cfg.ExcludeTags)
	assert.False(t, cfg.DryRun, "flag overrides config")
	assert.True(t, cfg.Force)
	assert.True(t, cfg.Verbose, "verbose comes from the config file")
	assert.Equal(t, configPath, cfg.ConfigPath)
}

func TestGenerateConfigFromEnv(t *testing.T) {
	t.Setenv("ROPENAPI_INPUT", "env.json")
	t.Setenv("ROPENAPI_TAGS", "a,b")
	t.Setenv("ROPENAPI_DRY_RUN", "true")

	captured := captureRunner(t)
	require.NoError(t, newTestRoot("generate").Execute())

	cfg := *captured
	assert.Equal(t, "env.json", cfg.Input)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.True(t, cfg.DryRun)
}

func TestGenerateConfigBadEnvIsUsageError(t *testing.T) {
	t.Setenv("ROPENAPI_FORCE", "maybe")

	err := newTestRoot("generate", "--input", "spec.json").Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("unknown: value\n"), 0o600))

	err := newTestRoot("--config", configPath, "generate", "--input", "spec.json").Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestGenerateConfigRequiresInput(t *testing.T) {
	t.Parallel()

	err := newTestRoot("generate", "--input", "  ").Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "--input is required")
}

func TestGenerateConfigOverlappingTags(t *testing.T) {
	t.Parallel()

	err := newTestRoot("generate", "--input", "spec.json", "--tags", "a,b", "--exclude-tags", "b").Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, err.Error(), "overlap: b")
}

func TestValueAsStringSlice(t *testing.T) {
	t.Parallel()

	got, err := valueAsStringSlice("a, b,,c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = valueAsStringSlice([]any{"x", " y "})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got)

	_, err = valueAsStringSlice(42)
	assert.Error(t, err)
}
