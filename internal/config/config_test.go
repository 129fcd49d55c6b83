package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buchuleaf/harmony-cli/providers/base"
)

func envMap(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load("", false, envMap(map[string]string{"HARMONY_CLI_HOME": home, "PWD": home}))
	require.NoError(t, err)

	assert.Equal(t, base.DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "gpt-oss", cfg.Model)
	assert.Equal(t, ProviderChatCompletion, cfg.Provider)
	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, home, cfg.Root)
	assert.Equal(t, 120, cfg.Budgets.Model.MaxLines)
	assert.Equal(t, filepath.Join(home, "transcripts"), cfg.TranscriptsDir())
	require.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	yaml := `
api_url: http://file:8080/v1/chat/completions
model: file-model
tool_timeout: 45
temperature: 0.3
budgets:
  model:
    max_lines: 60
`
	require.NoError(t, os.WriteFile(DefaultPath(home), []byte(yaml), 0o644))

	cfg, err := Load("", false, envMap(map[string]string{
		"HARMONY_CLI_HOME":  home,
		"HARMONY_CLI_MODEL": "env-model",
		"HARMONY_CLI_ROOT":  home,
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://file:8080/v1/chat/completions", cfg.APIURL)
	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, 45, cfg.ToolTimeout)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.3, *cfg.Temperature, 1e-9)
	assert.Equal(t, 60, cfg.Budgets.Model.MaxLines)
	assert.Equal(t, 400, cfg.Budgets.Model.MaxLineLength, "zero fields fall back to defaults")
	assert.Equal(t, 40, cfg.Budgets.ModelStrict.MaxLines)
}

func TestLoadPythonBin(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(DefaultPath(home), []byte("python_bin: /opt/py/bin/python3\n"), 0o644))

	cfg, err := Load("", false, envMap(map[string]string{"HARMONY_CLI_HOME": home}))
	require.NoError(t, err)
	assert.Equal(t, "/opt/py/bin/python3", cfg.PythonBin)

	cfg, err = Load("", false, envMap(map[string]string{
		"HARMONY_CLI_HOME":   home,
		"HARMONY_CLI_PYTHON": "pypy3",
	}))
	require.NoError(t, err)
	assert.Equal(t, "pypy3", cfg.PythonBin)
}

func TestLoadExplicitMissing(t *testing.T) {
	home := t.TempDir()
	_, err := Load(filepath.Join(home, "nope.yaml"), true, envMap(map[string]string{"HARMONY_CLI_HOME": home}))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadYAML(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0o644))
	_, err := Load(path, true, envMap(map[string]string{"HARMONY_CLI_HOME": home}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	hot := 3.0
	cases := map[string]func(*Config){
		"provider":          func(c *Config) { c.Provider = "google" },
		"api url":           func(c *Config) { c.APIURL = "" },
		"model":             func(c *Config) { c.Model = "" },
		"timeout":           func(c *Config) { c.ToolTimeout = 0 },
		"max tokens":        func(c *Config) { c.MaxOutputTokens = -1 },
		"temperature":       func(c *Config) { c.Temperature = &hot },
		"reasoning":         func(c *Config) { c.Reasoning = "extreme" },
		"root":              func(c *Config) { c.Root = filepath.Join(root, "missing") },
		"display doc lines": func(c *Config) { c.Budgets.DisplayDocLines = -1 },
		"model max chars":   func(c *Config) { c.Budgets.ModelMaxChars = -5 },
		"strict lines":      func(c *Config) { c.Budgets.ModelStrict.MaxLines = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Root = root
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadRejectsNegativeBudget(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(DefaultPath(home), []byte("budgets:\n  display_doc_lines: -1\n"), 0o644))

	cfg, err := Load("", false, envMap(map[string]string{"HARMONY_CLI_HOME": home, "HARMONY_CLI_ROOT": home}))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Budgets.DisplayDocLines, "negative values are not replaced by defaults")
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "display_doc_lines")
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	cfg := Default()
	cfg.Model = "saved"
	path := filepath.Join(home, "nested", fileName)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, true, envMap(map[string]string{"HARMONY_CLI_HOME": home}))
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.Model)
}
