package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAliases(t *testing.T, configPath string) map[string]string {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	var aliases map[string]string
	require.NoError(t, v.UnmarshalKey("languages.aliases", &aliases))
	return aliases
}

func TestSaveAliases_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	err := SaveAliases(configPath, map[string]string{"rs": "rust", "md": "markdown"})
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "languages:")
	assert.Contains(t, content, "aliases:")
	assert.Less(t, strings.Index(content, "md: markdown"), strings.Index(content, "rs: rust"), "keys are written sorted")
}

func TestSaveAliases_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	initial := `# keep me
highlight:
  style: monokai
  classes: false
languages:
  aliases:
    md: markdown
watch_config: true
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o644))

	require.NoError(t, SaveAliases(configPath, map[string]string{"py3": "python"}))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# keep me")
	assert.Contains(t, content, "style: monokai")
	assert.Contains(t, content, "watch_config: true")
	assert.Contains(t, content, "py3: python")
	assert.NotContains(t, content, "md: markdown")
}

func TestSaveAliases_Roundtrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	want := map[string]string{"md": "markdown", "sh": "bash", "tsx": "typescript"}
	require.NoError(t, SaveAliases(configPath, want))

	require.Equal(t, want, loadAliases(t, configPath))
}

func TestSaveAliases_ReplacesNonMappingLanguages(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("languages: none\n"), 0o644))

	require.NoError(t, SaveAliases(configPath, map[string]string{"sh": "bash"}))
	require.Equal(t, map[string]string{"sh": "bash"}, loadAliases(t, configPath))
}

func TestSaveAliases_RejectsNonMappingDocument(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("- a\n- b\n"), 0o644))

	err := SaveAliases(configPath, map[string]string{"sh": "bash"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a mapping")
}

func TestSaveAliases_AtomicWrite(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	require.NoError(t, SaveAliases(configPath, map[string]string{"a": "go"}))
	require.NoError(t, SaveAliases(configPath, map[string]string{"b": "go"}))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	require.Equal(t, map[string]string{"b": "go"}, loadAliases(t, configPath))
}

func TestSaveAliases_CreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subdir", "nested", "config.yaml")

	require.NoError(t, SaveAliases(configPath, map[string]string{"sh": "bash"}))

	_, err := os.Stat(configPath)
	require.NoError(t, err)
}

func TestSetAlias(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	current := map[string]string{"md": "markdown"}

	require.NoError(t, SetAlias(configPath, current, "yml", "yaml"))

	require.Equal(t, map[string]string{"md": "markdown", "yml": "yaml"}, loadAliases(t, configPath))
	require.Equal(t, map[string]string{"md": "markdown"}, current, "input map is not mutated")
}

func TestSetAlias_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	err := SetAlias(configPath, nil, "\tgo", "go")
	require.Error(t, err)

	_, statErr := os.Stat(configPath)
	require.True(t, os.IsNotExist(statErr), "nothing is written for an invalid alias")
}

func TestRemoveAlias(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	current := map[string]string{"md": "markdown", "sh": "bash"}

	require.NoError(t, RemoveAlias(configPath, current, "sh"))
	require.Equal(t, map[string]string{"md": "markdown"}, loadAliases(t, configPath))

	err := RemoveAlias(configPath, current, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
