package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.BaseURL)
	assert.Equal(t, 32, cfg.Selection.TopN)
	assert.InDelta(t, 62.0, cfg.Selection.MinHighlightScore, 1e-9)
	assert.InDelta(t, 0.93, cfg.Fetch.TitleSimilarity, 1e-9)
	assert.Equal(t, 120, cfg.Fetch.MaxEvalArticles)
	assert.Equal(t, "Asia/Shanghai", cfg.Digest.Timezone)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Personalize.Enabled)
	assert.True(t, cfg.Personalize.TypeEnabled)
	assert.Contains(t, cfg.ArticleTypes, "model_release")
	assert.Contains(t, cfg.ArticleTypes, "other")
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
llm:
  model: deepseek-reasoner
selection:
  top_n: 10
personalization:
  enabled: false
digest:
  timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deepseek-reasoner", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Selection.TopN)
	assert.False(t, cfg.Personalize.Enabled)
	assert.Equal(t, "UTC", cfg.Digest.Timezone)
	// unrelated defaults are untouched
	assert.InDelta(t, 58.0, cfg.Selection.MinWorthReading, 1e-9)
}

func TestLoad_EnvWinsOverYAML(t *testing.T) {
	path := writeTempFile(t, "config.yml", `
llm:
  model: from-yaml
`)
	t.Setenv("DEEPSEEK_MODEL", "from-env")
	t.Setenv("MIN_HIGHLIGHT_SCORE", "71.5")
	t.Setenv("PERSONALIZATION_ENABLED", "no")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.InDelta(t, 71.5, cfg.Selection.MinHighlightScore, 1e-9)
	assert.False(t, cfg.Personalize.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadSources(t *testing.T) {
	path := writeTempFile(t, "sources.yaml", `
sources:
  - id: openai_blog
    name: OpenAI Blog
    url: https://openai.com/blog/rss.xml
    source_weight: 1.4
  - id: hn_ai
    name: Hacker News AI
    url: https://hnrss.org/newest?q=AI
    only_external_links: true
  - id: no_url
    name: Broken
`)

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "openai_blog", sources[0].ID)
	assert.InDelta(t, 1.4, sources[0].Weight, 1e-9)
	assert.InDelta(t, 1.0, sources[1].Weight, 1e-9)
	assert.True(t, sources[1].OnlyExternalLinks)
}

func TestLoadSources_RSSHubRoute(t *testing.T) {
	path := writeTempFile(t, "sources.yaml", `
sources:
  - id: x_karpathy
    name: Karpathy on X
    rsshub_route: /twitter/user/karpathy
`)

	t.Setenv("RSSHUB_BASE_URL", "")
	sources, err := LoadSources(path)
	require.NoError(t, err)
	assert.Empty(t, sources)

	t.Setenv("RSSHUB_BASE_URL", "https://rsshub.example.com/")
	sources, err = LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://rsshub.example.com/twitter/user/karpathy", sources[0].URL)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true"))
	assert.True(t, parseBool("1"))
	assert.True(t, parseBool("YES"))
	assert.True(t, parseBool(" on "))
	assert.False(t, parseBool("false"))
	assert.False(t, parseBool("0"))
	assert.False(t, parseBool(""))
}
