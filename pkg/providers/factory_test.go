package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricsync/internal/config"
)

func TestCreate(t *testing.T) {
	cfg := config.Default().Lyrics
	cfg.LyricsAPIURL = "http://localhost:1"

	for name, want := range map[string]string{
		"lyricsapi": "lyricsapi",
		"lrclib":    "lrclib",
		"163":       "netease",
		"QQ":        "qqmusic",
	} {
		p, err := Create(name, cfg)
		require.NoError(t, err, name)
		assert.Equal(t, want, p.Name())
	}

	_, err := Create("kugou", cfg)
	assert.Error(t, err)
}

func TestCreateAllKeepsOrder(t *testing.T) {
	cfg := config.Default().Lyrics
	cfg.Providers = []string{"qqmusic", "lyricsapi", "lrclib"}

	list, err := CreateAll(cfg)
	require.NoError(t, err)
	require.Len(t, list, 2, "lyricsapi without url is skipped")
	assert.Equal(t, "qqmusic", list[0].Name())
	assert.Equal(t, "lrclib", list[1].Name())

	cfg.Providers = []string{"lyricsapi"}
	_, err = CreateAll(cfg)
	assert.Error(t, err)
}

func TestNewResolver(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Enabled = true
	cfg.AI.ModuleName = "deepseek-chat"
	cfg.AI.APIKey = "key"

	r, err := NewResolver(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"lrclib", "netease", "qqmusic"}, r.ProviderNames())
}
