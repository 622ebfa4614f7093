package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raxon/discordeno/discord"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"token": "T",
		"intents": 513,
		"totalShards": 4,
		"apiVersion": 10,
		"compress": true,
		"status": "dnd"
	}`)

	bot, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "T", bot.Token)
	assert.Equal(t, discord.Intents(513), bot.Intents)
	assert.Equal(t, 4, bot.TotalShards)
	assert.Equal(t, 10, bot.APIVersion)
	assert.True(t, bot.Compress)
	assert.Equal(t, "dnd", bot.Status)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{"token": "T"}`)

	bot, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, bot.APIVersion)
	assert.Equal(t, 1, bot.TotalShards)
	assert.Equal(t, "online", bot.Status)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{"token": `)
	_, err := Load(path)
	assert.Error(t, err)
}
