package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// chdir moves into a fresh directory so no stray .env or config file is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvReservedWords, "")
	t.Setenv(EnvReviewTemplate, "")
	t.Setenv(EnvMongoURI, "")
	t.Setenv(EnvWorkers, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "adr", cfg.ISOOverrides["and"])
	assert.False(t, cfg.Ledger.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdir(t)
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvReviewTemplate, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvMongoURI, "")

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reserved_words_file: /data/reserved.txt
precision: 9
workers: 3
iso_overrides:
  ksv: xkx
ledger:
  mongo_uri: mongodb://file-host:27017
`), 0o644))

	t.Setenv(EnvReservedWords, "/env/reserved.txt")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/reserved.txt", cfg.ReservedWordsFile)
	assert.Equal(t, 9, cfg.Precision)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "xkx", cfg.ISOOverrides["ksv"])
	assert.Equal(t, "mongodb://file-host:27017", cfg.Ledger.MongoURI)
	assert.Equal(t, "boundary_runs", cfg.Ledger.Collection)
	assert.True(t, cfg.Ledger.Enabled())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvReservedWords, "")
	t.Setenv(EnvWorkers, "")
	t.Setenv(EnvMongoURI, "")
	t.Setenv(EnvReviewTemplate, "")
	require.NoError(t, os.Unsetenv(EnvReviewTemplate))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(EnvReviewTemplate+"=/from/dotenv.toml\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv.toml", cfg.ReviewTemplate)
}

func TestLoadErrors(t *testing.T) {
	dir := chdir(t)
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvWorkers, "")

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, utils.IsCode(err, utils.ErrCodeFileNotFound))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("precision: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidInput))

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("precision: 42\n"), 0o644))
	_, err = Load(outOfRange)
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidInput))

	t.Setenv(EnvWorkers, "many")
	_, err = Load("")
	assert.True(t, utils.IsCode(err, utils.ErrCodeInvalidInput))
}
