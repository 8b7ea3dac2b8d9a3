package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsAppliesZeroConfigValues(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, "qkvc.db", cfg.Database.Path)
	assert.Empty(t, cfg.Cluster.PeerAddrs)
	assert.Empty(t, cfg.Instance.BlockedHosts)
}

func TestValidateRejectsNegativeConcurrency(t *testing.T) {
	cfg := Config{Caches: map[string]CacheConfig{
		"userById": {FetchConcurrency: -1},
	}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPeerAddrsWithoutListenAddr(t *testing.T) {
	cfg := Config{Cluster: ClusterConfig{PeerAddrs: []string{"peer:9000"}}}
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFileReadsTOMLAndAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qkvc.toml")
	toml := `
[database]
path = "custom.db"

[caches.userById]
lifetime = "10m"
fetch_concurrency = 4

[instance]
blocked_hosts = ["bad.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Minute, cfg.Caches["userById"].Lifetime)
	assert.Equal(t, int64(4), cfg.Caches["userById"].FetchConcurrency)
	assert.Equal(t, []string{"bad.example"}, cfg.Instance.BlockedHosts)
}

func TestLoadCachesSingletonAcrossCalls(t *testing.T) {
	Reset()
	defer Reset()

	origDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(origDir)

	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))

	first, err := Load()
	require.NoError(t, err)

	// mutate the file on disk; Load must still return the cached value
	// until Reset is called.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "qkvc.toml"), []byte(`[database]
path = "changed.db"
`), 0o644))

	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRenderProducesReadableTOML(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Path: "qkvc.db"}}
	rendered, err := cfg.Render()
	require.NoError(t, err)
	assert.Contains(t, rendered, "qkvc.db")
}

func TestAsHostListsCopiesFields(t *testing.T) {
	p := InstancePolicy{
		BlockedHosts:    []string{"a.example"},
		FederationHosts: []string{"b.example"},
	}
	hl := p.AsHostLists()
	assert.Equal(t, []string{"a.example"}, hl.BlockedHosts)
	assert.Equal(t, []string{"b.example"}, hl.FederationHosts)
}
