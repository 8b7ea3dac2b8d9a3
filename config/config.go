// Package config is the ambient configuration layer shared by the cache
// core and its CLI. It wraps github.com/spf13/viper the same way this
// module's ancestry's "am" package does: a process-wide singleton, TOML
// files merged with environment variables, and mapstructure-tagged Go
// structs as the unmarshal target.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/qerrors"
)

// envPrefix is the environment variable prefix bound by AutomaticEnv,
// e.g. QKVC_DATABASE_PATH overrides database.path.
const envPrefix = "QKVC"

// Config is the root configuration schema.
type Config struct {
	Database DatabaseConfig         `mapstructure:"database"`
	Cluster  ClusterConfig          `mapstructure:"cluster"`
	Caches   map[string]CacheConfig `mapstructure:"caches"`
	Instance InstancePolicy         `mapstructure:"instance"`
}

// DatabaseConfig locates the SQL-backed loader store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ClusterConfig configures the websocket transport that carries
// coherence events between peers (bus/wstransport).
type ClusterConfig struct {
	ListenAddr string   `mapstructure:"listen_addr"`
	PeerAddrs  []string `mapstructure:"peer_addrs"`
}

// CacheConfig overrides a single named cache's defaults. Zero values mean
// "use the catalog default" (registry.CreateQuantum already treats a zero
// concurrency as "use the built-in default").
type CacheConfig struct {
	Lifetime              time.Duration `mapstructure:"lifetime"`
	FetchConcurrency      int64         `mapstructure:"fetch_concurrency"`
	FetchMaybeConcurrency int64         `mapstructure:"fetch_maybe_concurrency"`
	BulkConcurrency       int64         `mapstructure:"bulk_concurrency"`
	GlobalConcurrency     int64         `mapstructure:"global_concurrency"`
}

// InstancePolicy is the federation host policy that feeds metaUpdated
// (bus.MetaUpdatedPayload) whenever an operator edits it.
type InstancePolicy struct {
	BlockedHosts       []string `mapstructure:"blocked_hosts"`
	SilencedHosts      []string `mapstructure:"silenced_hosts"`
	MediaSilencedHosts []string `mapstructure:"media_silenced_hosts"`
	FederationHosts    []string `mapstructure:"federation_hosts"`
	BubbleInstances    []string `mapstructure:"bubble_instances"`
}

// AsHostLists converts the configured policy to the bus payload shape
// consumed by domaincache's metaUpdated handler.
func (p InstancePolicy) AsHostLists() bus.MetaHostLists {
	return bus.MetaHostLists{
		BlockedHosts:       p.BlockedHosts,
		SilencedHosts:      p.SilencedHosts,
		MediaSilencedHosts: p.MediaSilencedHosts,
		FederationHosts:    p.FederationHosts,
		BubbleInstances:    p.BubbleInstances,
	}
}

var (
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads configuration from TOML files and the environment, caching
// the result in a process-wide singleton. Subsequent calls return the
// same *Config until Reset is called.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, qerrors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadFromFile loads configuration from a specific TOML file, bypassing
// the directory-tree search and the env-var overlay. Used by tests and by
// operators pointing the CLI at an explicit file.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, qerrors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, qerrors.Wrapf(err, "failed to unmarshal config from %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Reset clears the cached singleton. Tests call this between cases that
// exercise Load against different working directories or env vars.
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// GetViper returns the process-wide viper instance, for callers (the
// watcher, admin CLI) that need direct access beyond the typed Config.
func GetViper() *viper.Viper {
	return initViper()
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		// a missing file at this point would be a race with
		// findProjectConfig's own os.Stat; ignore read errors rather
		// than fail Load over a file that just disappeared.
		_ = v.ReadInConfig()
	}

	viperInstance = v
	return v
}

// Render encodes cfg as TOML, the same library the teacher uses to
// write plugin config files back to disk (am.writePluginConfigFile) and
// the `am show --format toml` command uses to print the active config.
func (c *Config) Render() (string, error) {
	buf := &strings.Builder{}
	if err := toml.NewEncoder(buf).Encode(c); err != nil {
		return "", qerrors.Wrap(err, "failed to encode config as TOML")
	}
	return buf.String(), nil
}

// findProjectConfig walks up from the working directory looking for
// qkvc.toml, mirroring the teacher's am.toml/config.toml search.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, "qkvc.toml")
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
