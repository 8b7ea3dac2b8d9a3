package commands

import (
	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/bus/wstransport"
	"github.com/fedimesh/qkvc/config"
	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/domaincache/sqlloaders"
	"github.com/fedimesh/qkvc/qerrors"
	"github.com/fedimesh/qkvc/registry"
)

// DBPath and ConfigPath are bound to persistent flags on the root
// command; they override the config file's database.path and the
// config file's own location respectively.
var (
	DBPath     string
	ConfigPath string
)

// openBundle loads configuration, opens the sqlite database it names,
// and constructs a standalone (non-clustered) domaincache.Bundle against
// it. Standalone here means this process never joins the running
// server's coherence mesh — each invocation is a one-shot inspection, so
// a quantumCacheUpdated broadcast would have no peer to reach anyway.
func openBundle() (*domaincache.Bundle, *registry.Registry, error) {
	bundle, r, _, _, err := openClusterBundle()
	return bundle, r, err
}

// openClusterBundle is openBundle's full form: it also returns the
// transport actually wired (wstransport.Transport when cfg.Cluster names
// a listen address or peers, localtransport.Standalone otherwise) and
// the resolved config, so a long-running command can keep driving the
// transport (accepting Upgrades, Dialing peers) after construction.
func openClusterBundle() (*domaincache.Bundle, *registry.Registry, bus.Transport, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, qerrors.Wrap(err, "failed to load configuration")
	}

	dbPath := cfg.Database.Path
	if DBPath != "" {
		dbPath = DBPath
	}

	db, err := sqlloaders.Open(dbPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var transport bus.Transport
	if cfg.Cluster.ListenAddr != "" || len(cfg.Cluster.PeerAddrs) > 0 {
		transport = wstransport.New(nil)
	} else {
		transport = localtransport.Standalone()
	}

	b := bus.New(transport, nil)
	r := registry.New(b, nil)

	store := sqlloaders.NewWithPolicy(db, sqlloaders.NewHostPolicy(cfg.Instance.AsHostLists()))
	bundle, err := domaincache.NewBundle(r, store, cfg.Caches)
	if err != nil {
		return nil, nil, nil, nil, qerrors.Wrap(err, "failed to build cache bundle")
	}
	return bundle, r, transport, cfg, nil
}
