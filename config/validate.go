package config

import "github.com/fedimesh/qkvc/qerrors"

// Validate checks that the configuration is self-consistent.
func (c *Config) Validate() error {
	for name, cc := range c.Caches {
		if cc.Lifetime < 0 {
			return qerrors.Newf("caches.%s.lifetime must be >= 0, got %s", name, cc.Lifetime)
		}
		if cc.FetchConcurrency < 0 {
			return qerrors.Newf("caches.%s.fetch_concurrency must be >= 0, got %d", name, cc.FetchConcurrency)
		}
		if cc.FetchMaybeConcurrency < 0 {
			return qerrors.Newf("caches.%s.fetch_maybe_concurrency must be >= 0, got %d", name, cc.FetchMaybeConcurrency)
		}
		if cc.BulkConcurrency < 0 {
			return qerrors.Newf("caches.%s.bulk_concurrency must be >= 0, got %d", name, cc.BulkConcurrency)
		}
		if cc.GlobalConcurrency < 0 {
			return qerrors.Newf("caches.%s.global_concurrency must be >= 0, got %d", name, cc.GlobalConcurrency)
		}
	}

	if c.Cluster.ListenAddr == "" && len(c.Cluster.PeerAddrs) > 0 {
		return qerrors.Newf("cluster.peer_addrs is set but cluster.listen_addr is empty")
	}

	return nil
}
