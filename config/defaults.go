package config

import "github.com/spf13/viper"

// SetDefaults installs the zero-config defaults, matching the teacher's
// am.SetDefaults convention of one v.SetDefault call per leaf key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "qkvc.db")

	v.SetDefault("cluster.listen_addr", "")
	v.SetDefault("cluster.peer_addrs", []string{})

	v.SetDefault("instance.blocked_hosts", []string{})
	v.SetDefault("instance.silenced_hosts", []string{})
	v.SetDefault("instance.media_silenced_hosts", []string{})
	v.SetDefault("instance.federation_hosts", []string{})
	v.SetDefault("instance.bubble_instances", []string{})
}
