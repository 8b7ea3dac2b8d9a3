package sqlloaders

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/fedimesh/qkvc/bus"
)

// HostPolicy is the punycoded-host membership test FetchOrCreateInstance
// uses to seed a newly discovered instance's permission flags (spec
// §4.5.6: "using the utility's punyhost + block/silence/etc. host
// policies").
type HostPolicy struct {
	blocked       map[string]struct{}
	silenced      map[string]struct{}
	mediaSilenced map[string]struct{}
}

// NewHostPolicy punycodes every configured host so membership checks
// line up with the already-punycoded keys instance rows are queried by.
func NewHostPolicy(lists bus.MetaHostLists) HostPolicy {
	return HostPolicy{
		blocked:       punySet(lists.BlockedHosts),
		silenced:      punySet(lists.SilencedHosts),
		mediaSilenced: punySet(lists.MediaSilencedHosts),
	}
}

func punySet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		ascii, err := idna.Lookup.ToASCII(strings.ToLower(h))
		if err != nil {
			continue
		}
		set[ascii] = struct{}{}
	}
	return set
}

// classify reports the flags a freshly seen, already-punycoded host
// should be created with.
func (p HostPolicy) classify(host string) (blocked, silenced, mediaSilenced bool) {
	_, blocked = p.blocked[host]
	_, silenced = p.silenced[host]
	_, mediaSilenced = p.mediaSilenced[host]
	return
}
