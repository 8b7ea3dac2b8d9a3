package domaincache

import (
	"context"

	"github.com/fedimesh/qkvc/config"
	"github.com/fedimesh/qkvc/followstats"
	"github.com/fedimesh/qkvc/quantum"
	"github.com/fedimesh/qkvc/registry"
)

// StringSet is the value type for every cache whose entry is a set of
// ids (userMutings, userBlocking, threadMutings, ...).
type StringSet = map[string]struct{}

// Bundle is every cache in the catalog (spec §4.5.1), constructed
// together because several of them cross-invalidate each other.
type Bundle struct {
	loaders Loaders

	UserByID               *quantum.Cache[*User]
	LocalUserByNativeToken *quantum.Cache[string]
	UserByAcct             *quantum.Cache[string]
	UserProfile            *quantum.Cache[*Profile]
	UserMutings            *quantum.Cache[StringSet]
	UserMuted              *quantum.Cache[StringSet]
	UserBlocking           *quantum.Cache[StringSet]
	UserBlocked            *quantum.Cache[StringSet]
	UserListMemberships    *quantum.Cache[map[string]ListMembership]
	ListUserMemberships    *quantum.Cache[map[string]ListMembership]
	UserListFavorites      *quantum.Cache[StringSet]
	ListUserFavorites      *quantum.Cache[StringSet]
	RenoteMutings          *quantum.Cache[StringSet]
	ThreadMutings          *quantum.Cache[StringSet]
	NoteMutings            *quantum.Cache[StringSet]
	UserFollowings         *quantum.Cache[map[string]Follow]
	UserFollowers          *quantum.Cache[map[string]Follow]
	HibernatedUsers        *quantum.Cache[bool]
	UserFollowingChannels  *quantum.Cache[StringSet]
	URIPerson              *quantum.Cache[string]
	PublicKeyByKeyID       *quantum.Cache[*PublicKey]
	PublicKeyByUserID      *quantum.Cache[*PublicKey]
	EmojisByID             *quantum.Cache[*Emoji]
	EmojisByKey            *quantum.Cache[*Emoji]
	FederatedInstance      *quantum.Cache[*Instance]

	// UserFollowStats is component F: memory-only, independently TTL'd,
	// no cluster coherence (spec §4.6), implemented in package
	// followstats.
	UserFollowStats *followstats.Cache
}

// NewBundle constructs and registers every cache in the catalog against
// r, wiring loaders for each. caches carries per-cache overrides read
// from config.Config.Caches; a name absent from the map (or a zero
// Lifetime within it) falls back to the catalog's own constants. The
// hibernatedUsers cache's onChanged hook (spec §4.5.4) needs a live
// reference back to UserByID, so it is wired after UserByID is
// constructed.
func NewBundle(r *registry.Registry, loaders Loaders, caches map[string]config.CacheConfig) (*Bundle, error) {
	b := &Bundle{loaders: loaders}

	var err error
	if b.UserByID, err = registry.CreateQuantum[*User](r, withOverride(caches, quantum.Options[*User]{
		Name:      NameUserByID,
		Lifetime:  LifetimeUserByID,
		Fetch:     adaptFetch(loaders.FetchUserByID),
		FetchBulk: adaptBulk(loaders.FetchUsersBulk),
	})); err != nil {
		return nil, err
	}

	if b.LocalUserByNativeToken, err = registry.CreateQuantum[string](r, withOverride(caches, quantum.Options[string]{
		Name:      NameLocalUserByNativeToken,
		Lifetime:  LifetimeLocalUserByNativeToken,
		Fetch:     adaptFetch(loaders.FetchUserIDByNativeToken),
		FetchBulk: adaptBulk(loaders.FetchUserIDsByNativeTokenBulk),
		Equal:     equalComparable[string],
	})); err != nil {
		return nil, err
	}

	if b.UserByAcct, err = registry.CreateQuantum[string](r, withOverride(caches, quantum.Options[string]{
		Name:     NameUserByAcct,
		Lifetime: LifetimeUserByAcct,
		Fetch:    adaptFetch(loaders.FetchUserIDByAcct),
		Equal:    equalComparable[string],
	})); err != nil {
		return nil, err
	}

	if b.UserProfile, err = registry.CreateQuantum[*Profile](r, withOverride(caches, quantum.Options[*Profile]{
		Name:      NameUserProfile,
		Lifetime:  LifetimeUserProfile,
		Fetch:     adaptFetch(loaders.FetchUserProfile),
		FetchBulk: adaptBulk(loaders.FetchUserProfilesBulk),
	})); err != nil {
		return nil, err
	}

	if b.UserMutings, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameUserMutings,
		Lifetime:  LifetimeUserMutings,
		Fetch:     adaptFetch(loaders.FetchUserMutings),
		FetchBulk: adaptBulk(loaders.FetchUserMutingsBulk),
	})); err != nil {
		return nil, err
	}
	if b.UserMuted, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameUserMuted,
		Lifetime:  LifetimeUserMuted,
		Fetch:     adaptFetch(loaders.FetchUserMuted),
		FetchBulk: adaptBulk(loaders.FetchUserMutedBulk),
	})); err != nil {
		return nil, err
	}
	if b.UserBlocking, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameUserBlocking,
		Lifetime:  LifetimeUserBlocking,
		Fetch:     adaptFetch(loaders.FetchUserBlocking),
		FetchBulk: adaptBulk(loaders.FetchUserBlockingBulk),
	})); err != nil {
		return nil, err
	}
	if b.UserBlocked, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameUserBlocked,
		Lifetime:  LifetimeUserBlocked,
		Fetch:     adaptFetch(loaders.FetchUserBlocked),
		FetchBulk: adaptBulk(loaders.FetchUserBlockedBulk),
	})); err != nil {
		return nil, err
	}

	if b.UserListMemberships, err = registry.CreateQuantum[map[string]ListMembership](r, withOverride(caches, quantum.Options[map[string]ListMembership]{
		Name:      NameUserListMemberships,
		Lifetime:  LifetimeUserListMemberships,
		Fetch:     adaptFetch(loaders.FetchUserListMemberships),
		FetchBulk: adaptBulk(loaders.FetchUserListMembershipsBulk),
	})); err != nil {
		return nil, err
	}
	if b.ListUserMemberships, err = registry.CreateQuantum[map[string]ListMembership](r, withOverride(caches, quantum.Options[map[string]ListMembership]{
		Name:      NameListUserMemberships,
		Lifetime:  LifetimeListUserMemberships,
		Fetch:     adaptFetch(loaders.FetchListUserMemberships),
		FetchBulk: adaptBulk(loaders.FetchListUserMembershipsBulk),
	})); err != nil {
		return nil, err
	}

	if b.UserListFavorites, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameUserListFavorites,
		Lifetime:  LifetimeUserListFavorites,
		Fetch:     adaptFetch(loaders.FetchUserListFavorites),
		FetchBulk: adaptBulk(loaders.FetchUserListFavoritesBulk),
	})); err != nil {
		return nil, err
	}
	if b.ListUserFavorites, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameListUserFavorites,
		Lifetime:  LifetimeListUserFavorites,
		Fetch:     adaptFetch(loaders.FetchListUserFavorites),
		FetchBulk: adaptBulk(loaders.FetchListUserFavoritesBulk),
	})); err != nil {
		return nil, err
	}

	if b.RenoteMutings, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameRenoteMutings,
		Lifetime:  LifetimeRenoteMutings,
		Fetch:     adaptFetch(loaders.FetchRenoteMutings),
		FetchBulk: adaptBulk(loaders.FetchRenoteMutingsBulk),
	})); err != nil {
		return nil, err
	}
	if b.ThreadMutings, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameThreadMutings,
		Lifetime:  LifetimeThreadMutings,
		Fetch:     adaptFetch(loaders.FetchThreadMutings),
		FetchBulk: adaptBulk(loaders.FetchThreadMutingsBulk),
	})); err != nil {
		return nil, err
	}
	if b.NoteMutings, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:      NameNoteMutings,
		Lifetime:  LifetimeNoteMutings,
		Fetch:     adaptFetch(loaders.FetchNoteMutings),
		FetchBulk: adaptBulk(loaders.FetchNoteMutingsBulk),
	})); err != nil {
		return nil, err
	}

	if b.UserFollowings, err = registry.CreateQuantum[map[string]Follow](r, withOverride(caches, quantum.Options[map[string]Follow]{
		Name:      NameUserFollowings,
		Lifetime:  LifetimeUserFollowings,
		Fetch:     adaptFetch(loaders.FetchUserFollowings),
		FetchBulk: adaptBulk(loaders.FetchUserFollowingsBulk),
	})); err != nil {
		return nil, err
	}
	if b.UserFollowers, err = registry.CreateQuantum[map[string]Follow](r, withOverride(caches, quantum.Options[map[string]Follow]{
		Name:      NameUserFollowers,
		Lifetime:  LifetimeUserFollowers,
		Fetch:     adaptFetch(loaders.FetchUserFollowers),
		FetchBulk: adaptBulk(loaders.FetchUserFollowersBulk),
	})); err != nil {
		return nil, err
	}

	if b.HibernatedUsers, err = registry.CreateQuantum[bool](r, withOverride(caches, quantum.Options[bool]{
		Name:      NameHibernatedUsers,
		Lifetime:  LifetimeHibernatedUsers,
		Fetch:     adaptFetch(loaders.FetchHibernated),
		FetchBulk: adaptBulk(loaders.FetchHibernatedBulk),
		OnChanged: b.onHibernationChanged,
		Equal:     equalComparable[bool],
	})); err != nil {
		return nil, err
	}

	if b.UserFollowingChannels, err = registry.CreateQuantum[StringSet](r, withOverride(caches, quantum.Options[StringSet]{
		Name:     NameUserFollowingChannels,
		Lifetime: LifetimeUserFollowingChannels,
		Fetch:    adaptFetch(loaders.FetchUserFollowingChannels),
	})); err != nil {
		return nil, err
	}

	if b.URIPerson, err = registry.CreateQuantum[string](r, withOverride(caches, quantum.Options[string]{
		Name:      NameURIPerson,
		Lifetime:  LifetimeURIPerson,
		Fetch:     adaptFetch(loaders.FetchURIPerson),
		FetchBulk: adaptBulk(loaders.FetchURIPersonBulk),
		Equal:     equalComparable[string],
	})); err != nil {
		return nil, err
	}

	if b.PublicKeyByKeyID, err = registry.CreateQuantum[*PublicKey](r, withOverride(caches, quantum.Options[*PublicKey]{
		Name:      NamePublicKeyByKeyID,
		Lifetime:  LifetimePublicKeyByKeyID,
		Fetch:     adaptFetch(loaders.FetchPublicKeyByKeyID),
		FetchBulk: adaptBulk(loaders.FetchPublicKeyByKeyIDBulk),
	})); err != nil {
		return nil, err
	}
	if b.PublicKeyByUserID, err = registry.CreateQuantum[*PublicKey](r, withOverride(caches, quantum.Options[*PublicKey]{
		Name:      NamePublicKeyByUserID,
		Lifetime:  LifetimePublicKeyByUserID,
		Fetch:     adaptFetch(loaders.FetchPublicKeyByUserID),
		FetchBulk: adaptBulk(loaders.FetchPublicKeyByUserIDBulk),
	})); err != nil {
		return nil, err
	}

	if b.EmojisByID, err = registry.CreateQuantum[*Emoji](r, withOverride(caches, quantum.Options[*Emoji]{
		Name:      NameEmojisByID,
		Lifetime:  LifetimeEmojisByID,
		Fetch:     adaptFetch(loaders.FetchEmojiByID),
		FetchBulk: adaptBulk(loaders.FetchEmojisByIDBulk),
	})); err != nil {
		return nil, err
	}
	if b.EmojisByKey, err = registry.CreateQuantum[*Emoji](r, withOverride(caches, quantum.Options[*Emoji]{
		Name:      NameEmojisByKey,
		Lifetime:  LifetimeEmojisByKey,
		Fetch:     adaptFetch(loaders.FetchEmojiByKey),
		FetchBulk: adaptBulk(loaders.FetchEmojisByKeyBulk),
	})); err != nil {
		return nil, err
	}

	if b.FederatedInstance, err = registry.CreateQuantum[*Instance](r, withOverride(caches, quantum.Options[*Instance]{
		Name:     NameFederatedInstance,
		Lifetime: LifetimeFederatedInstance,
		Fetch: func(ctx context.Context, host string) (*Instance, bool, error) {
			inst, err := loaders.FetchOrCreateInstance(ctx, host)
			if err != nil {
				return nil, false, err
			}
			return inst, true, nil
		},
	})); err != nil {
		return nil, err
	}

	followLifetime := LifetimeUserFollowStats
	if cc, ok := caches[NameUserFollowStats]; ok && cc.Lifetime > 0 {
		followLifetime = cc.Lifetime
	}
	if b.UserFollowStats, err = followstats.New(r, NameUserFollowStats, followLifetime); err != nil {
		return nil, err
	}

	return b, nil
}

// withOverride layers a config.CacheConfig override (keyed by
// opts.Name) onto opts: a configured non-zero Lifetime replaces the
// catalog default, and the concurrency fields are always copied across
// (their zero value already means "use the built-in default" to
// registry.CreateQuantum, matching an absent map entry).
func withOverride[V any](caches map[string]config.CacheConfig, opts quantum.Options[V]) quantum.Options[V] {
	cc := caches[opts.Name]
	if cc.Lifetime > 0 {
		opts.Lifetime = cc.Lifetime
	}
	opts.FetchConcurrency = cc.FetchConcurrency
	opts.FetchMaybeConcurrency = cc.FetchMaybeConcurrency
	opts.BulkConcurrency = cc.BulkConcurrency
	opts.GlobalConcurrency = cc.GlobalConcurrency
	return opts
}

// equalComparable is quantum.Options.Equal for any comparable V,
// wired onto catalog entries whose value is cheap to compare directly
// (spec §4.3.1's "skip emission if identical" optimization).
func equalComparable[V comparable](a, b V) bool { return a == b }

// adaptFetch lifts a (ctx, key) (V, bool, error) loader method value
// into quantum.FetchFunc[V]; the method expression and the function
// type already match, this just documents the conversion site.
func adaptFetch[V any](fn func(ctx context.Context, key string) (V, bool, error)) quantum.FetchFunc[V] {
	return quantum.FetchFunc[V](fn)
}

func adaptBulk[V any](fn func(ctx context.Context, keys []string) (map[string]V, error)) quantum.BulkFetchFunc[V] {
	return quantum.BulkFetchFunc[V](fn)
}
