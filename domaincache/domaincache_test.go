package domaincache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/bus/localtransport"
	"github.com/fedimesh/qkvc/registry"
)

func newTestBundle(t *testing.T) (*Bundle, *bus.Bus, *fakeLoaders) {
	t.Helper()
	bundle, _, b, _ := newTestBundleWithRegistry(t)
	return bundle, b, bundle.loaders.(*fakeLoaders)
}

func newTestBundleWithRegistry(t *testing.T) (*Bundle, *registry.Registry, *bus.Bus, *fakeLoaders) {
	t.Helper()
	b := bus.New(localtransport.Standalone(), nil)
	r := registry.New(b, nil)
	loaders := newFakeLoaders()
	bundle, err := NewBundle(r, loaders, nil)
	require.NoError(t, err)
	return bundle, r, b, loaders
}

func TestNewBundleRegistersEveryCacheName(t *testing.T) {
	_, r, _, _ := newTestBundleWithRegistry(t)
	names := r.Names()
	for _, want := range []string{NameUserByID, NameUserFollowings, NameEmojisByKey, NameFederatedInstance, NameUserFollowStats} {
		assert.Contains(t, names, want)
	}
}

func TestFindUserByAcctResolvesThroughBothCaches(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.users["u1"] = &User{ID: "u1", Host: ""}
	loaders.acctIndex["alice"] = "u1"

	user, err := bundle.FindUserByAcct(context.Background(), "Alice", "", "fedimesh.example")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestFindLocalUserByNativeTokenRejectsRemoteUser(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.users["u1"] = &User{ID: "u1", Host: "remote.example"}
	loaders.tokenIndex["tok"] = "u1"

	_, err := bundle.FindLocalUserByNativeToken(context.Background(), "tok")
	assert.Error(t, err)
}

func TestFindLocalUserByNativeTokenSucceedsForLocalUser(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.users["u1"] = &User{ID: "u1", Host: ""}
	loaders.tokenIndex["tok"] = "u1"

	user, err := bundle.FindLocalUserByNativeToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestGetFollowStatsBucketsByLocality(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.users["local-follower"] = &User{ID: "local-follower", Host: ""}
	loaders.users["remote-follower"] = &User{ID: "remote-follower", Host: "remote.example"}
	loaders.users["u1"] = &User{ID: "u1", Host: ""}
	loaders.followers["u1"] = map[string]Follow{
		"local-follower":  {FollowerID: "local-follower", FolloweeID: "u1"},
		"remote-follower": {FollowerID: "remote-follower", FolloweeID: "u1"},
	}

	ctx := context.Background()
	// warm UserByID so the bucketing can see locality.
	_, err := bundle.UserByID.Fetch(ctx, "local-follower")
	require.NoError(t, err)
	_, err = bundle.UserByID.Fetch(ctx, "remote-follower")
	require.NoError(t, err)

	stats, err := bundle.GetFollowStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LocalFollowers)
	assert.Equal(t, 1, stats.RemoteFollowers)
}

func TestGetFollowStatsCachesResult(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	ctx := context.Background()

	_, err := bundle.GetFollowStats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, loaders.followRelationsCalls)

	_, err = bundle.GetFollowStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaders.followRelationsCalls, "second call should hit memorycache, not reload")
}

func TestOnHibernationChangedMutatesCachedUserInPlace(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	ctx := context.Background()
	loaders.users["u1"] = &User{ID: "u1", IsHibernated: false}

	user, err := bundle.UserByID.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.False(t, user.IsHibernated)

	loaders.hibernated["u1"] = true
	_, err = bundle.HibernatedUsers.Refresh(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, user.IsHibernated, "the pointer held by the caller should reflect the hook's mutation")
}

func TestInvalidatorDeletesUserScopedCachesOnUserUpdated(t *testing.T) {
	bundle, b, loaders := newTestBundle(t)
	inv := NewInvalidator(b, bundle, nil)
	defer inv.Close()

	ctx := context.Background()
	loaders.users["u1"] = &User{ID: "u1"}
	_, err := bundle.UserByID.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bundle.UserByID.Has("u1"))

	require.NoError(t, b.Emit(ctx, bus.TopicUserUpdated, bus.UserIDPayload{ID: "u1"}, true))
	// handlers run synchronously off the emit per the bus' local-dispatch
	// contract exercised elsewhere in this repo's bus tests.
	assert.False(t, bundle.UserByID.Has("u1"))
}

func TestFollowHandlerAdjustsCountersBySign(t *testing.T) {
	bundle, b, loaders := newTestBundle(t)
	inv := NewInvalidator(b, bundle, nil)
	defer inv.Close()

	ctx := context.Background()
	loaders.users["follower"] = &User{ID: "follower", FollowingCount: 0}
	loaders.users["followee"] = &User{ID: "followee", FollowersCount: 0}
	follower, err := bundle.UserByID.Fetch(ctx, "follower")
	require.NoError(t, err)
	followee, err := bundle.UserByID.Fetch(ctx, "followee")
	require.NoError(t, err)

	require.NoError(t, b.Emit(ctx, bus.TopicFollow, bus.FollowPayload{FollowerID: "follower", FolloweeID: "followee"}, true))
	assert.Equal(t, 1, follower.FollowingCount)
	assert.Equal(t, 1, followee.FollowersCount)

	require.NoError(t, b.Emit(ctx, bus.TopicUnfollow, bus.FollowPayload{FollowerID: "follower", FolloweeID: "followee"}, true))
	assert.Equal(t, 0, follower.FollowingCount)
	assert.Equal(t, 0, followee.FollowersCount)
}

func TestHandleMetaUpdatedClearsFederatedInstanceOnlyOnChange(t *testing.T) {
	bundle, b, loaders := newTestBundle(t)
	inv := NewInvalidator(b, bundle, nil)
	defer inv.Close()

	ctx := context.Background()
	loaders.instances["remote.example"] = &Instance{Host: "remote.example"}
	_, err := bundle.FetchInstance(ctx, "remote.example")
	require.NoError(t, err)
	assert.True(t, bundle.FederatedInstance.Has("remote.example"))

	before := bus.MetaHostLists{BlockedHosts: []string{"a.example"}}
	after := before
	require.NoError(t, b.Emit(ctx, bus.TopicMetaUpdated, bus.MetaUpdatedPayload{Before: &before, After: after}, true))
	assert.True(t, bundle.FederatedInstance.Has("remote.example"), "identical host lists must not clear the cache")

	after.BlockedHosts = []string{"a.example", "b.example"}
	require.NoError(t, b.Emit(ctx, bus.TopicMetaUpdated, bus.MetaUpdatedPayload{Before: &before, After: after}, true))
	assert.False(t, bundle.FederatedInstance.Has("remote.example"))
}

func TestEncodeAcctKeyNormalizesLocalHost(t *testing.T) {
	key, err := EncodeAcctKey("Alice", "FediMesh.example", "fedimesh.example")
	require.NoError(t, err)
	assert.Equal(t, "alice", key, "a host matching the instance's own host collapses to local form")
}

func TestEncodeAcctKeyPunycodesRemoteHost(t *testing.T) {
	key, err := EncodeAcctKey("bob", "münchen.example", "fedimesh.example")
	require.NoError(t, err)
	assert.Equal(t, "bob@xn--mnchen-3ya.example", key)
}

func TestEncodeEmojiKeyRejectsSpaceInName(t *testing.T) {
	_, err := EncodeEmojiKey("blob cat", "")
	assert.Error(t, err)
}

func TestDecodeEmojiKeyRoundTrip(t *testing.T) {
	key, err := EncodeEmojiKey("blob", "remote.example")
	require.NoError(t, err)
	name, host, err := DecodeEmojiKey(key)
	require.NoError(t, err)
	assert.Equal(t, "blob", name)
	assert.Equal(t, "remote.example", host)
}

func TestPopulateEmojiResolvesLocalReference(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.emojisByID["e1"] = &Emoji{ID: "e1", Name: "blob", Host: "", URL: "https://local/blob.png"}

	url, found, err := bundle.PopulateEmoji(context.Background(), "blob", "", "fedimesh.example")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "https://local/blob.png", url)
}

func TestCreateEmojiAddsIndexWithoutEvent(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.emojisByID["e1"] = &Emoji{ID: "e1", Name: "blob", Host: ""}

	emoji, err := bundle.CreateEmoji(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "blob", emoji.Name)
	assert.True(t, bundle.EmojisByKey.Has("blob"))
}

func TestUpdateEmojiRejectsDuplicateName(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	loaders.emojisByID["e1"] = &Emoji{ID: "e1", Name: "blob-renamed", Host: ""}

	_, err := bundle.UpdateEmoji(context.Background(), "e1", "blob", true, func(name, host string) (bool, error) {
		return false, nil
	})
	assert.Error(t, err)
}

func TestFetchOrCreateInstanceIsCalledOncePerHost(t *testing.T) {
	bundle, _, loaders := newTestBundle(t)
	ctx := context.Background()

	_, err := bundle.FetchInstance(ctx, "remote.example")
	require.NoError(t, err)
	_, err = bundle.FetchInstance(ctx, "remote.example")
	require.NoError(t, err)

	assert.Equal(t, 1, loaders.instanceCalls)
}

func TestUserFollowStatsSurvivesFollowUnrelatedInvalidation(t *testing.T) {
	bundle, b, _ := newTestBundle(t)
	inv := NewInvalidator(b, bundle, nil)
	defer inv.Close()

	require.NoError(t, bundle.UserFollowStats.Set("u1", FollowStats{LocalFollowing: 2}))

	// an unrelated userUpdated event must not touch the memory-only
	// follow-stats cache (spec §4.6: only follow/unfollow invalidates it).
	require.NoError(t, b.Emit(context.Background(), bus.TopicUserUpdated, bus.UserIDPayload{ID: "someone-else"}, true))

	stats, err := bundle.UserFollowStats.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.LocalFollowing)
}
