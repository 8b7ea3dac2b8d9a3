package domaincache

import (
	"context"

	"github.com/fedimesh/qkvc/qerrors"
)

// FindUserByAcct resolves "username[@host]" to a *User, normalizing the
// acct the same way EncodeAcctKey does, then chaining userByAcct →
// userById (spec §4.5.5).
func (b *Bundle) FindUserByAcct(ctx context.Context, username, host, localHost string) (*User, error) {
	key, err := EncodeAcctKey(username, host, localHost)
	if err != nil {
		return nil, err
	}
	id, err := b.UserByAcct.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return b.UserByID.Fetch(ctx, id)
}

// FindLocalUserByNativeToken resolves token → *User via
// localUserByNativeToken → userById, asserting the resolved user is
// local (spec §4.5.5).
func (b *Bundle) FindLocalUserByNativeToken(ctx context.Context, token string) (*User, error) {
	id, err := b.LocalUserByNativeToken.Fetch(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := b.UserByID.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsLocal() {
		return nil, qerrors.ErrUserNotLocal
	}
	return user, nil
}

// IsFollowing reports whether a follows b, preferring the side already
// resident in memory to minimize DB hits (spec §4.5.5).
func (b *Bundle) IsFollowing(ctx context.Context, a, followeeID string) (bool, error) {
	if followers, found, err := b.UserFollowers.GetMaybe(followeeID); err == nil && found {
		_, ok := followers[a]
		return ok, nil
	}
	followings, err := b.UserFollowings.Fetch(ctx, a)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok := followings[followeeID]
	return ok, nil
}

// RefreshFollowRelationsFor re-fetches userId's followings and evicts
// userFollowers for every followee so peer-side invalidation propagates
// (spec §4.5.5).
func (b *Bundle) RefreshFollowRelationsFor(ctx context.Context, userID string) error {
	followings, err := b.UserFollowings.Refresh(ctx, userID)
	if err != nil && !qerrors.Is(err, qerrors.ErrKeyNotFound) {
		return err
	}
	if len(followings) == 0 {
		return nil
	}
	followeeIDs := make([]string, 0, len(followings))
	for followeeID := range followings {
		followeeIDs = append(followeeIDs, followeeID)
	}
	return b.UserFollowers.DeleteMany(ctx, followeeIDs)
}

// GetFollowStats returns userId's cached follow counts, computing them
// on a miss by bucketing every follow relation touching userId into
// local/remote by the other side's host, then heuristically filling in
// the remote counts the local relation table can't see directly (spec
// §4.5.5).
func (b *Bundle) GetFollowStats(ctx context.Context, userID string) (FollowStats, error) {
	if stats, err := b.UserFollowStats.Get(userID); err == nil {
		return stats, nil
	}

	relations, err := b.loaders.FetchFollowRelationsFor(ctx, userID)
	if err != nil {
		return FollowStats{}, err
	}

	var stats FollowStats
	for _, rel := range relations {
		if rel.FollowerID == userID {
			if other, found, _ := b.UserByID.GetMaybe(rel.FolloweeID); found && !other.IsLocal() {
				stats.RemoteFollowing++
			} else {
				stats.LocalFollowing++
			}
		}
		if rel.FolloweeID == userID {
			if other, found, _ := b.UserByID.GetMaybe(rel.FollowerID); found && !other.IsLocal() {
				stats.RemoteFollowers++
			} else {
				stats.LocalFollowers++
			}
		}
	}

	if user, found, _ := b.UserByID.GetMaybe(userID); found && !user.IsLocal() {
		if remaining := user.FollowingCount - stats.LocalFollowing; remaining > 0 {
			stats.RemoteFollowing = remaining
		}
		if remaining := user.FollowersCount - stats.LocalFollowers; remaining > 0 {
			stats.RemoteFollowers = remaining
		}
	}

	_ = b.UserFollowStats.Set(userID, stats)
	return stats, nil
}

// FollowerEntry pairs a follow relation with whether that follower is
// currently hibernated.
type FollowerEntry struct {
	Follow               Follow
	IsFollowerHibernated bool
}

// GetFollowersWithHibernation fetches followeeId's followers, then joins
// in each follower's hibernation flag (default false on absent), spec
// §4.5.5.
func (b *Bundle) GetFollowersWithHibernation(ctx context.Context, followeeID string) ([]FollowerEntry, error) {
	followers, err := b.UserFollowers.Fetch(ctx, followeeID)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(followers))
	for followerID := range followers {
		ids = append(ids, followerID)
	}
	hibernated, err := b.HibernatedUsers.FetchMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	hibernatedByID := make(map[string]bool, len(hibernated))
	for _, kv := range hibernated {
		hibernatedByID[kv.Key] = kv.Value
	}

	entries := make([]FollowerEntry, 0, len(followers))
	for _, follow := range followers {
		entries = append(entries, FollowerEntry{
			Follow:               follow,
			IsFollowerHibernated: hibernatedByID[follow.FollowerID],
		})
	}
	return entries, nil
}
