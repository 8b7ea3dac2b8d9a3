package sqlloaders

import (
	"context"
	"database/sql"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

func (s *Store) fetchFollowMap(ctx context.Context, query, arg string) (map[string]domaincache.Follow, bool, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to fetch follow map")
	}
	defer rows.Close()

	out := make(map[string]domaincache.Follow)
	for rows.Next() {
		var f domaincache.Follow
		var key string
		var inbox sql.NullString
		if err := rows.Scan(&key, &f.FollowerID, &f.FolloweeID, &inbox, &f.WithReplies); err != nil {
			return nil, false, qerrors.Wrap(err, "failed to scan follow map row")
		}
		f.FollowerInbox = inbox.String
		out[key] = f
	}
	return out, true, rows.Err()
}

func (s *Store) fetchFollowMapBulk(ctx context.Context, query string, ids []string) (map[string]map[string]domaincache.Follow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, argsForStrings(ids)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch follow maps")
	}
	defer rows.Close()

	out := make(map[string]map[string]domaincache.Follow, len(ids))
	for _, id := range ids {
		out[id] = make(map[string]domaincache.Follow)
	}
	for rows.Next() {
		var sourceID, targetID string
		var f domaincache.Follow
		var inbox sql.NullString
		if err := rows.Scan(&sourceID, &targetID, &f.FollowerID, &f.FolloweeID, &inbox, &f.WithReplies); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan follow map row")
		}
		f.FollowerInbox = inbox.String
		out[sourceID][targetID] = f
	}
	return out, rows.Err()
}

// FetchUserFollowings implements domaincache.Loaders: followeeId →
// Follow, keyed for a single follower.
func (s *Store) FetchUserFollowings(ctx context.Context, userID string) (map[string]domaincache.Follow, bool, error) {
	return s.fetchFollowMap(ctx,
		`SELECT followee_id, follower_id, followee_id, follower_inbox, with_replies FROM follows WHERE follower_id = ?`,
		userID)
}

func (s *Store) FetchUserFollowingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]domaincache.Follow, error) {
	return s.fetchFollowMapBulk(ctx,
		`SELECT follower_id, followee_id, follower_id, followee_id, follower_inbox, with_replies FROM follows WHERE follower_id IN (`+placeholders(len(userIDs))+`)`,
		userIDs)
}

// FetchUserFollowers implements domaincache.Loaders: followerId → Follow,
// keyed for a single followee.
func (s *Store) FetchUserFollowers(ctx context.Context, userID string) (map[string]domaincache.Follow, bool, error) {
	return s.fetchFollowMap(ctx,
		`SELECT follower_id, follower_id, followee_id, follower_inbox, with_replies FROM follows WHERE followee_id = ?`,
		userID)
}

func (s *Store) FetchUserFollowersBulk(ctx context.Context, userIDs []string) (map[string]map[string]domaincache.Follow, error) {
	return s.fetchFollowMapBulk(ctx,
		`SELECT followee_id, follower_id, follower_id, followee_id, follower_inbox, with_replies FROM follows WHERE followee_id IN (`+placeholders(len(userIDs))+`)`,
		userIDs)
}
