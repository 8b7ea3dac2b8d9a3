package sqlloaders

import (
	"context"
	"database/sql"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

// fetchIDSet runs a query selecting one id column and returns it as a
// set. Zero rows is a legitimate empty set, not absence (collection
// caches are never "missing" for an existing user).
func (s *Store) fetchIDSet(ctx context.Context, query, arg string) (map[string]struct{}, bool, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to fetch id set")
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, false, qerrors.Wrap(err, "failed to scan id set row")
		}
		out[id] = struct{}{}
	}
	return out, true, rows.Err()
}

// fetchIDSetBulk runs a query selecting (sourceId, targetId) pairs and
// groups targetId into a set keyed by sourceId, pre-seeded with an empty
// set for every requested id.
func (s *Store) fetchIDSetBulk(ctx context.Context, query string, ids []string) (map[string]map[string]struct{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, argsForStrings(ids)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch id sets")
	}
	defer rows.Close()

	out := make(map[string]map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = make(map[string]struct{})
	}
	for rows.Next() {
		var sourceID, targetID string
		if err := rows.Scan(&sourceID, &targetID); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan id set row")
		}
		out[sourceID][targetID] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) FetchUserMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx,
		`SELECT mutee_id FROM mutes WHERE muter_id = ? AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`, userID)
}

func (s *Store) FetchUserMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT muter_id, mutee_id FROM mutes WHERE muter_id IN (`+placeholders(len(userIDs))+`) AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`,
		userIDs)
}

func (s *Store) FetchUserMuted(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx,
		`SELECT muter_id FROM mutes WHERE mutee_id = ? AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`, userID)
}

func (s *Store) FetchUserMutedBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT mutee_id, muter_id FROM mutes WHERE mutee_id IN (`+placeholders(len(userIDs))+`) AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)`,
		userIDs)
}

func (s *Store) FetchUserBlocking(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT blockee_id FROM blocks WHERE blocker_id = ?`, userID)
}

func (s *Store) FetchUserBlockingBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT blocker_id, blockee_id FROM blocks WHERE blocker_id IN (`+placeholders(len(userIDs))+`)`, userIDs)
}

func (s *Store) FetchUserBlocked(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT blocker_id FROM blocks WHERE blockee_id = ?`, userID)
}

func (s *Store) FetchUserBlockedBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT blockee_id, blocker_id FROM blocks WHERE blockee_id IN (`+placeholders(len(userIDs))+`)`, userIDs)
}

func (s *Store) FetchRenoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT target_id FROM renote_mutes WHERE user_id = ?`, userID)
}

func (s *Store) FetchRenoteMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT user_id, target_id FROM renote_mutes WHERE user_id IN (`+placeholders(len(userIDs))+`)`, userIDs)
}

func (s *Store) FetchThreadMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT thread_id FROM thread_mutes WHERE user_id = ? AND is_post_mute = 0`, userID)
}

func (s *Store) FetchThreadMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT user_id, thread_id FROM thread_mutes WHERE user_id IN (`+placeholders(len(userIDs))+`) AND is_post_mute = 0`, userIDs)
}

func (s *Store) FetchNoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT thread_id FROM thread_mutes WHERE user_id = ? AND is_post_mute = 1`, userID)
}

func (s *Store) FetchNoteMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT user_id, thread_id FROM thread_mutes WHERE user_id IN (`+placeholders(len(userIDs))+`) AND is_post_mute = 1`, userIDs)
}

func (s *Store) FetchUserFollowingChannels(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT channel_id FROM channel_follows WHERE user_id = ?`, userID)
}

func (s *Store) FetchHibernated(ctx context.Context, userID string) (bool, bool, error) {
	var hibernated bool
	err := s.db.QueryRowContext(ctx, `SELECT is_hibernated FROM users WHERE id = ?`, userID).Scan(&hibernated)
	if isNoRows(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, qerrors.Wrap(err, "failed to fetch hibernation flag")
	}
	return hibernated, true, nil
}

func (s *Store) FetchHibernatedBulk(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, is_hibernated FROM users WHERE id IN (`+placeholders(len(userIDs))+`)`, argsForStrings(userIDs)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch hibernation flags")
	}
	defer rows.Close()

	out := make(map[string]bool, len(userIDs))
	for rows.Next() {
		var id string
		var hibernated bool
		if err := rows.Scan(&id, &hibernated); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan hibernation row")
		}
		out[id] = hibernated
	}
	return out, rows.Err()
}

// FetchFollowRelationsFor implements domaincache.Loaders, used by
// getFollowStats's miss path.
func (s *Store) FetchFollowRelationsFor(ctx context.Context, userID string) ([]domaincache.Follow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT follower_id, followee_id, follower_inbox, with_replies FROM follows
		 WHERE follower_id = ? OR followee_id = ?`, userID, userID)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to fetch follow relations")
	}
	defer rows.Close()

	var out []domaincache.Follow
	for rows.Next() {
		var f domaincache.Follow
		var inbox sql.NullString
		if err := rows.Scan(&f.FollowerID, &f.FolloweeID, &inbox, &f.WithReplies); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan follow row")
		}
		f.FollowerInbox = inbox.String
		out = append(out, f)
	}
	return out, rows.Err()
}
