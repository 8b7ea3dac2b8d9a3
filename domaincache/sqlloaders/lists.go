package sqlloaders

import (
	"context"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

func (s *Store) fetchMembershipMap(ctx context.Context, query, arg string) (map[string]domaincache.ListMembership, bool, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to fetch membership map")
	}
	defer rows.Close()

	out := make(map[string]domaincache.ListMembership)
	for rows.Next() {
		var key string
		var m domaincache.ListMembership
		if err := rows.Scan(&key, &m.UserID, &m.ListID, &m.WithReplies); err != nil {
			return nil, false, qerrors.Wrap(err, "failed to scan membership row")
		}
		out[key] = m
	}
	return out, true, rows.Err()
}

func (s *Store) fetchMembershipMapBulk(ctx context.Context, query string, ids []string) (map[string]map[string]domaincache.ListMembership, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, query, argsForStrings(ids)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch membership maps")
	}
	defer rows.Close()

	out := make(map[string]map[string]domaincache.ListMembership, len(ids))
	for _, id := range ids {
		out[id] = make(map[string]domaincache.ListMembership)
	}
	for rows.Next() {
		var sourceID, targetKey string
		var m domaincache.ListMembership
		if err := rows.Scan(&sourceID, &targetKey, &m.UserID, &m.ListID, &m.WithReplies); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan membership row")
		}
		out[sourceID][targetKey] = m
	}
	return out, rows.Err()
}

// FetchUserListMemberships implements domaincache.Loaders: listId →
// membership, for a single user.
func (s *Store) FetchUserListMemberships(ctx context.Context, userID string) (map[string]domaincache.ListMembership, bool, error) {
	return s.fetchMembershipMap(ctx,
		`SELECT list_id, user_id, list_id, with_replies FROM list_memberships WHERE user_id = ?`, userID)
}

func (s *Store) FetchUserListMembershipsBulk(ctx context.Context, userIDs []string) (map[string]map[string]domaincache.ListMembership, error) {
	return s.fetchMembershipMapBulk(ctx,
		`SELECT user_id, list_id, user_id, list_id, with_replies FROM list_memberships WHERE user_id IN (`+placeholders(len(userIDs))+`)`,
		userIDs)
}

// FetchListUserMemberships implements domaincache.Loaders: userId →
// membership, for a single list.
func (s *Store) FetchListUserMemberships(ctx context.Context, listID string) (map[string]domaincache.ListMembership, bool, error) {
	return s.fetchMembershipMap(ctx,
		`SELECT user_id, user_id, list_id, with_replies FROM list_memberships WHERE list_id = ?`, listID)
}

func (s *Store) FetchListUserMembershipsBulk(ctx context.Context, listIDs []string) (map[string]map[string]domaincache.ListMembership, error) {
	return s.fetchMembershipMapBulk(ctx,
		`SELECT list_id, user_id, user_id, list_id, with_replies FROM list_memberships WHERE list_id IN (`+placeholders(len(listIDs))+`)`,
		listIDs)
}

func (s *Store) FetchUserListFavorites(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT list_id FROM list_favorites WHERE user_id = ?`, userID)
}

func (s *Store) FetchUserListFavoritesBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT user_id, list_id FROM list_favorites WHERE user_id IN (`+placeholders(len(userIDs))+`)`, userIDs)
}

func (s *Store) FetchListUserFavorites(ctx context.Context, listID string) (map[string]struct{}, bool, error) {
	return s.fetchIDSet(ctx, `SELECT user_id FROM list_favorites WHERE list_id = ?`, listID)
}

func (s *Store) FetchListUserFavoritesBulk(ctx context.Context, listIDs []string) (map[string]map[string]struct{}, error) {
	return s.fetchIDSetBulk(ctx,
		`SELECT list_id, user_id FROM list_favorites WHERE list_id IN (`+placeholders(len(listIDs))+`)`, listIDs)
}

// FetchURIPerson implements domaincache.Loaders.
func (s *Store) FetchURIPerson(ctx context.Context, uri string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM uri_person WHERE uri = ?`, uri).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, qerrors.Wrap(err, "failed to resolve uri person")
	}
	return id, true, nil
}

func (s *Store) FetchURIPersonBulk(ctx context.Context, uris []string) (map[string]string, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT uri, user_id FROM uri_person WHERE uri IN (`+placeholders(len(uris))+`)`, argsForStrings(uris)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk resolve uri persons")
	}
	defer rows.Close()

	out := make(map[string]string, len(uris))
	for rows.Next() {
		var uri, id string
		if err := rows.Scan(&uri, &id); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan uri person row")
		}
		out[uri] = id
	}
	return out, rows.Err()
}
