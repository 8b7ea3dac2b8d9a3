package sqlloaders

import (
	"context"
	"database/sql"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domaincache.User, bool, error) {
	u := &domaincache.User{}
	var host, token sql.NullString
	err := row.Scan(&u.ID, &host, &token, &u.FollowingCount, &u.FollowersCount,
		&u.IsHibernated, &u.IsSuspended, &u.IsDeleted)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to scan user")
	}
	u.Host = host.String
	u.Token = token.String
	return u, true, nil
}

const userColumns = `id, host, token, following_count, followers_count, is_hibernated, is_suspended, is_deleted`

// FetchUserByID implements domaincache.Loaders.
func (s *Store) FetchUserByID(ctx context.Context, id string) (*domaincache.User, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// FetchUsersBulk implements domaincache.Loaders.
func (s *Store) FetchUsersBulk(ctx context.Context, ids []string) (map[string]*domaincache.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`,
		argsForStrings(ids)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch users")
	}
	defer rows.Close()

	out := make(map[string]*domaincache.User, len(ids))
	for rows.Next() {
		u, _, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// FetchUserIDByNativeToken implements domaincache.Loaders.
func (s *Store) FetchUserIDByNativeToken(ctx context.Context, token string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE token = ?`, token).Scan(&id)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, qerrors.Wrap(err, "failed to resolve native token")
	}
	return id, true, nil
}

// FetchUserIDsByNativeTokenBulk implements domaincache.Loaders.
func (s *Store) FetchUserIDsByNativeTokenBulk(ctx context.Context, tokens []string) (map[string]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, id FROM users WHERE token IN (`+placeholders(len(tokens))+`)`,
		argsForStrings(tokens)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk resolve native tokens")
	}
	defer rows.Close()

	out := make(map[string]string, len(tokens))
	for rows.Next() {
		var token, id string
		if err := rows.Scan(&token, &id); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan native token row")
		}
		out[token] = id
	}
	return out, rows.Err()
}

// FetchUserIDByAcct implements domaincache.Loaders. acctKey is already
// normalized by domaincache.EncodeAcctKey.
func (s *Store) FetchUserIDByAcct(ctx context.Context, acctKey string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE acct_key = ?`, acctKey).Scan(&id)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, qerrors.Wrap(err, "failed to resolve acct")
	}
	return id, true, nil
}

// FetchUserProfile implements domaincache.Loaders.
func (s *Store) FetchUserProfile(ctx context.Context, userID string) (*domaincache.Profile, bool, error) {
	p := &domaincache.Profile{UserID: userID}
	var muted, description sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT description, muted_instances FROM user_profiles WHERE user_id = ?`, userID,
	).Scan(&description, &muted)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to fetch user profile")
	}
	p.Description = description.String
	p.MutedInstances = splitNonEmpty(muted.String)
	return p, true, nil
}

// FetchUserProfilesBulk implements domaincache.Loaders.
func (s *Store) FetchUserProfilesBulk(ctx context.Context, userIDs []string) (map[string]*domaincache.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, description, muted_instances FROM user_profiles WHERE user_id IN (`+placeholders(len(userIDs))+`)`,
		argsForStrings(userIDs)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch user profiles")
	}
	defer rows.Close()

	out := make(map[string]*domaincache.Profile, len(userIDs))
	for rows.Next() {
		var userID string
		var description, muted sql.NullString
		if err := rows.Scan(&userID, &description, &muted); err != nil {
			return nil, qerrors.Wrap(err, "failed to scan user profile row")
		}
		out[userID] = &domaincache.Profile{
			UserID:         userID,
			Description:    description.String,
			MutedInstances: splitNonEmpty(muted.String),
		}
	}
	return out, rows.Err()
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
