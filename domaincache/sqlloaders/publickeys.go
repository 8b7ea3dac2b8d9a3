package sqlloaders

import (
	"context"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

func scanPublicKey(row interface {
	Scan(dest ...any) error
}) (*domaincache.PublicKey, bool, error) {
	k := &domaincache.PublicKey{}
	err := row.Scan(&k.KeyID, &k.UserID, &k.PEM)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to scan public key")
	}
	return k, true, nil
}

const publicKeyColumns = `key_id, user_id, pem`

// FetchPublicKeyByKeyID implements domaincache.Loaders.
func (s *Store) FetchPublicKeyByKeyID(ctx context.Context, keyID string) (*domaincache.PublicKey, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+publicKeyColumns+` FROM public_keys WHERE key_id = ?`, keyID)
	return scanPublicKey(row)
}

// FetchPublicKeyByKeyIDBulk implements domaincache.Loaders.
func (s *Store) FetchPublicKeyByKeyIDBulk(ctx context.Context, keyIDs []string) (map[string]*domaincache.PublicKey, error) {
	if len(keyIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_keys WHERE key_id IN (`+placeholders(len(keyIDs))+`)`,
		argsForStrings(keyIDs)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch public keys by key id")
	}
	defer rows.Close()

	out := make(map[string]*domaincache.PublicKey, len(keyIDs))
	for rows.Next() {
		k, _, err := scanPublicKey(rows)
		if err != nil {
			return nil, err
		}
		out[k.KeyID] = k
	}
	return out, rows.Err()
}

// FetchPublicKeyByUserID implements domaincache.Loaders.
func (s *Store) FetchPublicKeyByUserID(ctx context.Context, userID string) (*domaincache.PublicKey, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+publicKeyColumns+` FROM public_keys WHERE user_id = ?`, userID)
	return scanPublicKey(row)
}

// FetchPublicKeyByUserIDBulk implements domaincache.Loaders.
func (s *Store) FetchPublicKeyByUserIDBulk(ctx context.Context, userIDs []string) (map[string]*domaincache.PublicKey, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publicKeyColumns+` FROM public_keys WHERE user_id IN (`+placeholders(len(userIDs))+`)`,
		argsForStrings(userIDs)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch public keys by user id")
	}
	defer rows.Close()

	out := make(map[string]*domaincache.PublicKey, len(userIDs))
	for rows.Next() {
		k, _, err := scanPublicKey(rows)
		if err != nil {
			return nil, err
		}
		out[k.UserID] = k
	}
	return out, rows.Err()
}
