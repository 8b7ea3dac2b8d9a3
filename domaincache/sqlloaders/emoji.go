package sqlloaders

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

func scanEmoji(row interface {
	Scan(dest ...any) error
}) (*domaincache.Emoji, bool, error) {
	e := &domaincache.Emoji{}
	var host, aliases sql.NullString
	err := row.Scan(&e.ID, &e.Name, &host, &e.URL, &e.PublicURL, &aliases)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to scan emoji")
	}
	e.Host = host.String
	e.Aliases = splitNonEmpty(aliases.String)
	return e, true, nil
}

const emojiColumns = `id, name, host, url, public_url, aliases`

// FetchEmojiByID implements domaincache.Loaders.
func (s *Store) FetchEmojiByID(ctx context.Context, id string) (*domaincache.Emoji, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+emojiColumns+` FROM emojis WHERE id = ?`, id)
	return scanEmoji(row)
}

// FetchEmojisByIDBulk implements domaincache.Loaders.
func (s *Store) FetchEmojisByIDBulk(ctx context.Context, ids []string) (map[string]*domaincache.Emoji, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emojiColumns+` FROM emojis WHERE id IN (`+placeholders(len(ids))+`)`,
		argsForStrings(ids)...)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to bulk fetch emojis by id")
	}
	defer rows.Close()

	out := make(map[string]*domaincache.Emoji, len(ids))
	for rows.Next() {
		e, _, err := scanEmoji(rows)
		if err != nil {
			return nil, err
		}
		out[e.ID] = e
	}
	return out, rows.Err()
}

// FetchEmojiByKey implements domaincache.Loaders. key is the
// "name host" (or bare name for local) coherence key produced by
// domaincache.EncodeEmojiKey.
func (s *Store) FetchEmojiByKey(ctx context.Context, key string) (*domaincache.Emoji, bool, error) {
	name, host, err := domaincache.DecodeEmojiKey(key)
	if err != nil {
		return nil, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+emojiColumns+` FROM emojis WHERE name = ? AND host = ?`, name, host)
	return scanEmoji(row)
}

// FetchEmojisByKeyBulk implements domaincache.Loaders.
func (s *Store) FetchEmojisByKeyBulk(ctx context.Context, keys []string) (map[string]*domaincache.Emoji, error) {
	out := make(map[string]*domaincache.Emoji, len(keys))
	for _, key := range keys {
		e, found, err := s.FetchEmojiByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = e
		}
	}
	return out, nil
}

// CreateEmoji inserts a brand-new emoji row.
func (s *Store) CreateEmoji(ctx context.Context, e *domaincache.Emoji) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO emojis (id, name, host, url, public_url, aliases) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Host, e.URL, e.PublicURL, strings.Join(e.Aliases, ","))
	if err != nil {
		return qerrors.Wrap(err, "failed to insert emoji")
	}
	return nil
}

// UpdateEmojiRow persists an edited emoji row in place.
func (s *Store) UpdateEmojiRow(ctx context.Context, e *domaincache.Emoji) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE emojis SET name = ?, host = ?, url = ?, public_url = ?, aliases = ? WHERE id = ?`,
		e.Name, e.Host, e.URL, e.PublicURL, strings.Join(e.Aliases, ","), e.ID)
	if err != nil {
		return qerrors.Wrap(err, "failed to update emoji")
	}
	return nil
}
