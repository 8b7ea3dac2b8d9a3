package domaincache

import (
	"context"
	"regexp"
	"strings"

	"github.com/fedimesh/qkvc/qerrors"
)

// emojiRefPattern matches "name" or "name@host" shorthand references,
// spec §4.5.6.
var emojiRefPattern = regexp.MustCompile(`^([-\w]+)(?:@([\w.-]+))?$`)

// PopulateEmoji resolves a ":name:" or ":name@host:" reference found in
// a note body to its displayable URL, using noteUserHost as the host to
// assume when the reference omits one (spec §4.5.6).
func (b *Bundle) PopulateEmoji(ctx context.Context, nameWithOptionalHost, noteUserHost, localHost string) (string, bool, error) {
	m := emojiRefPattern.FindStringSubmatch(nameWithOptionalHost)
	if m == nil {
		return "", false, nil
	}
	name, host := m[1], m[2]

	switch {
	case host == ".":
		host = ""
	case host == "":
		host = noteUserHost
	}
	normalizedHost, err := normalizeHost(host, localHost)
	if err != nil {
		return "", false, err
	}

	key, err := EncodeEmojiKey(name, normalizedHost)
	if err != nil {
		return "", false, err
	}

	emoji, found, err := b.EmojisByKey.FetchMaybe(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	if emoji.PublicURL != "" {
		return emoji.PublicURL, true, nil
	}
	return emoji.URL, true, nil
}

// CreateEmoji installs a newly-created emoji (spec §4.5.6): the row
// already exists in the database by the time this is called, so
// emojisById.fetch warms the authoritative cache, and emojisByKey.add
// installs the index without a coherence event (peers have no reason to
// evict an entry they never had).
func (b *Bundle) CreateEmoji(ctx context.Context, newID string) (*Emoji, error) {
	emoji, err := b.EmojisByID.Fetch(ctx, newID)
	if err != nil {
		return nil, err
	}
	key, err := EncodeEmojiKey(emoji.Name, emoji.Host)
	if err != nil {
		return nil, err
	}
	if err := b.EmojisByKey.Add(key, emoji); err != nil {
		return nil, err
	}
	return emoji, nil
}

// UpdateEmoji applies a rename/update already persisted to the database
// (spec §4.5.6): emojisById.refresh re-reads the row; if the name
// changed, uniqueCheck must then be satisfied; emojisByKey.set installs
// the row under the (possibly new) key so peers evict any stale entry at
// that key; and if the name changed, the old key is deleted from
// emojisByKey when it differs (case-insensitively) from the new one.
func (b *Bundle) UpdateEmoji(ctx context.Context, id, oldKey string, nameChanged bool, uniqueCheck func(name, host string) (bool, error)) (*Emoji, error) {
	updated, err := b.EmojisByID.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if nameChanged && uniqueCheck != nil {
		unique, err := uniqueCheck(updated.Name, updated.Host)
		if err != nil {
			return nil, err
		}
		if !unique {
			return nil, qerrors.ErrDuplicateEmoji
		}
	}

	newKey, err := EncodeEmojiKey(updated.Name, updated.Host)
	if err != nil {
		return nil, err
	}
	if err := b.EmojisByKey.Set(ctx, newKey, updated); err != nil {
		return nil, err
	}
	if nameChanged && oldKey != "" && !strings.EqualFold(oldKey, newKey) {
		if err := b.EmojisByKey.Delete(ctx, oldKey); err != nil {
			return nil, err
		}
	}
	return updated, nil
}
