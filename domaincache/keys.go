package domaincache

import (
	"strings"

	"golang.org/x/net/idna"

	"github.com/fedimesh/qkvc/qerrors"
)

// normalizeHost lowercases and punycodes a host. An empty string (local)
// passes through unchanged. localHost is the instance's own configured
// host; a host equal to it is normalized to "" BEFORE key encoding
// (spec §4.5.2).
func normalizeHost(host, localHost string) (string, error) {
	if host == "" {
		return "", nil
	}
	host = strings.ToLower(host)
	punycoded, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", qerrors.Wrapf(err, "punycoding host %q", host)
	}
	if punycoded == strings.ToLower(localHost) {
		return "", nil
	}
	return punycoded, nil
}

// EncodeAcctKey builds the userByAcct cache key: lowercased "username"
// if host is empty, else "username@host" with host punycoded and
// self-host-normalized (spec §4.5.2).
func EncodeAcctKey(username, host, localHost string) (string, error) {
	normalizedHost, err := normalizeHost(host, localHost)
	if err != nil {
		return "", err
	}
	username = strings.ToLower(username)
	if normalizedHost == "" {
		return username, nil
	}
	return username + "@" + normalizedHost, nil
}

// EncodeEmojiKey builds an emojisByKey cache key: "name" if host is
// empty, else "name host" joined by a single ASCII space (spec §4.5.2).
// name must be non-empty and contain no space; host, if present, must be
// non-empty and contain no space.
func EncodeEmojiKey(name, host string) (string, error) {
	if name == "" {
		return "", qerrors.WithMessage(qerrors.ErrInvalidEmojiName, "name must not be empty")
	}
	if strings.Contains(name, " ") {
		return "", qerrors.WithMessage(qerrors.ErrInvalidEmojiName, "name must not contain a space")
	}
	if host == "" {
		return name, nil
	}
	if strings.Contains(host, " ") {
		return "", qerrors.WithMessage(qerrors.ErrInvalidEmojiHost, "host must not contain a space")
	}
	return name + " " + host, nil
}

// DecodeEmojiKey splits an emojisByKey key back into name and host,
// splitting on the first space (spec §4.5.2). host is "" for a local
// emoji.
func DecodeEmojiKey(key string) (name, host string, err error) {
	if key == "" {
		return "", "", qerrors.WithMessage(qerrors.ErrInvalidEmojiKey, "key must not be empty")
	}
	if idx := strings.IndexByte(key, ' '); idx >= 0 {
		return key[:idx], key[idx+1:], nil
	}
	return key, "", nil
}

// EncodeInstanceKey returns the punycoded registered-domain form of host
// used as the federatedInstance cache key (spec §4.5.2).
func EncodeInstanceKey(host string) (string, error) {
	host = strings.ToLower(host)
	registered, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", qerrors.Wrapf(err, "punycoding instance host %q", host)
	}
	return registered, nil
}
