package domaincache

import "context"

// Loaders is the full set of database-backed fetch functions the
// catalog needs. domaincache/sqlloaders implements it against a
// database/sql handle (spec §4.5's loader backing); tests can supply a
// hand-rolled fake instead.
//
// Every *Set method returns a key set as map[string]struct{}; every
// *Bulk method is the fetchBulk counterpart the catalog wires in
// wherever §4.5.1 marks the cache "bulk loader? yes".
type Loaders interface {
	FetchUserByID(ctx context.Context, id string) (*User, bool, error)
	FetchUsersBulk(ctx context.Context, ids []string) (map[string]*User, error)

	FetchUserIDByNativeToken(ctx context.Context, token string) (string, bool, error)
	FetchUserIDsByNativeTokenBulk(ctx context.Context, tokens []string) (map[string]string, error)

	FetchUserIDByAcct(ctx context.Context, acctKey string) (string, bool, error)

	FetchUserProfile(ctx context.Context, userID string) (*Profile, bool, error)
	FetchUserProfilesBulk(ctx context.Context, userIDs []string) (map[string]*Profile, error)

	FetchUserMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchUserMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)
	FetchUserMuted(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchUserMutedBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)

	FetchUserBlocking(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchUserBlockingBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)
	FetchUserBlocked(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchUserBlockedBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)

	FetchUserListMemberships(ctx context.Context, userID string) (map[string]ListMembership, bool, error)
	FetchUserListMembershipsBulk(ctx context.Context, userIDs []string) (map[string]map[string]ListMembership, error)
	FetchListUserMemberships(ctx context.Context, listID string) (map[string]ListMembership, bool, error)
	FetchListUserMembershipsBulk(ctx context.Context, listIDs []string) (map[string]map[string]ListMembership, error)

	FetchUserListFavorites(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchUserListFavoritesBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)
	FetchListUserFavorites(ctx context.Context, listID string) (map[string]struct{}, bool, error)
	FetchListUserFavoritesBulk(ctx context.Context, listIDs []string) (map[string]map[string]struct{}, error)

	FetchRenoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchRenoteMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)

	FetchThreadMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchThreadMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)
	FetchNoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error)
	FetchNoteMutingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]struct{}, error)

	FetchUserFollowings(ctx context.Context, userID string) (map[string]Follow, bool, error)
	FetchUserFollowingsBulk(ctx context.Context, userIDs []string) (map[string]map[string]Follow, error)
	FetchUserFollowers(ctx context.Context, userID string) (map[string]Follow, bool, error)
	FetchUserFollowersBulk(ctx context.Context, userIDs []string) (map[string]map[string]Follow, error)

	FetchHibernated(ctx context.Context, userID string) (bool, bool, error)
	FetchHibernatedBulk(ctx context.Context, userIDs []string) (map[string]bool, error)

	FetchUserFollowingChannels(ctx context.Context, userID string) (map[string]struct{}, bool, error)

	FetchURIPerson(ctx context.Context, uri string) (string, bool, error)
	FetchURIPersonBulk(ctx context.Context, uris []string) (map[string]string, error)

	FetchPublicKeyByKeyID(ctx context.Context, keyID string) (*PublicKey, bool, error)
	FetchPublicKeyByKeyIDBulk(ctx context.Context, keyIDs []string) (map[string]*PublicKey, error)
	FetchPublicKeyByUserID(ctx context.Context, userID string) (*PublicKey, bool, error)
	FetchPublicKeyByUserIDBulk(ctx context.Context, userIDs []string) (map[string]*PublicKey, error)

	FetchEmojiByID(ctx context.Context, id string) (*Emoji, bool, error)
	FetchEmojisByIDBulk(ctx context.Context, ids []string) (map[string]*Emoji, error)
	FetchEmojiByKey(ctx context.Context, key string) (*Emoji, bool, error)
	FetchEmojisByKeyBulk(ctx context.Context, keys []string) (map[string]*Emoji, error)

	// FetchOrCreateInstance implements the "loader upserts a row if
	// missing (find-or-create)" rule for federatedInstance.fetch (spec
	// §4.5.6).
	FetchOrCreateInstance(ctx context.Context, host string) (*Instance, error)

	// FetchFollowRelationsFor returns every follow relation where userID
	// is either side, for getFollowStats's miss path (spec §4.5.5).
	FetchFollowRelationsFor(ctx context.Context, userID string) ([]Follow, error)
}
