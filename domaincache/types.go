// Package domaincache implements component E: the concrete catalog of
// caches for a federated social server's entities (users, profiles,
// follow/mute/block relations, list memberships, emojis, instances,
// public keys) and the cross-cache invalidation rules domain events
// trigger (spec §4.5).
package domaincache

import (
	"time"

	"github.com/fedimesh/qkvc/followstats"
)

// User is the authoritative entity cached by UserByID. Every other
// user-keyed cache holds only an index (key → id); consumers re-resolve
// through UserByID (spec §3.4 "Ownership").
type User struct {
	ID             string
	Host           string // empty string means local
	Token          string
	FollowingCount int
	FollowersCount int
	IsHibernated   bool
	IsSuspended    bool
	IsDeleted      bool
}

// IsLocal reports whether the user belongs to this instance.
func (u *User) IsLocal() bool { return u.Host == "" }

// Profile holds the fields cached by UserProfile.
type Profile struct {
	UserID          string
	MutedInstances  []string
	Description     string
}

// Follow is one directed follow relation.
type Follow struct {
	FollowerID    string
	FolloweeID    string
	FollowerInbox string
	WithReplies   bool
}

// ListMembership is one userId/listId membership row.
type ListMembership struct {
	UserID      string
	ListID      string
	WithReplies bool
}

// ThreadMute records a per-thread mute; IsPostMute distinguishes
// NoteMutings (true) from ThreadMutings (false), per the catalog.
type ThreadMute struct {
	UserID   string
	ThreadID string
	IsPostMute bool
}

// Instance is the authoritative entity cached by FederatedInstance,
// keyed by its punycoded registered domain.
type Instance struct {
	Host             string
	IsBlocked        bool
	IsSilenced       bool
	IsMediaSilenced  bool
}

// Emoji is the authoritative entity cached by EmojisByID / EmojisByKey.
type Emoji struct {
	ID          string
	Name        string
	Host        string // empty string means local
	URL         string
	PublicURL   string
	Aliases     []string
}

// PublicKey is a federation actor's public key, cached both by key id
// and by owning user id.
type PublicKey struct {
	KeyID  string
	UserID string
	PEM    string
}

// FollowStats is the value computed on demand by the memory-only
// follow-stats cache (component F, spec §4.6), implemented separately
// in package followstats.
type FollowStats = followstats.Stats

// Cache lifetimes, spec §4.5.1.
const (
	LifetimeUserByID               = 5 * time.Minute
	LifetimeLocalUserByNativeToken = 5 * time.Minute
	LifetimeUserByAcct             = 30 * time.Minute
	LifetimeUserProfile            = 30 * time.Minute
	LifetimeUserMutings            = 30 * time.Minute
	LifetimeUserMuted              = 30 * time.Minute
	LifetimeUserBlocking           = 30 * time.Minute
	LifetimeUserBlocked            = 30 * time.Minute
	LifetimeUserListMemberships    = 30 * time.Minute
	LifetimeListUserMemberships    = 30 * time.Minute
	LifetimeUserListFavorites      = 30 * time.Minute
	LifetimeListUserFavorites      = 30 * time.Minute
	LifetimeRenoteMutings          = 30 * time.Minute
	LifetimeThreadMutings          = 30 * time.Minute
	LifetimeNoteMutings            = 30 * time.Minute
	LifetimeUserFollowings         = 30 * time.Minute
	LifetimeUserFollowers          = 30 * time.Minute
	LifetimeHibernatedUsers        = 30 * time.Minute
	LifetimeUserFollowingChannels  = 30 * time.Minute
	LifetimeUserFollowStats        = 10 * time.Minute
	LifetimeURIPerson              = 30 * time.Minute
	LifetimePublicKeyByKeyID       = 12 * time.Hour
	LifetimePublicKeyByUserID      = 12 * time.Hour
	LifetimeEmojisByID             = time.Hour
	LifetimeEmojisByKey            = time.Hour
	LifetimeFederatedInstance      = 3 * time.Minute
)

// Cache names (the coherence channel identity, spec §3.1).
const (
	NameUserByID               = "userById"
	NameLocalUserByNativeToken = "localUserByNativeToken"
	NameUserByAcct             = "userByAcct"
	NameUserProfile            = "userProfile"
	NameUserMutings            = "userMutings"
	NameUserMuted              = "userMuted"
	NameUserBlocking           = "userBlocking"
	NameUserBlocked            = "userBlocked"
	NameUserListMemberships    = "userListMemberships"
	NameListUserMemberships    = "listUserMemberships"
	NameUserListFavorites      = "userListFavorites"
	NameListUserFavorites      = "listUserFavorites"
	NameRenoteMutings          = "renoteMutings"
	NameThreadMutings          = "threadMutings"
	NameNoteMutings            = "noteMutings"
	NameUserFollowings         = "userFollowings"
	NameUserFollowers          = "userFollowers"
	NameHibernatedUsers        = "hibernatedUsers"
	NameUserFollowingChannels  = "userFollowingChannels"
	NameUserFollowStats        = "userFollowStats"
	NameURIPerson              = "uriPerson"
	NamePublicKeyByKeyID       = "publicKeyByKeyId"
	NamePublicKeyByUserID      = "publicKeyByUserId"
	NameEmojisByID             = "emojisById"
	NameEmojisByKey            = "emojisByKey"
	NameFederatedInstance      = "federatedInstance"
)
