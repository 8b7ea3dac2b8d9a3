package domaincache

import (
	"context"
	"sync"
)

// fakeLoaders is an in-memory Loaders implementation for exercising the
// catalog, compound reads, and invalidation handlers without a database.
type fakeLoaders struct {
	mu sync.Mutex

	users        map[string]*User
	profiles     map[string]*Profile
	acctIndex    map[string]string
	tokenIndex   map[string]string
	followings   map[string]map[string]Follow
	followers    map[string]map[string]Follow
	hibernated   map[string]bool
	emojisByID   map[string]*Emoji
	instances    map[string]*Instance
	instanceCalls int
	followRelationsCalls int
}

func newFakeLoaders() *fakeLoaders {
	return &fakeLoaders{
		users:      make(map[string]*User),
		profiles:   make(map[string]*Profile),
		acctIndex:  make(map[string]string),
		tokenIndex: make(map[string]string),
		followings: make(map[string]map[string]Follow),
		followers:  make(map[string]map[string]Follow),
		hibernated: make(map[string]bool),
		emojisByID: make(map[string]*Emoji),
		instances:  make(map[string]*Instance),
	}
}

func (f *fakeLoaders) FetchUserByID(_ context.Context, id string) (*User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	return u, ok, nil
}

func (f *fakeLoaders) FetchUsersBulk(_ context.Context, ids []string) (map[string]*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeLoaders) FetchUserIDByNativeToken(_ context.Context, token string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokenIndex[token]
	return id, ok, nil
}

func (f *fakeLoaders) FetchUserIDsByNativeTokenBulk(_ context.Context, tokens []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, t := range tokens {
		if id, ok := f.tokenIndex[t]; ok {
			out[t] = id
		}
	}
	return out, nil
}

func (f *fakeLoaders) FetchUserIDByAcct(_ context.Context, acctKey string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.acctIndex[acctKey]
	return id, ok, nil
}

func (f *fakeLoaders) FetchUserProfile(_ context.Context, userID string) (*Profile, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	return p, ok, nil
}

func (f *fakeLoaders) FetchUserProfilesBulk(_ context.Context, userIDs []string) (map[string]*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*Profile)
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeLoaders) emptySet(context.Context, string) (map[string]struct{}, bool, error) {
	return map[string]struct{}{}, true, nil
}
func (f *fakeLoaders) emptySetBulk(_ context.Context, ids []string) (map[string]map[string]struct{}, error) {
	out := make(map[string]map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = map[string]struct{}{}
	}
	return out, nil
}

func (f *fakeLoaders) FetchUserMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchUserMutingsBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchUserMuted(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchUserMutedBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchUserBlocking(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchUserBlockingBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchUserBlocked(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchUserBlockedBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchRenoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchRenoteMutingsBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchThreadMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchThreadMutingsBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchNoteMutings(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchNoteMutingsBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchUserListFavorites(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}
func (f *fakeLoaders) FetchUserListFavoritesBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchListUserFavorites(ctx context.Context, listID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, listID)
}
func (f *fakeLoaders) FetchListUserFavoritesBulk(ctx context.Context, ids []string) (map[string]map[string]struct{}, error) {
	return f.emptySetBulk(ctx, ids)
}
func (f *fakeLoaders) FetchUserFollowingChannels(ctx context.Context, userID string) (map[string]struct{}, bool, error) {
	return f.emptySet(ctx, userID)
}

func (f *fakeLoaders) emptyMembership(context.Context, string) (map[string]ListMembership, bool, error) {
	return map[string]ListMembership{}, true, nil
}
func (f *fakeLoaders) emptyMembershipBulk(_ context.Context, ids []string) (map[string]map[string]ListMembership, error) {
	out := make(map[string]map[string]ListMembership, len(ids))
	for _, id := range ids {
		out[id] = map[string]ListMembership{}
	}
	return out, nil
}
func (f *fakeLoaders) FetchUserListMemberships(ctx context.Context, userID string) (map[string]ListMembership, bool, error) {
	return f.emptyMembership(ctx, userID)
}
func (f *fakeLoaders) FetchUserListMembershipsBulk(ctx context.Context, ids []string) (map[string]map[string]ListMembership, error) {
	return f.emptyMembershipBulk(ctx, ids)
}
func (f *fakeLoaders) FetchListUserMemberships(ctx context.Context, listID string) (map[string]ListMembership, bool, error) {
	return f.emptyMembership(ctx, listID)
}
func (f *fakeLoaders) FetchListUserMembershipsBulk(ctx context.Context, ids []string) (map[string]map[string]ListMembership, error) {
	return f.emptyMembershipBulk(ctx, ids)
}

func (f *fakeLoaders) FetchUserFollowings(_ context.Context, userID string) (map[string]Follow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.followings[userID]
	if !ok {
		return map[string]Follow{}, true, nil
	}
	return m, true, nil
}
func (f *fakeLoaders) FetchUserFollowingsBulk(_ context.Context, ids []string) (map[string]map[string]Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[string]Follow, len(ids))
	for _, id := range ids {
		out[id] = f.followings[id]
	}
	return out, nil
}
func (f *fakeLoaders) FetchUserFollowers(_ context.Context, userID string) (map[string]Follow, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.followers[userID]
	if !ok {
		return map[string]Follow{}, true, nil
	}
	return m, true, nil
}
func (f *fakeLoaders) FetchUserFollowersBulk(_ context.Context, ids []string) (map[string]map[string]Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[string]Follow, len(ids))
	for _, id := range ids {
		out[id] = f.followers[id]
	}
	return out, nil
}

func (f *fakeLoaders) FetchHibernated(_ context.Context, userID string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hibernated[userID], true, nil
}
func (f *fakeLoaders) FetchHibernatedBulk(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = f.hibernated[id]
	}
	return out, nil
}

func (f *fakeLoaders) FetchURIPerson(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeLoaders) FetchURIPersonBulk(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeLoaders) FetchPublicKeyByKeyID(context.Context, string) (*PublicKey, bool, error) {
	return nil, false, nil
}
func (f *fakeLoaders) FetchPublicKeyByKeyIDBulk(context.Context, []string) (map[string]*PublicKey, error) {
	return map[string]*PublicKey{}, nil
}
func (f *fakeLoaders) FetchPublicKeyByUserID(context.Context, string) (*PublicKey, bool, error) {
	return nil, false, nil
}
func (f *fakeLoaders) FetchPublicKeyByUserIDBulk(context.Context, []string) (map[string]*PublicKey, error) {
	return map[string]*PublicKey{}, nil
}

func (f *fakeLoaders) FetchEmojiByID(_ context.Context, id string) (*Emoji, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.emojisByID[id]
	return e, ok, nil
}
func (f *fakeLoaders) FetchEmojisByIDBulk(_ context.Context, ids []string) (map[string]*Emoji, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*Emoji)
	for _, id := range ids {
		if e, ok := f.emojisByID[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}
func (f *fakeLoaders) FetchEmojiByKey(_ context.Context, key string) (*Emoji, bool, error) {
	name, host, err := DecodeEmojiKey(key)
	if err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emojisByID {
		if e.Name == name && e.Host == host {
			return e, true, nil
		}
	}
	return nil, false, nil
}
func (f *fakeLoaders) FetchEmojisByKeyBulk(ctx context.Context, keys []string) (map[string]*Emoji, error) {
	out := make(map[string]*Emoji)
	for _, key := range keys {
		if e, found, err := f.FetchEmojiByKey(ctx, key); err != nil {
			return nil, err
		} else if found {
			out[key] = e
		}
	}
	return out, nil
}

func (f *fakeLoaders) FetchOrCreateInstance(_ context.Context, host string) (*Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instanceCalls++
	if inst, ok := f.instances[host]; ok {
		return inst, nil
	}
	inst := &Instance{Host: host}
	f.instances[host] = inst
	return inst, nil
}

func (f *fakeLoaders) FetchFollowRelationsFor(_ context.Context, userID string) ([]Follow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followRelationsCalls++
	var out []Follow
	for _, fl := range f.followings[userID] {
		out = append(out, fl)
	}
	for _, fl := range f.followers[userID] {
		out = append(out, fl)
	}
	return out, nil
}
