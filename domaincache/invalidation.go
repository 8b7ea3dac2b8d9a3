package domaincache

import (
	"context"
	"encoding/json"
	"reflect"

	"go.uber.org/zap"

	"github.com/fedimesh/qkvc/bus"
	"github.com/fedimesh/qkvc/logging"
)

// Invalidator subscribes to every domain event topic named in spec
// §4.5.3 and issues the cross-cache delete/set operations it specifies.
// It is constructed after Bundle so its handlers can reach every cache.
type Invalidator struct {
	bus     *bus.Bus
	bundle  *Bundle
	log     *zap.SugaredLogger
	subs    []bus.Subscription
}

// NewInvalidator wires b's domain-event handlers onto bundle's caches.
// isLocal-gated handlers (marked "only if isLocal=true" in §4.5.3) pass
// bus.HandlerOptions{IgnoreRemote: true}: the originating process is
// responsible for expansion, while peers receive QKVC's own coherence
// events instead (§4.5.3's framing note).
func NewInvalidator(b *bus.Bus, bundle *Bundle, log *zap.SugaredLogger) *Invalidator {
	if log == nil {
		log = logging.Named("domaincache")
	}
	inv := &Invalidator{bus: b, bundle: bundle, log: log}
	inv.wire()
	return inv
}

func (inv *Invalidator) wire() {
	localOnly := bus.HandlerOptions{IgnoreRemote: true}

	inv.on(bus.TopicUserUpdated, localOnly, inv.handleUserID)
	inv.on(bus.TopicUsersUpdated, localOnly, inv.handleUsersUpdated)
	inv.on(bus.TopicUserChangeSuspendedState, localOnly, inv.handleUserID)
	inv.on(bus.TopicUserChangeDeletedState, localOnly, inv.handleUserID)
	inv.on(bus.TopicRemoteUserUpdated, localOnly, inv.handleUserID)
	inv.on(bus.TopicLocalUserUpdated, localOnly, inv.handleUserID)

	inv.on(bus.TopicUserTokenRegenerated, localOnly, inv.handleUserTokenRegenerated)

	inv.on(bus.TopicFollow, bus.HandlerOptions{}, inv.followHandler(1))
	inv.on(bus.TopicUnfollow, bus.HandlerOptions{}, inv.followHandler(-1))

	inv.on(bus.TopicFollowChannel, localOnly, inv.handleFollowChannel)
	inv.on(bus.TopicUnfollowChannel, localOnly, inv.handleFollowChannel)

	inv.on(bus.TopicUpdateUserProfile, localOnly, inv.handleUpdateUserProfile)

	inv.on(bus.TopicUserListMemberAdded, bus.HandlerOptions{}, inv.handleUserListMember)
	inv.on(bus.TopicUserListMemberUpdated, bus.HandlerOptions{}, inv.handleUserListMember)
	inv.on(bus.TopicUserListMemberRemoved, bus.HandlerOptions{}, inv.handleUserListMember)
	inv.on(bus.TopicUserListMemberBulkAdded, bus.HandlerOptions{}, inv.handleUserListMemberBulk)
	inv.on(bus.TopicUserListMemberBulkUpdated, bus.HandlerOptions{}, inv.handleUserListMemberBulk)
	inv.on(bus.TopicUserListMemberBulkRemoved, bus.HandlerOptions{}, inv.handleUserListMemberBulk)

	inv.on(bus.TopicMetaUpdated, localOnly, inv.handleMetaUpdated)
}

func (inv *Invalidator) on(topic string, opts bus.HandlerOptions, handler bus.Handler) {
	inv.subs = append(inv.subs, inv.bus.On(topic, handler, opts))
}

// Close unregisters every handler this Invalidator installed.
func (inv *Invalidator) Close() {
	for _, sub := range inv.subs {
		inv.bus.Off(sub)
	}
}

func (inv *Invalidator) handleUserID(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UserIDPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return inv.invalidateUsers(ctx, []string{msg.ID})
}

func (inv *Invalidator) handleUsersUpdated(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UsersUpdated
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return inv.invalidateUsers(ctx, msg.IDs)
}

// invalidateUsers implements the bulk of spec §4.5.3's first rule:
// delete every user-scoped index cache entry for ids, plus every
// listUserMemberships entry whose cached membership map currently
// references one of ids.
func (inv *Invalidator) invalidateUsers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	affectedLists := inv.affectedLists(ids)

	deletes := []func() error{
		func() error { return inv.bundle.UserByID.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserProfile.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserMutings.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserMuted.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserBlocking.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserBlocked.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.RenoteMutings.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserFollowings.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserFollowers.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.HibernatedUsers.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.ThreadMutings.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.NoteMutings.DeleteMany(ctx, ids) },
		func() error { return inv.bundle.UserListMemberships.DeleteMany(ctx, ids) },
	}
	if len(affectedLists) > 0 {
		deletes = append(deletes, func() error { return inv.bundle.ListUserMemberships.DeleteMany(ctx, affectedLists) })
	}
	return runConcurrently(deletes)
}

// affectedLists scans listUserMemberships' resident entries for any
// membership whose userId is in ids (spec §4.5.3's "affectedLists" set).
// It only sees entries currently in this process's memory; that is
// sufficient because every process runs the same scan against its own
// cache, per the coherence model's per-process read-after-write scope.
func (inv *Invalidator) affectedLists(ids []string) []string {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var affected []string
	for listID, members := range inv.bundle.ListUserMemberships.Entries() {
		for memberID := range members {
			if _, ok := wanted[memberID]; ok {
				affected = append(affected, listID)
				break
			}
		}
	}
	return affected
}

func (inv *Invalidator) handleUserTokenRegenerated(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UserTokenRegenerated
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if err := inv.bundle.LocalUserByNativeToken.Delete(ctx, msg.OldToken); err != nil {
		return err
	}
	return inv.bundle.LocalUserByNativeToken.Set(ctx, msg.NewToken, msg.ID)
}

// followHandler implements spec §4.5.3's follow/unfollow rule: it
// adjusts in-memory user objects' counters (not the DB) by delta (+1 for
// follow, -1 for unfollow), each side only if it is resident, then evicts the
// affected followings/followers/stats entries. Every process applies
// this independently since each side mutates only its own resident
// copies.
func (inv *Invalidator) followHandler(delta int) bus.Handler {
	return func(ctx context.Context, payload json.RawMessage, _ bool) error {
		var msg bus.FollowPayload
		if err := json.Unmarshal(payload, &msg); err != nil {
			return err
		}

		if user, found, _ := inv.bundle.UserByID.GetMaybe(msg.FollowerID); found {
			user.FollowingCount += delta
		}
		if user, found, _ := inv.bundle.UserByID.GetMaybe(msg.FolloweeID); found {
			user.FollowersCount += delta
		}

		if err := inv.bundle.UserFollowings.Delete(ctx, msg.FollowerID); err != nil {
			return err
		}
		if err := inv.bundle.UserFollowers.Delete(ctx, msg.FolloweeID); err != nil {
			return err
		}
		if err := inv.bundle.UserFollowStats.Delete(msg.FollowerID); err != nil {
			return err
		}
		return inv.bundle.UserFollowStats.Delete(msg.FolloweeID)
	}
}

func (inv *Invalidator) handleFollowChannel(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.FollowChannelPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return inv.bundle.UserFollowingChannels.Delete(ctx, msg.UserID)
}

func (inv *Invalidator) handleUpdateUserProfile(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UpdateUserProfilePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return inv.bundle.UserProfile.Delete(ctx, msg.UserID)
}

func (inv *Invalidator) handleUserListMember(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UserListMemberPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if err := inv.bundle.UserListMemberships.Delete(ctx, msg.MemberID); err != nil {
		return err
	}
	return inv.bundle.ListUserMemberships.Delete(ctx, msg.UserListID)
}

func (inv *Invalidator) handleUserListMemberBulk(ctx context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.UserListMemberBulkPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if err := inv.bundle.UserListMemberships.Delete(ctx, msg.MemberID); err != nil {
		return err
	}
	return inv.bundle.ListUserMemberships.DeleteMany(ctx, msg.UserListIDs)
}

// handleMetaUpdated clears federatedInstance locally (no event emitted;
// spec §4.5.3: "every process receives metaUpdated independently") when
// any of the host policy lists changed.
func (inv *Invalidator) handleMetaUpdated(_ context.Context, payload json.RawMessage, _ bool) error {
	var msg bus.MetaUpdatedPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.Before != nil && hostListsEqual(*msg.Before, msg.After) {
		return nil
	}
	return inv.bundle.FederatedInstance.Clear()
}

func hostListsEqual(a, b bus.MetaHostLists) bool {
	return reflect.DeepEqual(a, b)
}

// runConcurrently runs every fn concurrently, matching spec §4.5.3's
// "concurrently delete" wording, waits for all of them, and returns the
// first non-nil error in fns order (nil if none failed).
func runConcurrently(fns []func() error) error {
	errs := make([]error, len(fns))
	done := make(chan struct{}, len(fns))
	for i, fn := range fns {
		go func(i int, fn func() error) {
			errs[i] = fn()
			done <- struct{}{}
		}(i, fn)
	}
	for range fns {
		<-done
	}
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return nonNil[0]
}
