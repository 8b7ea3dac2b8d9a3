package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

// CacheCmd groups single-key inspection commands against one named
// cache, modeled on the "get a specific configuration value" shape of
// the teacher's `am get` subcommand.
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect a single cache entry by name and key",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <name> <key>",
	Short: "Print a key's in-memory value without invoking its loader",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheGet,
}

var cacheFetchCmd = &cobra.Command{
	Use:   "fetch <name> <key>",
	Short: "Print a key's value, loading it on a cache miss",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheFetch,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <name> <key>",
	Short: "Evict a single key from its cache and emit a coherence event",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheDelete,
}

func init() {
	CacheCmd.AddCommand(cacheGetCmd)
	CacheCmd.AddCommand(cacheFetchCmd)
	CacheCmd.AddCommand(cacheDeleteCmd)
}

// printResult prints v as JSON, unless err is non-nil, in which case it
// returns err for cobra to report instead.
func printResult(v any, err error) error {
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return qerrors.Wrap(err, "failed to marshal value")
	}
	fmt.Println(string(data))
	return nil
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	name, key := args[0], args[1]
	bundle, _, err := openBundle()
	if err != nil {
		return err
	}

	switch name {
	case domaincache.NameUserByID:
		return printResult(bundle.UserByID.Get(key))
	case domaincache.NameLocalUserByNativeToken:
		return printResult(bundle.LocalUserByNativeToken.Get(key))
	case domaincache.NameUserByAcct:
		return printResult(bundle.UserByAcct.Get(key))
	case domaincache.NameUserProfile:
		return printResult(bundle.UserProfile.Get(key))
	case domaincache.NameUserMutings:
		return printResult(bundle.UserMutings.Get(key))
	case domaincache.NameUserMuted:
		return printResult(bundle.UserMuted.Get(key))
	case domaincache.NameUserBlocking:
		return printResult(bundle.UserBlocking.Get(key))
	case domaincache.NameUserBlocked:
		return printResult(bundle.UserBlocked.Get(key))
	case domaincache.NameUserFollowings:
		return printResult(bundle.UserFollowings.Get(key))
	case domaincache.NameUserFollowers:
		return printResult(bundle.UserFollowers.Get(key))
	case domaincache.NameHibernatedUsers:
		return printResult(bundle.HibernatedUsers.Get(key))
	case domaincache.NameURIPerson:
		return printResult(bundle.URIPerson.Get(key))
	case domaincache.NamePublicKeyByKeyID:
		return printResult(bundle.PublicKeyByKeyID.Get(key))
	case domaincache.NamePublicKeyByUserID:
		return printResult(bundle.PublicKeyByUserID.Get(key))
	case domaincache.NameEmojisByID:
		return printResult(bundle.EmojisByID.Get(key))
	case domaincache.NameEmojisByKey:
		return printResult(bundle.EmojisByKey.Get(key))
	case domaincache.NameFederatedInstance:
		return printResult(bundle.FederatedInstance.Get(key))
	case domaincache.NameUserFollowStats:
		return printResult(bundle.UserFollowStats.Get(key))
	default:
		return qerrors.Newf("unknown or unsupported cache name %q", name)
	}
}

func runCacheFetch(cmd *cobra.Command, args []string) error {
	name, key := args[0], args[1]
	bundle, _, err := openBundle()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch name {
	case domaincache.NameUserByID:
		return printResult(bundle.UserByID.Fetch(ctx, key))
	case domaincache.NameLocalUserByNativeToken:
		return printResult(bundle.LocalUserByNativeToken.Fetch(ctx, key))
	case domaincache.NameUserByAcct:
		return printResult(bundle.UserByAcct.Fetch(ctx, key))
	case domaincache.NameUserProfile:
		return printResult(bundle.UserProfile.Fetch(ctx, key))
	case domaincache.NameUserFollowings:
		return printResult(bundle.UserFollowings.Fetch(ctx, key))
	case domaincache.NameUserFollowers:
		return printResult(bundle.UserFollowers.Fetch(ctx, key))
	case domaincache.NameHibernatedUsers:
		return printResult(bundle.HibernatedUsers.Fetch(ctx, key))
	case domaincache.NameURIPerson:
		return printResult(bundle.URIPerson.Fetch(ctx, key))
	case domaincache.NamePublicKeyByKeyID:
		return printResult(bundle.PublicKeyByKeyID.Fetch(ctx, key))
	case domaincache.NamePublicKeyByUserID:
		return printResult(bundle.PublicKeyByUserID.Fetch(ctx, key))
	case domaincache.NameEmojisByID:
		return printResult(bundle.EmojisByID.Fetch(ctx, key))
	case domaincache.NameEmojisByKey:
		return printResult(bundle.EmojisByKey.Fetch(ctx, key))
	case domaincache.NameFederatedInstance:
		return printResult(bundle.FederatedInstance.Fetch(ctx, key))
	default:
		return qerrors.Newf("unknown or unfetchable cache name %q", name)
	}
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	name, key := args[0], args[1]
	bundle, _, err := openBundle()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch name {
	case domaincache.NameUserByID:
		err = bundle.UserByID.Delete(ctx, key)
	case domaincache.NameLocalUserByNativeToken:
		err = bundle.LocalUserByNativeToken.Delete(ctx, key)
	case domaincache.NameUserByAcct:
		err = bundle.UserByAcct.Delete(ctx, key)
	case domaincache.NameUserProfile:
		err = bundle.UserProfile.Delete(ctx, key)
	case domaincache.NameUserFollowings:
		err = bundle.UserFollowings.Delete(ctx, key)
	case domaincache.NameUserFollowers:
		err = bundle.UserFollowers.Delete(ctx, key)
	case domaincache.NameHibernatedUsers:
		err = bundle.HibernatedUsers.Delete(ctx, key)
	case domaincache.NameURIPerson:
		err = bundle.URIPerson.Delete(ctx, key)
	case domaincache.NamePublicKeyByKeyID:
		err = bundle.PublicKeyByKeyID.Delete(ctx, key)
	case domaincache.NamePublicKeyByUserID:
		err = bundle.PublicKeyByUserID.Delete(ctx, key)
	case domaincache.NameEmojisByID:
		err = bundle.EmojisByID.Delete(ctx, key)
	case domaincache.NameEmojisByKey:
		err = bundle.EmojisByKey.Delete(ctx, key)
	case domaincache.NameFederatedInstance:
		err = bundle.FederatedInstance.Delete(ctx, key)
	case domaincache.NameUserFollowStats:
		err = bundle.UserFollowStats.Delete(key)
	default:
		return qerrors.Newf("unknown or undeletable cache name %q", name)
	}
	if err != nil {
		return err
	}
	fmt.Printf("deleted %s/%s\n", name, key)
	return nil
}
