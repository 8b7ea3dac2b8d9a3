package domaincache

import "context"

// onHibernationChanged is hibernatedUsers' onChanged hook (spec §4.5.4):
// when its keys change, locally or remotely, it refreshes the
// isHibernated flag from the database for every key that currently has
// a resident user in userById, and mutates that user object in place.
// userById is the only source-of-truth entity cache; the hibernation
// flag is denormalized into it.
func (b *Bundle) onHibernationChanged(ctx context.Context, keys []string) {
	for _, userID := range keys {
		user, found, err := b.UserByID.GetMaybe(userID)
		if err != nil || !found {
			continue
		}
		hibernated, _, err := b.loaders.FetchHibernated(ctx, userID)
		if err != nil {
			continue
		}
		user.IsHibernated = hibernated
	}
}
