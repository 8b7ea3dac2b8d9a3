package domaincache

import "context"

// FetchInstance resolves host to its federatedInstance row, punycoding
// it to the cache's registered-domain key form first (spec §4.5.2,
// §4.5.6). The loader itself finds-or-creates the row.
func (b *Bundle) FetchInstance(ctx context.Context, host string) (*Instance, error) {
	key, err := EncodeInstanceKey(host)
	if err != nil {
		return nil, err
	}
	return b.FederatedInstance.Fetch(ctx, key)
}
