package sa

import (
	"context"
	"encoding/json"

	"github.com/golang/groupcache"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

const credentialCacheBytes = 16 << 20 // 16 MiB

// CachedStore wraps a Store with a groupcache read-through cache in
// front of GetCredential, which /v1/holder/present and
// /v1/issuer/revoke call for every request. Revoke invalidates the
// cached entry for a credential's own ID; CreateCredential and every
// other method go straight to the wrapped Store.
type CachedStore struct {
	*Store
	group *groupcache.Group
}

// NewCachedStore registers a groupcache group named poolName; callers
// are expected to have already set up a groupcache.HTTPPool (or peer
// list) for the process, per groupcache's usual single-owner-group
// convention.
func NewCachedStore(store *Store, poolName string) *CachedStore {
	cs := &CachedStore{Store: store}
	cs.group = groupcache.NewGroup(poolName, credentialCacheBytes, groupcache.GetterFunc(
		func(ctx context.Context, id string, dest groupcache.Sink) error {
			cred, err := store.GetCredential(ctx, id)
			if err != nil {
				return err
			}
			data, err := json.Marshal(cred)
			if err != nil {
				return err
			}
			return dest.SetBytes(data)
		},
	))
	return cs
}

func (cs *CachedStore) GetCredential(ctx context.Context, id string) (core.Credential, error) {
	var data []byte
	if err := cs.group.Get(ctx, id, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return core.Credential{}, err
	}
	var cred core.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return core.Credential{}, err
	}
	return cred, nil
}

// Revoke invalidates the cache entry after the underlying revocation
// commits, so the next GetCredential re-reads the now-revoked row.
func (cs *CachedStore) Revoke(ctx context.Context, credID string) error {
	if err := cs.Store.Revoke(ctx, credID); err != nil {
		return err
	}
	cs.group.Remove(ctx, credID)
	return nil
}
