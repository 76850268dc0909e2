// Package test holds small shared test doubles for other packages'
// _test.go files.
package test

import (
	"context"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// MemStore is an in-process core.CredentialStore, replicating
// sa.Store's semantics (deterministic default-party ordering,
// per-issuer index allocation, idempotent revoke, idempotency-key
// replay cache) without a database, for wfe's integration-style tests.
type MemStore struct {
	mu sync.Mutex

	parties     map[string]core.Party
	partyOrder  []string // DIDs in insertion order, for getDefaultParty tie-breaking
	credentials map[string]core.Credential
	lists       map[string]*core.StatusList
	maxIndex    map[string]int64
	idempotency map[string]idemEntry
}

type idemEntry struct {
	bodyHash string
	response []byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		parties:     make(map[string]core.Party),
		credentials: make(map[string]core.Credential),
		lists:       make(map[string]*core.StatusList),
		maxIndex:    make(map[string]int64),
		idempotency: make(map[string]idemEntry),
	}
}

func (m *MemStore) SaveParty(ctx context.Context, p core.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parties[p.DID]; !ok {
		m.partyOrder = append(m.partyOrder, p.DID)
	}
	m.parties[p.DID] = p
	return nil
}

func (m *MemStore) GetParty(ctx context.Context, did string) (core.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[did]
	if !ok {
		return core.Party{}, core.ErrNotFound
	}
	return p, nil
}

// GetDefaultParty returns the first-bootstrapped party of role, in
// insertion order, matching sa.Store's created_at/id tie-breaking.
func (m *MemStore) GetDefaultParty(ctx context.Context, role core.PartyRole) (core.Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, did := range m.partyOrder {
		if p := m.parties[did]; p.Role == role {
			return p, nil
		}
	}
	return core.Party{}, core.ErrNotFound
}

func (m *MemStore) AllocateIndex(ctx context.Context, issuerDID string) (string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listID := "status:" + issuerDID
	next, ok := m.maxIndex[listID]
	if !ok {
		next = 0
	} else {
		next++
	}
	m.maxIndex[listID] = next
	if _, ok := m.lists[listID]; !ok {
		m.lists[listID] = &core.StatusList{ListID: listID, Issuer: issuerDID}
	}
	return listID, next, nil
}

func (m *MemStore) CreateCredential(ctx context.Context, cred core.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[cred.ID] = cred
	return nil
}

func (m *MemStore) GetCredential(ctx context.Context, id string) (core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return core.Credential{}, core.ErrNotFound
	}
	return c, nil
}

func (m *MemStore) ListCredentialsForHolder(ctx context.Context, did string) ([]core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Credential
	for _, c := range m.credentials {
		if c.Subject == did {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt < out[j].IssuedAt })
	return out, nil
}

func (m *MemStore) Revoke(ctx context.Context, credID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.credentials[credID]
	if !ok {
		return core.ErrNotFound
	}
	list, ok := m.lists[cred.Status.ListID]
	if !ok {
		list = &core.StatusList{ListID: cred.Status.ListID}
		m.lists[cred.Status.ListID] = list
	}
	list.Bitmap = setBit(list.Bitmap, cred.Status.Index)
	m.credentials[credID] = cred
	return nil
}

func (m *MemStore) IsRevoked(ctx context.Context, listID string, idx int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[listID]
	if !ok {
		return false, nil
	}
	return getBit(list.Bitmap, idx), nil
}

func (m *MemStore) PublishStatusList(ctx context.Context, listID string) (core.StatusListPublication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[listID]
	if !ok {
		return core.StatusListPublication{}, core.ErrNotFound
	}
	return core.StatusListPublication{ID: listID, Encoding: "bitset", Data: hex.EncodeToString(list.Bitmap)}, nil
}

func (m *MemStore) CheckIdempotencyKey(ctx context.Context, key, route string, bodyHash [32]byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.idempotency[key+"|"+route]
	if !ok {
		return nil, false, nil
	}
	if e.bodyHash != hex.EncodeToString(bodyHash[:]) {
		return nil, false, core.ErrNotFound
	}
	return e.response, true, nil
}

func (m *MemStore) SaveIdempotencyResult(ctx context.Context, key, route string, bodyHash [32]byte, response []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotency[key+"|"+route] = idemEntry{bodyHash: hex.EncodeToString(bodyHash[:]), response: response}
	return nil
}

func (m *MemStore) ResetState(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parties = make(map[string]core.Party)
	m.partyOrder = nil
	m.credentials = make(map[string]core.Credential)
	m.lists = make(map[string]*core.StatusList)
	m.maxIndex = make(map[string]int64)
	m.idempotency = make(map[string]idemEntry)
	return nil
}

func setBit(bitmap []byte, i int64) []byte {
	byteIdx := int(i / 8)
	if byteIdx >= len(bitmap) {
		grown := make([]byte, byteIdx+1)
		copy(grown, bitmap)
		bitmap = grown
	}
	bitmap[byteIdx] |= 1 << uint(i%8)
	return bitmap
}

func getBit(bitmap []byte, i int64) bool {
	byteIdx := int(i / 8)
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<uint(i%8)) != 0
}
