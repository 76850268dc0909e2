package presentation

import (
	"context"
	"fmt"
	"sync"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// fakeStore is a minimal in-memory core.CredentialStore double, scoped
// to what the presentation package's tests exercise: revocation lookups
// via statuslist.Manager.IsRevoked. Every other method is implemented
// but unused.
type fakeStore struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{revoked: make(map[string]bool)}
}

func (s *fakeStore) revoke(listID string, idx int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[revocationKey(listID, idx)] = true
}

func revocationKey(listID string, idx int64) string {
	return fmt.Sprintf("%s#%d", listID, idx)
}

func (s *fakeStore) IsRevoked(ctx context.Context, listID string, idx int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[revocationKey(listID, idx)], nil
}

func (s *fakeStore) GetParty(ctx context.Context, did string) (core.Party, error) {
	return core.Party{}, core.ErrNotFound
}
func (s *fakeStore) GetDefaultParty(ctx context.Context, role core.PartyRole) (core.Party, error) {
	return core.Party{}, core.ErrNotFound
}
func (s *fakeStore) GetCredential(ctx context.Context, id string) (core.Credential, error) {
	return core.Credential{}, core.ErrNotFound
}
func (s *fakeStore) ListCredentialsForHolder(ctx context.Context, did string) ([]core.Credential, error) {
	return nil, nil
}
func (s *fakeStore) SaveParty(ctx context.Context, p core.Party) error { return nil }
func (s *fakeStore) AllocateIndex(ctx context.Context, issuerDID string) (string, int64, error) {
	return "", 0, nil
}
func (s *fakeStore) CreateCredential(ctx context.Context, cred core.Credential) error { return nil }
func (s *fakeStore) Revoke(ctx context.Context, credID string) error                  { return nil }
func (s *fakeStore) PublishStatusList(ctx context.Context, listID string) (core.StatusListPublication, error) {
	return core.StatusListPublication{}, nil
}
func (s *fakeStore) CheckIdempotencyKey(ctx context.Context, key, route string, bodyHash [32]byte) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *fakeStore) SaveIdempotencyResult(ctx context.Context, key, route string, bodyHash [32]byte, response []byte) error {
	return nil
}
func (s *fakeStore) ResetState(ctx context.Context) error { return nil }
