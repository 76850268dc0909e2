package statuslist

import (
	"context"
	"encoding/hex"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// Archiver mirrors archive.Archiver's Put method, kept as a narrow
// interface here so statuslist doesn't need to import the AWS SDK for
// callers that never configure one.
type Archiver interface {
	Put(ctx context.Context, listID string, bitmap []byte) error
}

// Manager is the thin orchestration layer over a core.CredentialStore
// that exposes component D's semantics. The row-lock / transactional
// bookkeeping required by spec.md §4.D and §5 lives in the sa package,
// which owns the database connection; Manager just names the
// operations and exposes the pure bitmap helpers (SetBit/GetBit) for
// reuse by sa.
type Manager struct {
	Store core.CredentialStore

	// Archiver, if set, receives a copy of every published bitmap for
	// off-path durability (spec.md §4.D's "archival" extension point).
	// A failure to archive never fails the publish itself; callers log
	// it themselves via OnArchiveError.
	Archiver       Archiver
	OnArchiveError func(listID string, err error)
}

func New(store core.CredentialStore) *Manager {
	return &Manager{Store: store}
}

// Allocate resolves or creates issuerDID's status list and returns the
// next monotonic index: 1 + the current maximum index in that list, or
// 0 if the list is empty. Callers get spec.md's serialization guarantee
// ("no two concurrent allocations return the same index") from the
// store's row-level lock, not from this method.
func (m *Manager) Allocate(ctx context.Context, issuerDID string) (listID string, index int64, err error) {
	return m.Store.AllocateIndex(ctx, issuerDID)
}

// Publish returns the lower-case hex encoding of the list's persisted
// bitmap, which revoke keeps current, and mirrors it to Archiver if one
// is set. It does not re-derive or rewrite the bitmap.
func (m *Manager) Publish(ctx context.Context, listID string) (core.StatusListPublication, error) {
	pub, err := m.Store.PublishStatusList(ctx, listID)
	if err != nil {
		return core.StatusListPublication{}, err
	}
	// Defensive: the store is expected to return already-hex-encoded
	// data, but normalize in case a backend returns raw bytes encoded
	// as a string.
	if _, err := hex.DecodeString(pub.Data); err != nil {
		pub.Data = hex.EncodeToString([]byte(pub.Data))
	}
	if m.Archiver != nil {
		if raw, decErr := hex.DecodeString(pub.Data); decErr == nil {
			if archErr := m.Archiver.Put(ctx, listID, raw); archErr != nil && m.OnArchiveError != nil {
				m.OnArchiveError(listID, archErr)
			}
		}
	}
	return pub, nil
}

// IsRevoked reads the persisted bitmap (not re-derived): a revocation
// is only visible here once revoke has flipped the bit in the same
// transaction (spec.md §4.D option (a), which this engine implements).
func (m *Manager) IsRevoked(ctx context.Context, listID string, idx int64) (bool, error) {
	return m.Store.IsRevoked(ctx, listID, idx)
}

// SetBit and GetBit expose the pure bitmap helpers for the sa package's
// transactional revoke/publish implementation.
func SetBit(bitmap []byte, i int64) []byte { return setBit(bitmap, i) }
func GetBit(bitmap []byte, i int64) bool   { return getBit(bitmap, i) }
func BitmapSize(maxIndex int64) int        { return bitmapSize(maxIndex) }
