package core

import "context"

// ErrNotFound is returned by KeyProvider.Load and CredentialStore
// getters when the requested object does not exist.
var ErrNotFound = newSentinel("not found")

type sentinelError string

func newSentinel(s string) error { return sentinelError(s) }
func (e sentinelError) Error() string { return string(e) }

// KeyProvider generates, persists, and loads per-kid keypairs.
// Implementations never regenerate an existing kid (invariant 7 in
// spec.md §3): Load returns ErrNotFound and the caller decides whether
// to lazily Generate+Save or to fail.
type KeyProvider interface {
	Generate(role KeyRole) (Keypair, error)
	Save(kid string, kp Keypair) error
	Load(kid string) (Keypair, error)
}

// CredentialStoreReader are the durable store's read-only methods.
type CredentialStoreReader interface {
	GetParty(ctx context.Context, did string) (Party, error)
	GetDefaultParty(ctx context.Context, role PartyRole) (Party, error)
	GetCredential(ctx context.Context, id string) (Credential, error)
	ListCredentialsForHolder(ctx context.Context, did string) ([]Credential, error)
	IsRevoked(ctx context.Context, listID string, idx int64) (bool, error)
}

// CredentialStoreWriter are the durable store's mutating methods.
type CredentialStoreWriter interface {
	SaveParty(ctx context.Context, p Party) error
	AllocateIndex(ctx context.Context, issuerDID string) (listID string, index int64, err error)
	CreateCredential(ctx context.Context, cred Credential) error
	Revoke(ctx context.Context, credID string) error
	PublishStatusList(ctx context.Context, listID string) (StatusListPublication, error)
	CheckIdempotencyKey(ctx context.Context, key, route string, bodyHash [32]byte) (cached []byte, replay bool, err error)
	SaveIdempotencyResult(ctx context.Context, key, route string, bodyHash [32]byte, response []byte) error
	ResetState(ctx context.Context) error
}

// CredentialStore is the full durable-storage capability described in
// spec.md §4.G / §6 (component G).
type CredentialStore interface {
	CredentialStoreReader
	CredentialStoreWriter
}

// ExpiringStore is the "in-memory expiring store" capability (Redis
// equivalent) ChallengeManager and the offer/claim flow consume.
type ExpiringStore interface {
	// Set stores value under key with the given time-to-live.
	Set(ctx context.Context, key string, value string, ttlSeconds int64) error
	// GetDel atomically fetches and deletes key, returning ErrNotFound
	// if absent.
	GetDel(ctx context.Context, key string) (string, error)
	// Eval atomically runs a Lua script with the given keys/args (used
	// for the conditional get-and-delete nonce.Validate needs).
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	// Flush discards every key, the equivalent of Redis's FLUSHDB, for
	// the admin reset route.
	Flush(ctx context.Context) error
}

// KeyPurger is implemented by KeyProvider backends that hold key
// material somewhere a reset can actually wipe (the file-backed
// provider). HSM-backed providers do not implement it: the admin reset
// route skips key-material wipe when the configured KeyProvider does
// not support it.
type KeyPurger interface {
	PurgeKeys() error
}
