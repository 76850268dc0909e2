// Package didkey implements KeyProvider (component A) and DIDFactory
// (component B): generating and persisting per-DID P-256 keypairs, and
// deriving did:key identifiers and DID Documents from them.
package didkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// FileKeyProvider stores one JSON file per kid under Dir, matching
// ca/certificate-authority.go's file-backed key loading branch.
type FileKeyProvider struct {
	Dir string
}

// NewFileKeyProvider creates dir if it does not exist.
func NewFileKeyProvider(dir string) (*FileKeyProvider, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	return &FileKeyProvider{Dir: dir}, nil
}

func (p *FileKeyProvider) path(kid string) string {
	return filepath.Join(p.Dir, kid+".json")
}

// Generate creates a fresh P-256 keypair for the given role. It does
// not persist it; callers call Save.
func (p *FileKeyProvider) Generate(role core.KeyRole) (core.Keypair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return core.Keypair{}, fmt.Errorf("generating P-256 key: %w", err)
	}
	privJWK := jose.JSONWebKey{Key: priv, Use: jwkUse(role)}
	pubJWK := jose.JSONWebKey{Key: priv.Public(), Use: jwkUse(role)}
	return core.Keypair{
		Role:    role,
		Public:  pubJWK,
		Private: &privJWK,
	}, nil
}

func jwkUse(role core.KeyRole) string {
	if role == core.RoleAgree {
		return "enc"
	}
	return "sig"
}

// Save persists kp's private material under <kid>.json. It uses
// create-if-absent (O_CREATE|O_EXCL) semantics per spec.md §5: if
// another writer won the race to create the file first, Save discards
// its own key material and returns nil (the loser's key is never used).
func (p *FileKeyProvider) Save(kid string, kp core.Keypair) error {
	kp.KID = kid
	data, err := json.Marshal(kp)
	if err != nil {
		return fmt.Errorf("marshaling keypair: %w", err)
	}
	f, err := os.OpenFile(p.path(kid), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			// Someone else already created this kid; ours loses.
			return nil
		}
		return fmt.Errorf("creating key file for %s: %w", kid, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing key file for %s: %w", kid, err)
	}
	return nil
}

// PurgeKeys removes every persisted key file, implementing
// core.KeyPurger for the admin reset route.
func (p *FileKeyProvider) PurgeKeys() error {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return fmt.Errorf("reading key directory: %w", err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(p.Dir, e.Name())); err != nil {
			return fmt.Errorf("removing key file %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Load reads the persisted keypair for kid, returning core.ErrNotFound
// if no file exists. Any other I/O error is fatal (spec.md §4.A: "I/O
// errors other than not-found propagate fatally; no retries").
func (p *FileKeyProvider) Load(kid string) (core.Keypair, error) {
	data, err := os.ReadFile(p.path(kid))
	if err != nil {
		if os.IsNotExist(err) {
			return core.Keypair{}, core.ErrNotFound
		}
		return core.Keypair{}, fmt.Errorf("reading key file for %s: %w", kid, err)
	}
	var kp core.Keypair
	if err := json.Unmarshal(data, &kp); err != nil {
		return core.Keypair{}, fmt.Errorf("unmarshaling key file for %s: %w", kid, err)
	}
	return kp, nil
}
