package didkey

import (
	"crypto"
	"fmt"

	"github.com/letsencrypt/pkcs11key/v4"
	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// PKCS11Config configures an HSM-backed signing key, mirroring
// ca/certificate-authority.go's KeyConfig.PKCS11 branch.
type PKCS11Config struct {
	Module string
	Token  string
	PIN    string
	Label  string
}

// PKCS11KeyProvider backs the issuer #sign key with an HSM. It never
// generates or persists key material itself (the HSM owns that); Save
// is a no-op and Generate returns an error, since the private key never
// leaves the token. Only #sign is ever requested through this provider
// in practice: the agreement key needs unwrapKey/deriveBits operations
// this engine performs in software, so bootstrap always uses
// FileKeyProvider for #agree even when PKCS11KeyProvider is configured
// for #sign.
type PKCS11KeyProvider struct {
	cfg    PKCS11Config
	signer crypto.Signer
}

// NewPKCS11KeyProvider opens a session against the configured token and
// loads the signing key identified by Label.
func NewPKCS11KeyProvider(cfg PKCS11Config) (*PKCS11KeyProvider, error) {
	signer, err := pkcs11key.New(cfg.Module, cfg.Token, cfg.PIN, cfg.Label)
	if err != nil {
		return nil, fmt.Errorf("opening PKCS11 session: %w", err)
	}
	return &PKCS11KeyProvider{cfg: cfg, signer: signer}, nil
}

func (p *PKCS11KeyProvider) Generate(role core.KeyRole) (core.Keypair, error) {
	return core.Keypair{}, fmt.Errorf("didkey: PKCS11KeyProvider cannot generate keys, the HSM provisions them out of band")
}

func (p *PKCS11KeyProvider) Save(kid string, kp core.Keypair) error {
	return nil
}

// Load returns a public-only Keypair wrapping the HSM-resident signer's
// public key; Private is left nil, and signing operations must go
// through Signer() instead of a private JWK.
func (p *PKCS11KeyProvider) Load(kid string) (core.Keypair, error) {
	pub := p.signer.Public()
	return core.Keypair{
		KID:    kid,
		Role:   core.RoleSign,
		Public: jose.JSONWebKey{Key: pub, Use: "sig"},
	}, nil
}

// Signer exposes the HSM-backed crypto.Signer for callers that cannot
// work from an exported private key. Nothing in this repo calls it:
// credential signing (wfe's signCredential) uses the private JWK from
// KeyProvider.Load.
func (p *PKCS11KeyProvider) Signer() crypto.Signer {
	return p.signer
}
