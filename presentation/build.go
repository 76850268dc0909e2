// Package presentation implements PresentationBuilder/Verifier
// (component F): composing a disclosure payload, encrypting it to the
// verifier's agreement key, and on receipt decrypting and validating it
// against the challenge, revocation status, and Merkle commitment.
package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmhodges/clock"
	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/errors"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
)

const presentationTTLSeconds = 300

// Box is the wire shape of an encrypted presentation: the five
// dot-delimited segments of a JWE compact serialization, split into
// named fields (spec.md §6).
type Box struct {
	Protected string `json:"protected"`
	Eph       string `json:"eph"`
	Nonce     string `json:"nonce"`
	Ct        string `json:"ct"`
	Tag       string `json:"tag"`
}

// credentialPayload is the plaintext JSON a Box decrypts to.
type credentialPayload struct {
	Aud   string        `json:"aud"`
	Iat   int64         `json:"iat"`
	Exp   int64         `json:"exp"`
	Nonce string        `json:"nonce"`
	Cred  credentialRef `json:"cred"`
}

type credentialRef struct {
	ID       string                     `json:"id"`
	Issuer   string                     `json:"issuer"`
	Subject  string                     `json:"subject"`
	Schema   string                     `json:"schema"`
	Status   core.CredentialStatus      `json:"status"`
	Root     string                     `json:"root"`
	Order    []string                   `json:"order"`
	Proofs   [][]core.MerkleStep        `json:"proofs"`
	Revealed map[string]interface{}     `json:"revealed"`
	JWS      string                     `json:"jws,omitempty"`
}

// Builder assembles and encrypts presentations on the holder's behalf.
type Builder struct {
	Nonces *nonce.Service
	Clock  clock.Clock
}

func NewBuilder(nonces *nonce.Service, clk clock.Clock) *Builder {
	if clk == nil {
		clk = clock.New()
	}
	return &Builder{Nonces: nonces, Clock: clk}
}

// Build selects the intersection of revealFields with cred.Attrs,
// mints a fresh nonce bound to verifierDoc.DID, and encrypts the
// resulting payload to the verifier's #agree public key.
//
// Per spec.md §3 invariant 6, callers must have already checked that
// cred.Subject == holderDoc.DID; Build does not repeat that check so it
// can be unit tested against arbitrary credentials.
func (b *Builder) Build(ctx context.Context, holderDoc, verifierDoc core.DIDDocument, cred core.Credential, revealFields []string) (Box, error) {
	revealed := make(map[string]interface{}, len(revealFields))
	for _, f := range revealFields {
		if v, ok := cred.Attrs[f]; ok {
			revealed[f] = v
		}
	}

	ch, err := b.Nonces.Issue(ctx, verifierDoc.DID)
	if err != nil {
		return Box{}, fmt.Errorf("presentation: issuing challenge: %w", err)
	}

	now := b.Clock.Now().Unix()
	payload := credentialPayload{
		Aud:   verifierDoc.DID,
		Iat:   now,
		Exp:   now + presentationTTLSeconds,
		Nonce: ch.Nonce,
		Cred: credentialRef{
			ID:       cred.ID,
			Issuer:   cred.Issuer,
			Subject:  cred.Subject,
			Schema:   cred.Schema,
			Status:   cred.Status,
			Root:     cred.Merkle.Root,
			Order:    cred.Merkle.Order,
			Proofs:   cred.Merkle.Paths,
			Revealed: revealed,
			JWS:      cred.JWS,
		},
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Box{}, fmt.Errorf("presentation: marshaling payload: %w", err)
	}

	if verifierDoc.PublicAgree.Key == nil {
		return Box{}, errors.InternalServerError("verifier has no agreement key")
	}
	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: jose.ECDH_ES,
		Key:       verifierDoc.PublicAgree.Key,
	}, nil)
	if err != nil {
		return Box{}, fmt.Errorf("presentation: building encrypter: %w", err)
	}
	jwe, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return Box{}, fmt.Errorf("presentation: encrypting: %w", err)
	}
	compact, err := jwe.CompactSerialize()
	if err != nil {
		return Box{}, fmt.Errorf("presentation: serializing JWE: %w", err)
	}

	return splitCompact(compact)
}

func splitCompact(compact string) (Box, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 5 {
		return Box{}, fmt.Errorf("presentation: expected 5 JWE segments, got %d", len(parts))
	}
	return Box{
		Protected: parts[0],
		Eph:       parts[1],
		Nonce:     parts[2],
		Ct:        parts[3],
		Tag:       parts[4],
	}, nil
}

// joinCompact is the inverse of splitCompact, used by Verifier.
func joinCompact(b Box) string {
	return strings.Join([]string{b.Protected, b.Eph, b.Nonce, b.Ct, b.Tag}, ".")
}
