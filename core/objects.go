// Package core defines the domain types shared by every component of
// the credential engine: keypairs, DID documents, parties, credentials,
// status lists, challenges, and issuance offers.
package core

import (
	jose "gopkg.in/go-jose/go-jose.v2"
)

// KeyRole distinguishes the two logical key roles a DID carries.
type KeyRole string

const (
	RoleSign  KeyRole = "sign"
	RoleAgree KeyRole = "agree"
)

// KID builds the "<did>#<role>" key identifier used to look up key
// material in a KeyProvider.
func KID(did string, role KeyRole) string {
	return did + "#" + string(role)
}

// Keypair is a P-256 keypair for one DID role. Private is nil for a
// public-only Keypair (e.g. one loaded from a DID Document rather than
// the key directory).
type Keypair struct {
	KID      string        `json:"kid"`
	Role     KeyRole       `json:"role"`
	Public   jose.JSONWebKey `json:"public"`
	Private  *jose.JSONWebKey `json:"private,omitempty"`
}

// PartyRole identifies which of the three protocol roles a Party plays.
type PartyRole string

const (
	RoleIssuer   PartyRole = "issuer"
	RoleHolder   PartyRole = "holder"
	RoleVerifier PartyRole = "verifier"
)

// DIDDocument is the published object associating a DID with its public
// keys and service endpoint. See didkey.BuildDocument.
type DIDDocument struct {
	DID             string          `json:"did"`
	PublicSign      jose.JSONWebKey `json:"public_sign"`
	PublicAgree     jose.JSONWebKey `json:"public_agree"`
	ServiceEndpoint string          `json:"service_endpoint"`
}

// Party is one issuer, holder, or verifier, keyed by DID.
type Party struct {
	Role      PartyRole   `json:"role"`
	Label     string      `json:"label"`
	DID       string      `json:"did"`
	Doc       DIDDocument `json:"doc"`
	CreatedAt int64       `json:"created_at"`
}

// MerkleStep is one opening in a MerkleCommitment's path: a sibling
// digest and which side of the parent it sits on.
type MerkleStep struct {
	Sibling   string `json:"sibling"`
	Direction string `json:"direction"` // "L" or "R"
}

// MerkleCommitment binds an ordered set of attribute leaves to a root
// digest. See the merkle package for how Order/Root/Paths are derived.
type MerkleCommitment struct {
	Order []string       `json:"order"`
	Root  string         `json:"root"`
	Paths [][]MerkleStep `json:"paths"`
}

// CredentialStatus locates a credential's revocation bit.
type CredentialStatus struct {
	ListID string `json:"list_id"`
	Index  int64  `json:"index"`
}

// SchemaStudentID is the one fixed credential schema this engine issues.
const SchemaStudentID = "example:student-id-v1"

// Credential is a signed statement by an issuer about a subject,
// carrying selectively-disclosable attributes committed via Merkle
// digest and a JWS signature over its canonical form.
type Credential struct {
	ID        string                 `json:"id"`
	Issuer    string                 `json:"issuer"`
	Subject   string                 `json:"subject"`
	Schema    string                 `json:"schema"`
	Attrs     map[string]interface{} `json:"attrs"`
	Merkle    MerkleCommitment       `json:"merkle"`
	Status    CredentialStatus       `json:"status"`
	IssuedAt  int64                  `json:"issued_at"`
	JWS       string                 `json:"jws,omitempty"`
}

// StatusList is the per-issuer revocation bitmap. Bit i lives at byte
// i/8, bit position i%8 (little-endian); 1 means revoked.
type StatusList struct {
	ListID string `json:"list_id"`
	Issuer string `json:"issuer"`
	Bitmap []byte `json:"bitmap"`
}

// StatusListPublication is the wire shape StatusListManager.Publish
// returns.
type StatusListPublication struct {
	ID       string `json:"id"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Challenge is a short-lived, audience-bound anti-replay nonce.
type Challenge struct {
	Nonce string `json:"nonce"`
	Aud   string `json:"aud"`
	Exp   int64  `json:"exp"`
}

// IssuanceOffer is a single-use, time-bounded coupon a holder redeems
// via wallet/claim.
type IssuanceOffer struct {
	Challenge  string          `json:"challenge"`
	IssuerDID  string          `json:"issuer_did"`
	Claims     map[string]bool `json:"claims"`
	TTLSeconds int             `json:"ttl_seconds"`
}
