package presentation

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/merkle"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
)

// Outcome names where a Verify call landed in the state machine spec.md
// §4.F describes: DECRYPTED -> CHALLENGE_OK -> (JWS_OK) -> NOT_REVOKED
// -> PROOF_OK -> VERIFIED, with REJECTED short-circuiting at any step.
type Outcome string

const (
	Rejected   Outcome = "REJECTED"
	Decrypted  Outcome = "DECRYPTED"
	ChallengeOK Outcome = "CHALLENGE_OK"
	JWSOK      Outcome = "JWS_OK"
	NotRevoked Outcome = "NOT_REVOKED"
	ProofOK    Outcome = "PROOF_OK"
	Verified   Outcome = "VERIFIED"
)

// Result is the full verdict a Verifier produces, including enough of
// the decrypted payload for the caller to render a decision.
type Result struct {
	Outcome  Outcome                `json:"outcome"`
	Reason   string                 `json:"reason,omitempty"`
	Revealed map[string]interface{} `json:"revealed,omitempty"`
	CredID   string                 `json:"credential_id,omitempty"`
	Issuer   string                 `json:"issuer,omitempty"`
}

// Verifier decrypts presentations addressed to one verifier DID and
// walks them through the challenge/revocation/proof state machine.
type Verifier struct {
	Keys       core.KeyProvider
	Nonces     *nonce.Service
	StatusList *statuslist.Manager
	VerifierDID string
}

func NewVerifier(keys core.KeyProvider, nonces *nonce.Service, sl *statuslist.Manager, verifierDID string) *Verifier {
	return &Verifier{Keys: keys, Nonces: nonces, StatusList: sl, VerifierDID: verifierDID}
}

// Verify decrypts box with the verifier's #agree private key, then runs
// the disclosure through the state machine, checking the nonce, the
// issuer's JWS over the committed root (if present), revocation, and
// the Merkle opening. issuerDoc is the credential issuer's published
// DID Document, needed to verify the JWS signature.
func (v *Verifier) Verify(ctx context.Context, box Box, issuerDoc core.DIDDocument) Result {
	kp, err := v.Keys.Load(core.KID(v.VerifierDID, core.RoleAgree))
	if err != nil {
		return Result{Outcome: Rejected, Reason: "verifier has no agreement key on file"}
	}
	if kp.Private == nil {
		return Result{Outcome: Rejected, Reason: "verifier agreement key has no private half"}
	}

	compact := joinCompact(box)
	jwe, err := jose.ParseEncrypted(compact)
	if err != nil {
		return Result{Outcome: Rejected, Reason: "malformed presentation"}
	}
	plaintext, err := jwe.Decrypt(kp.Private.Key)
	if err != nil {
		return Result{Outcome: Rejected, Reason: "decryption failed"}
	}

	var payload credentialPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Result{Outcome: Rejected, Reason: "malformed disclosure payload"}
	}
	outcome := Decrypted

	if payload.Aud != v.VerifierDID {
		return Result{Outcome: Rejected, Reason: "presentation not addressed to this verifier"}
	}

	ok, reason, err := v.Nonces.Validate(ctx, payload.Nonce, v.VerifierDID)
	if err != nil {
		return Result{Outcome: Rejected, Reason: fmt.Sprintf("challenge validation error: %v", err)}
	}
	if !ok {
		return Result{Outcome: Rejected, Reason: reason}
	}
	outcome = ChallengeOK

	if payload.Cred.JWS != "" {
		if err := verifyJWS(payload.Cred.JWS, issuerDoc); err != nil {
			return Result{Outcome: Rejected, Reason: "credential signature invalid"}
		}
		outcome = JWSOK
	}

	revoked, err := v.StatusList.IsRevoked(ctx, payload.Cred.Status.ListID, payload.Cred.Status.Index)
	if err != nil {
		return Result{Outcome: Rejected, Reason: fmt.Sprintf("revocation check error: %v", err)}
	}
	if revoked {
		return Result{Outcome: Rejected, Reason: "credential revoked"}
	}
	outcome = NotRevoked

	if !merkle.Verify(payload.Cred.Root, payload.Cred.Order, payload.Cred.Proofs, payload.Cred.Revealed) {
		return Result{Outcome: Rejected, Reason: "merkle opening invalid"}
	}
	outcome = ProofOK

	_ = outcome
	return Result{
		Outcome:  Verified,
		Revealed: payload.Cred.Revealed,
		CredID:   payload.Cred.ID,
		Issuer:   payload.Cred.Issuer,
	}
}

// verifyJWS checks that sig is a valid ES256 signature by issuerDoc's
// #sign key over its own payload (the credential's canonical form, per
// core.Credential.JWS).
func verifyJWS(sig string, issuerDoc core.DIDDocument) error {
	parsed, err := jose.ParseSigned(sig)
	if err != nil {
		return fmt.Errorf("parsing JWS: %w", err)
	}
	pub, ok := issuerDoc.PublicSign.Key.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("issuer sign key is not ECDSA")
	}
	if _, err := parsed.Verify(pub); err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	return nil
}
