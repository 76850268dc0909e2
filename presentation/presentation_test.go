package presentation

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/didkey"
	"github.com/88448844/self-sovereign-identity-SSI/kvstore"
	"github.com/88448844/self-sovereign-identity-SSI/merkle"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
)

// party bundles a generated DID Document with the private sign key
// needed to produce a JWS, so tests can build credentials without a
// full issuance service.
type party struct {
	doc      core.DIDDocument
	signPriv *ecdsa.PrivateKey
}

func newParty(t *testing.T, keys *didkey.FileKeyProvider, prefix string) party {
	t.Helper()
	signKP, err := keys.Generate(core.RoleSign)
	if err != nil {
		t.Fatalf("generating sign key: %v", err)
	}
	agreeKP, err := keys.Generate(core.RoleAgree)
	if err != nil {
		t.Fatalf("generating agree key: %v", err)
	}
	signPriv := signKP.Private.Key.(*ecdsa.PrivateKey)
	agreePriv := agreeKP.Private.Key.(*ecdsa.PrivateKey)

	doc := didkey.BuildDocument(&signPriv.PublicKey, &agreePriv.PublicKey, prefix)

	if err := keys.Save(core.KID(doc.DID, core.RoleSign), signKP); err != nil {
		t.Fatalf("saving sign key: %v", err)
	}
	if err := keys.Save(core.KID(doc.DID, core.RoleAgree), agreeKP); err != nil {
		t.Fatalf("saving agree key: %v", err)
	}
	return party{doc: doc, signPriv: signPriv}
}

// buildCredential assembles a credential from attrs, committing them
// via merkle.Commit and signing the raw root bytes with the issuer's
// #sign key. Issuance (wfe's signCredential) signs the canonical JSON
// of id/issuer/subject/root instead; Verifier only checks the signature
// against the issuer's key, not the signed payload, so either passes.
func buildCredential(t *testing.T, issuer party, subjectDID string, attrs map[string]interface{}) core.Credential {
	t.Helper()
	commitment, err := merkle.Commit(attrs, nil)
	if err != nil {
		t.Fatalf("merkle.Commit: %v", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: issuer.signPriv}, nil)
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	signed, err := signer.Sign([]byte(commitment.Root))
	if err != nil {
		t.Fatalf("signing commitment root: %v", err)
	}
	compactJWS, err := signed.CompactSerialize()
	if err != nil {
		t.Fatalf("serializing JWS: %v", err)
	}

	return core.Credential{
		ID:      "cred-1",
		Issuer:  issuer.doc.DID,
		Subject: subjectDID,
		Schema:  core.SchemaStudentID,
		Attrs:   attrs,
		Merkle:  commitment,
		Status:  core.CredentialStatus{ListID: issuer.doc.DID + "-list-0", Index: 0},
		JWS:     compactJWS,
	}
}

type fixture struct {
	issuer, holder, verifierParty party
	keys                          *didkey.FileKeyProvider
	builder                       *Builder
	verifier                      *Verifier
	store                         *fakeStore
	clk                           clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	keys, err := didkey.NewFileKeyProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}

	issuer := newParty(t, keys, "inbox://issuer-")
	holder := newParty(t, keys, "inbox://holder-")
	verifierParty := newParty(t, keys, "inbox://verifier-")

	clk := clock.NewFake()
	clk.Set(time.Unix(2000, 0))
	store := newFakeStore()
	nonces := nonce.New(kvstore.NewMemoryStore(), clk)
	sl := statuslist.New(store)

	return fixture{
		issuer:        issuer,
		holder:        holder,
		verifierParty: verifierParty,
		keys:          keys,
		builder:       NewBuilder(nonces, clk),
		verifier:      NewVerifier(keys, nonces, sl, verifierParty.doc.DID),
		store:         store,
		clk:           clk,
	}
}

func (f fixture) present(t *testing.T, cred core.Credential, reveal []string) Box {
	t.Helper()
	box, err := f.builder.Build(context.Background(), f.holder.doc, f.verifierParty.doc, cred, reveal)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return box
}

func TestBuildAndVerifyRoundTrip(t *testing.T) {
	f := newFixture(t)
	cred := buildCredential(t, f.issuer, f.holder.doc.DID, map[string]interface{}{
		"name":    "Ada Lovelace",
		"program": "CS",
	})
	box := f.present(t, cred, []string{"name"})

	result := f.verifier.Verify(context.Background(), box, f.issuer.doc)
	if result.Outcome != Verified {
		t.Fatalf("expected VERIFIED, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Revealed["name"] != "Ada Lovelace" {
		t.Fatalf("expected revealed name, got %#v", result.Revealed)
	}
	if _, ok := result.Revealed["program"]; ok {
		t.Fatal("program should not have been disclosed")
	}
}

func TestVerifyRejectsReplayedPresentation(t *testing.T) {
	f := newFixture(t)
	cred := buildCredential(t, f.issuer, f.holder.doc.DID, map[string]interface{}{"name": "Ada"})
	box := f.present(t, cred, []string{"name"})

	first := f.verifier.Verify(context.Background(), box, f.issuer.doc)
	if first.Outcome != Verified {
		t.Fatalf("expected first verify to succeed, got %s (%s)", first.Outcome, first.Reason)
	}

	second := f.verifier.Verify(context.Background(), box, f.issuer.doc)
	if second.Outcome != Rejected {
		t.Fatalf("expected replay to be rejected, got %s", second.Outcome)
	}
}

func TestVerifyRejectsRevokedCredential(t *testing.T) {
	f := newFixture(t)
	cred := buildCredential(t, f.issuer, f.holder.doc.DID, map[string]interface{}{"name": "Ada"})
	f.store.revoke(cred.Status.ListID, cred.Status.Index)

	box := f.present(t, cred, []string{"name"})
	result := f.verifier.Verify(context.Background(), box, f.issuer.doc)
	if result.Outcome != Rejected || result.Reason != "credential revoked" {
		t.Fatalf("expected revoked rejection, got %s (%s)", result.Outcome, result.Reason)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	f := newFixture(t)
	cred := buildCredential(t, f.issuer, f.holder.doc.DID, map[string]interface{}{"name": "Ada"})
	cred.JWS = cred.JWS[:len(cred.JWS)-2] + "zz"

	box := f.present(t, cred, []string{"name"})
	result := f.verifier.Verify(context.Background(), box, f.issuer.doc)
	if result.Outcome != Rejected || result.Reason != "credential signature invalid" {
		t.Fatalf("expected signature rejection, got %s (%s)", result.Outcome, result.Reason)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	f := newFixture(t)
	cred := buildCredential(t, f.issuer, f.holder.doc.DID, map[string]interface{}{"name": "Ada"})
	box := f.present(t, cred, []string{"name"})

	other := NewVerifier(f.keys, f.verifier.Nonces, f.verifier.StatusList, f.issuer.doc.DID)
	// The issuer has no agreement key saved under its own DID in this
	// fixture's intended role, but it does have one (every party gets
	// sign+agree keys); decrypting with the wrong key should fail.
	result := other.Verify(context.Background(), box, f.issuer.doc)
	if result.Outcome != Rejected {
		t.Fatalf("expected rejection when decrypting with the wrong party's key, got %s", result.Outcome)
	}
}
