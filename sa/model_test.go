package sa

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"reflect"
	"testing"

	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

func TestCredentialModelRoundTrip(t *testing.T) {
	cred := core.Credential{
		ID:      "cred-1",
		Issuer:  "did:key:zIssuer",
		Subject: "did:key:zHolder",
		Schema:  core.SchemaStudentID,
		Attrs:   map[string]interface{}{"name": "Ada", "year": float64(2026)},
		Merkle: core.MerkleCommitment{
			Order: []string{"name", "year"},
			Root:  "deadbeef",
			Paths: [][]core.MerkleStep{{{Sibling: "a", Direction: "L"}}},
		},
		Status:   core.CredentialStatus{ListID: "list-0", Index: 3},
		JWS:      "header.payload.sig",
		IssuedAt: 1700000000,
	}

	model, err := credentialToModel(cred)
	if err != nil {
		t.Fatalf("credentialToModel: %v", err)
	}
	if model.ListID != "list-0" || model.StatusIdx != 3 {
		t.Fatalf("status fields not flattened correctly: %+v", model)
	}

	back, err := model.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if !reflect.DeepEqual(back, cred) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", back, cred)
	}
}

func TestPartyModelRoundTrip(t *testing.T) {
	signPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating sign key: %v", err)
	}
	agreePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating agree key: %v", err)
	}

	p := core.Party{
		Role:  core.RoleIssuer,
		Label: "example university",
		DID:   "did:key:zAbc",
		Doc: core.DIDDocument{
			DID:             "did:key:zAbc",
			PublicSign:      jose.JSONWebKey{Key: &signPriv.PublicKey, Use: "sig"},
			PublicAgree:     jose.JSONWebKey{Key: &agreePriv.PublicKey, Use: "enc"},
			ServiceEndpoint: "inbox://abc",
		},
		CreatedAt: 1700000000,
	}

	model, err := partyToModel(p)
	if err != nil {
		t.Fatalf("partyToModel: %v", err)
	}
	back, err := model.toCore()
	if err != nil {
		t.Fatalf("toCore: %v", err)
	}
	if !reflect.DeepEqual(back, p) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", back, p)
	}
}

func TestBodyHashIsDeterministic(t *testing.T) {
	a := BodyHash([]byte(`{"subject_did":"did:key:z1"}`))
	b := BodyHash([]byte(`{"subject_did":"did:key:z1"}`))
	c := BodyHash([]byte(`{"subject_did":"did:key:z2"}`))
	if a != b {
		t.Fatal("expected identical bodies to hash identically")
	}
	if a == c {
		t.Fatal("expected different bodies to hash differently")
	}
}
