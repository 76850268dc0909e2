package didkey

import (
	"crypto/ecdsa"
	"encoding/base64"

	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

const fingerprintLen = 46

// DeriveDID derives a did:key:z<fingerprint> identifier from a #sign
// public key, per spec.md §3/§4.B. This is NOT the standard did:key
// multibase/multicodec encoding — it is a raw base64url encoding of the
// concatenated X||Y coordinates, truncated to 46 characters. It is
// preserved byte-for-byte for internal compatibility only; see
// SPEC_FULL.md's design notes for why this is not interoperable with
// standard did:key resolvers.
func DeriveDID(signPub *ecdsa.PublicKey) string {
	return "did:key:z" + fingerprint(signPub)
}

func fingerprint(pub *ecdsa.PublicKey) string {
	raw := rawXY(pub)
	fp := base64.RawURLEncoding.EncodeToString(raw)
	if len(fp) > fingerprintLen {
		fp = fp[:fingerprintLen]
	}
	return fp
}

// rawXY concatenates the 32-byte big-endian X and Y coordinates of a
// P-256 public key.
func rawXY(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 64)
	pub.X.FillBytes(out[0:32])
	pub.Y.FillBytes(out[32:64])
	return out
}

// BuildDocument assembles the DID Document for a freshly derived DID
// from its #sign and #agree public keys. servicePrefix is the
// SERVICE_PREFIX config value (default "inbox://").
func BuildDocument(signPub, agreePub *ecdsa.PublicKey, servicePrefix string) core.DIDDocument {
	did := DeriveDID(signPub)
	fp := fingerprint(signPub)
	endpoint := servicePrefix
	if len(fp) >= 8 {
		endpoint += fp[:8]
	} else {
		endpoint += fp
	}
	return core.DIDDocument{
		DID:             did,
		PublicSign:      jose.JSONWebKey{Key: signPub, Use: "sig"},
		PublicAgree:     jose.JSONWebKey{Key: agreePub, Use: "enc"},
		ServiceEndpoint: endpoint,
	}
}
