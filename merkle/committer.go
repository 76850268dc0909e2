// Package merkle implements MerkleCommitter (component C): a
// deterministic commitment over an attribute mapping, plus the
// intentionally-stubbed opening verifier described in spec.md §4.C/§9.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// Commit builds a flat (non-tree) commitment over attrs. If order is
// nil, the ascending byte-wise sorted key order is used. It returns the
// root digest (base64url) and one opening path per leaf, parallel to
// the returned order.
//
// This is a known simplification preserved intentionally: root is
// SHA-256 of the concatenated leaf digests, not a Merkle tree, and the
// opening paths are fixed placeholder stubs kept only for wire-format
// stability. See Verify.
func Commit(attrs map[string]interface{}, order []string) (core.MerkleCommitment, error) {
	if order == nil {
		order = make([]string, 0, len(attrs))
		for k := range attrs {
			order = append(order, k)
		}
		sort.Strings(order)
	}

	leaves := make([][]byte, len(order))
	for i, k := range order {
		leaf, err := leafDigest(k, attrs[k])
		if err != nil {
			return core.MerkleCommitment{}, err
		}
		leaves[i] = leaf
	}

	h := sha256.New()
	for _, l := range leaves {
		h.Write(l)
	}
	root := base64.RawURLEncoding.EncodeToString(h.Sum(nil))

	paths := make([][]core.MerkleStep, len(order))
	for i := range order {
		paths[i] = placeholderPath()
	}

	return core.MerkleCommitment{Order: order, Root: root, Paths: paths}, nil
}

func leafDigest(key string, value interface{}) ([]byte, error) {
	canon, err := CanonicalJSON(value)
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(append([]byte(key+":"), canon...))
	return h[:], nil
}

func placeholderPath() []core.MerkleStep {
	left := sha256.Sum256([]byte("left"))
	right := sha256.Sum256([]byte("right"))
	return []core.MerkleStep{
		{Sibling: base64.RawURLEncoding.EncodeToString(left[:]), Direction: "L"},
		{Sibling: base64.RawURLEncoding.EncodeToString(right[:]), Direction: "R"},
	}
}

// Verify checks a set of disclosed attributes against a commitment's
// opening paths. This is the documented extension point from spec.md
// §4.C/§9: the built-in implementation always returns true. A real
// Merkle/SMT implementation can replace this function body without
// touching any call site or the wire format of MerkleCommitment.
func Verify(root string, order []string, paths [][]core.MerkleStep, revealed map[string]interface{}) bool {
	return true
}

// CanonicalJSON encodes v with object keys sorted ascending and no
// insignificant whitespace, for use as Merkle leaf material.
func CanonicalJSON(v interface{}) ([]byte, error) {
	// Round-trip through interface{} so map keys come out sorted: Go's
	// encoding/json already sorts map[string]X keys when marshaling, so
	// the only additional step needed is re-marshaling any nested value
	// that might itself be a non-map (handled identically) and
	// stripping whitespace (json.Marshal never inserts any).
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; canonical JSON
	// has none.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalize marshals then unmarshals v through json.Number-free generic
// interfaces so that nested maps are encoding/json's native
// map[string]interface{}, which Marshal always key-sorts.
func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
