package merkle

import (
	"testing"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

func TestCommitDefaultOrderIsSorted(t *testing.T) {
	attrs := map[string]interface{}{
		"status": "student",
		"name":   "Alice",
	}
	c, err := Commit(attrs, nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(c.Order) != 2 || c.Order[0] != "name" || c.Order[1] != "status" {
		t.Fatalf("expected sorted order [name status], got %v", c.Order)
	}
	if c.Root == "" {
		t.Fatal("expected non-empty root")
	}
	if len(c.Paths) != 2 {
		t.Fatalf("expected one path per leaf, got %d", len(c.Paths))
	}
}

func TestCommitIsDeterministic(t *testing.T) {
	attrs := map[string]interface{}{"a": 1, "b": "two"}
	c1, err := Commit(attrs, nil)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := Commit(attrs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c1.Root != c2.Root {
		t.Fatalf("expected stable root across calls, got %s vs %s", c1.Root, c2.Root)
	}
}

func TestCommitDiffersOnValueChange(t *testing.T) {
	c1, _ := Commit(map[string]interface{}{"name": "Alice"}, nil)
	c2, _ := Commit(map[string]interface{}{"name": "Bob"}, nil)
	if c1.Root == c2.Root {
		t.Fatal("expected different roots for different attribute values")
	}
}

func TestVerifyIsAnAlwaysTrueStub(t *testing.T) {
	// Documents the current extension-point behavior so a future real
	// implementation changes this test deliberately, not by accident.
	ok := Verify("anything", []string{"x"}, [][]core.MerkleStep{{}}, map[string]interface{}{"x": 1})
	if !ok {
		t.Fatal("Verify is documented to always accept in this revision")
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	v := map[string]interface{}{"b": 1, "a": 2}
	out, err := CanonicalJSON(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":2,"b":1}` {
		t.Fatalf("expected sorted-key canonical JSON, got %s", out)
	}
}
