package audit

import (
	"testing"
)

func TestAppendAndClose(t *testing.T) {
	q, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	ev := NewEvent("issue", "did:key:zIssuer", "did:key:zHolder", "cred-1")
	if ev.Kind != "issue" || ev.At == 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if err := q.Append(ev); err != nil {
		t.Fatalf("Append: %v", err)
	}
}
