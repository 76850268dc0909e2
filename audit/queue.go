// Package audit appends one record per issuance, revocation, and offer
// claim to a disk-backed FIFO for later offline shipping. Nothing in
// this repo ever reads the queue back; it exists purely so an external
// shipper process can drain it without coupling to the request path.
package audit

import (
	"time"

	"github.com/beeker1121/goque"
)

// Event is one audit record, flat and JSON-tagged since goque's
// EnqueueObject gob-encodes whatever struct it's given verbatim.
type Event struct {
	Kind      string `json:"kind"` // "issue", "revoke", "claim"
	IssuerDID string `json:"issuer_did,omitempty"`
	SubjectDID string `json:"subject_did,omitempty"`
	CredID    string `json:"cred_id,omitempty"`
	At        int64  `json:"at"`
}

// Queue wraps a goque.Queue, giving it the narrow fire-and-forget API
// this repo needs.
type Queue struct {
	q *goque.Queue
}

// Open creates or re-opens the on-disk queue at dir.
func Open(dir string) (*Queue, error) {
	q, err := goque.OpenQueue(dir)
	if err != nil {
		return nil, err
	}
	return &Queue{q: q}, nil
}

// Append enqueues ev. Errors are the caller's to log; audit failures
// must never fail the request that triggered them.
func (a *Queue) Append(ev Event) error {
	_, err := a.q.EnqueueObject(ev)
	return err
}

// Close flushes and closes the underlying on-disk queue.
func (a *Queue) Close() error {
	return a.q.Close()
}

// now is a thin indirection so callers that already have an injected
// clock.Clock can stamp events without this package depending on
// jmhodges/clock itself.
func now() int64 { return time.Now().Unix() }

// NewEvent stamps a fresh Event with the current time.
func NewEvent(kind, issuerDID, subjectDID, credID string) Event {
	return Event{Kind: kind, IssuerDID: issuerDID, SubjectDID: subjectDID, CredID: credID, At: now()}
}
