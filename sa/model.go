package sa

import (
	"encoding/json"

	"github.com/88448844/self-sovereign-identity-SSI/core"
)

// partyModel is the parties table row. DID carries a unique index at
// the schema level; ID exists only to give borp an autoincrement key
// and a stable tiebreaker for getDefaultParty's deterministic-ordering
// requirement.
type partyModel struct {
	ID        int64  `db:"id"`
	Role      string `db:"role"`
	Label     string `db:"label"`
	DID       string `db:"did"`
	DocJSON   string `db:"doc_json"`
	CreatedAt int64  `db:"created_at"`
}

func (m *partyModel) toCore() (core.Party, error) {
	var doc core.DIDDocument
	if err := json.Unmarshal([]byte(m.DocJSON), &doc); err != nil {
		return core.Party{}, err
	}
	return core.Party{
		Role:      core.PartyRole(m.Role),
		Label:     m.Label,
		DID:       m.DID,
		Doc:       doc,
		CreatedAt: m.CreatedAt,
	}, nil
}

func partyToModel(p core.Party) (*partyModel, error) {
	doc, err := json.Marshal(p.Doc)
	if err != nil {
		return nil, err
	}
	return &partyModel{
		Role:      string(p.Role),
		Label:     p.Label,
		DID:       p.DID,
		DocJSON:   string(doc),
		CreatedAt: p.CreatedAt,
	}, nil
}

// credentialModel is the credentials table row. Attrs and Merkle are
// stored as JSON text columns, matching the teacher's JSON-blob column
// convention for structured fields it can't normalize away (the
// teacher's type converter handles AcmeIdentifier/Challenges that way).
type credentialModel struct {
	ID         string `db:"id"`
	Issuer     string `db:"issuer"`
	Subject    string `db:"subject"`
	Schema     string `db:"schema"`
	AttrsJSON  string `db:"attrs_json"`
	MerkleJSON string `db:"merkle_json"`
	ListID     string `db:"list_id"`
	StatusIdx  int64  `db:"status_index"`
	JWS        string `db:"jws"`
	IssuedAt   int64  `db:"issued_at"`
	Revoked    bool   `db:"revoked"`
}

func (m *credentialModel) toCore() (core.Credential, error) {
	var attrs map[string]interface{}
	if err := json.Unmarshal([]byte(m.AttrsJSON), &attrs); err != nil {
		return core.Credential{}, err
	}
	var merkle core.MerkleCommitment
	if err := json.Unmarshal([]byte(m.MerkleJSON), &merkle); err != nil {
		return core.Credential{}, err
	}
	return core.Credential{
		ID:      m.ID,
		Issuer:  m.Issuer,
		Subject: m.Subject,
		Schema:  m.Schema,
		Attrs:   attrs,
		Merkle:  merkle,
		Status:  core.CredentialStatus{ListID: m.ListID, Index: m.StatusIdx},
		JWS:     m.JWS,
		IssuedAt: m.IssuedAt,
	}, nil
}

func credentialToModel(c core.Credential) (*credentialModel, error) {
	attrs, err := json.Marshal(c.Attrs)
	if err != nil {
		return nil, err
	}
	merkle, err := json.Marshal(c.Merkle)
	if err != nil {
		return nil, err
	}
	return &credentialModel{
		ID:         c.ID,
		Issuer:     c.Issuer,
		Subject:    c.Subject,
		Schema:     c.Schema,
		AttrsJSON:  string(attrs),
		MerkleJSON: string(merkle),
		ListID:     c.Status.ListID,
		StatusIdx:  c.Status.Index,
		JWS:        c.JWS,
		IssuedAt:   c.IssuedAt,
	}, nil
}

// statusListModel is the statuslists table row: the persisted,
// incrementally-maintained bitmap (spec.md §4.D option (a)).
type statusListModel struct {
	ListID   string `db:"list_id"`
	Issuer   string `db:"issuer"`
	Bitmap   []byte `db:"bitmap"`
	MaxIndex int64  `db:"max_index"`
}

// idempotencyModel is the idempotency_entries table row backing the
// (key, route, body-hash) cache spec.md §4.G calls the "full
// implementation" of idempotency, layered on top of the mandatory
// header-presence check enforced at the wfe layer.
type idempotencyModel struct {
	ID        int64  `db:"id"`
	IdemKey   string `db:"idem_key"`
	Route     string `db:"route"`
	BodyHash  string `db:"body_hash"`
	Response  []byte `db:"response"`
	CreatedAt int64  `db:"created_at"`
}
