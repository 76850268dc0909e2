package sa

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jmhodges/clock"
	"github.com/letsencrypt/borp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
)

var labelCaser = cases.Title(language.English)

const idempotencyTTLSeconds = 24 * 60 * 60

// Store implements core.CredentialStore over a borp.DbMap.
type Store struct {
	dbMap *borp.DbMap
	clk   clock.Clock
}

func New(dbMap *borp.DbMap, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	return &Store{dbMap: dbMap, clk: clk}
}

// SaveParty upserts by DID: an existing row with the same DID is
// updated in place, otherwise a new one is inserted. DIDs are derived
// deterministically from a key (didkey.DeriveDID), so a collision here
// means the same party is being re-bootstrapped, not two distinct
// parties colliding.
func (s *Store) SaveParty(ctx context.Context, p core.Party) error {
	tx, err := s.dbMap.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sa: beginning tx: %w", err)
	}

	existing := new(partyModel)
	err = tx.SelectOne(ctx, existing, "SELECT * FROM parties WHERE did = ?", p.DID)
	if err != nil && err != sql.ErrNoRows {
		tx.Rollback()
		return fmt.Errorf("sa: looking up party: %w", err)
	}
	found := err == nil

	// Free-text labels ("test university", "ALICE") are title-cased for
	// display consistency; the DID, not the label, is the identity key.
	p.Label = labelCaser.String(p.Label)

	model, err := partyToModel(p)
	if err != nil {
		tx.Rollback()
		return err
	}
	if model.CreatedAt == 0 {
		model.CreatedAt = s.clk.Now().Unix()
	}

	if !found {
		if _, err := tx.Insert(ctx, model); err != nil {
			tx.Rollback()
			return fmt.Errorf("sa: inserting party: %w", err)
		}
	} else {
		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
		if _, err := tx.Update(ctx, model); err != nil {
			tx.Rollback()
			return fmt.Errorf("sa: updating party: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetParty(ctx context.Context, did string) (core.Party, error) {
	m := new(partyModel)
	err := s.dbMap.SelectOne(ctx, m, "SELECT * FROM parties WHERE did = ?", did)
	if err == sql.ErrNoRows {
		return core.Party{}, core.ErrNotFound
	}
	if err != nil {
		return core.Party{}, fmt.Errorf("sa: getting party: %w", err)
	}
	return m.toCore()
}

// GetDefaultParty returns the first-bootstrapped party of role, per
// spec.md §4.G's deterministic-selection requirement: ordered by
// creation time, with the autoincrement id breaking ties between
// parties created in the same second.
func (s *Store) GetDefaultParty(ctx context.Context, role core.PartyRole) (core.Party, error) {
	m := new(partyModel)
	err := s.dbMap.SelectOne(ctx, m,
		"SELECT * FROM parties WHERE role = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		string(role))
	if err == sql.ErrNoRows {
		return core.Party{}, core.ErrNotFound
	}
	if err != nil {
		return core.Party{}, fmt.Errorf("sa: getting default party: %w", err)
	}
	return m.toCore()
}

// AllocateIndex resolves or creates issuerDID's status list and
// returns the next monotonic index, serialized per spec.md §5 by a
// row-level lock on the statuslists row for the duration of the
// transaction.
func (s *Store) AllocateIndex(ctx context.Context, issuerDID string) (string, int64, error) {
	listID := "status:" + issuerDID

	tx, err := s.dbMap.Begin(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("sa: beginning tx: %w", err)
	}

	list := new(statusListModel)
	err = tx.SelectOne(ctx, list, "SELECT * FROM statuslists WHERE list_id = ? FOR UPDATE", listID)
	if err == sql.ErrNoRows {
		list = &statusListModel{ListID: listID, Issuer: issuerDID, Bitmap: nil, MaxIndex: -1}
		if err := tx.Insert(ctx, list); err != nil {
			tx.Rollback()
			return "", 0, fmt.Errorf("sa: creating status list: %w", err)
		}
	} else if err != nil {
		tx.Rollback()
		return "", 0, fmt.Errorf("sa: locking status list: %w", err)
	}

	next := list.MaxIndex + 1
	list.MaxIndex = next
	requiredSize := statuslist.BitmapSize(next)
	if len(list.Bitmap) < requiredSize {
		grown := make([]byte, requiredSize)
		copy(grown, list.Bitmap)
		list.Bitmap = grown
	}
	if _, err := tx.Update(ctx, list); err != nil {
		tx.Rollback()
		return "", 0, fmt.Errorf("sa: persisting allocation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("sa: committing allocation: %w", err)
	}
	return listID, next, nil
}

func (s *Store) CreateCredential(ctx context.Context, cred core.Credential) error {
	model, err := credentialToModel(cred)
	if err != nil {
		return err
	}
	if model.IssuedAt == 0 {
		model.IssuedAt = s.clk.Now().Unix()
	}
	if err := s.dbMap.Insert(ctx, model); err != nil {
		return fmt.Errorf("sa: inserting credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, id string) (core.Credential, error) {
	m := new(credentialModel)
	err := s.dbMap.SelectOne(ctx, m, "SELECT * FROM credentials WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return core.Credential{}, core.ErrNotFound
	}
	if err != nil {
		return core.Credential{}, fmt.Errorf("sa: getting credential: %w", err)
	}
	return m.toCore()
}

func (s *Store) ListCredentialsForHolder(ctx context.Context, did string) ([]core.Credential, error) {
	var rows []credentialModel
	_, err := s.dbMap.Select(ctx, &rows, "SELECT * FROM credentials WHERE subject = ? ORDER BY issued_at ASC", did)
	if err != nil {
		return nil, fmt.Errorf("sa: listing credentials: %w", err)
	}
	out := make([]core.Credential, len(rows))
	for i := range rows {
		c, err := rows[i].toCore()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Revoke flips the credential's status bit in the same transaction
// that marks it revoked, per spec.md §4.D option (a): readers of
// IsRevoked see the persisted bitmap, never a re-derivation.
func (s *Store) Revoke(ctx context.Context, credID string) error {
	tx, err := s.dbMap.Begin(ctx)
	if err != nil {
		return fmt.Errorf("sa: beginning tx: %w", err)
	}

	cred := new(credentialModel)
	err = tx.SelectOne(ctx, cred, "SELECT * FROM credentials WHERE id = ? FOR UPDATE", credID)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return core.ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sa: locking credential: %w", err)
	}

	if cred.Revoked {
		// Idempotent: a repeat revoke of an already-revoked credential
		// succeeds without flipping the bit twice.
		return tx.Commit()
	}

	list := new(statusListModel)
	err = tx.SelectOne(ctx, list, "SELECT * FROM statuslists WHERE list_id = ? FOR UPDATE", cred.ListID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sa: locking status list: %w", err)
	}
	list.Bitmap = statuslist.SetBit(list.Bitmap, cred.StatusIdx)
	if _, err := tx.Update(ctx, list); err != nil {
		tx.Rollback()
		return fmt.Errorf("sa: persisting revocation bitmap: %w", err)
	}

	cred.Revoked = true
	if _, err := tx.Update(ctx, cred); err != nil {
		tx.Rollback()
		return fmt.Errorf("sa: marking credential revoked: %w", err)
	}

	return tx.Commit()
}

// IsRevoked reads the persisted bitmap. A list that has never had an
// index allocated reads as not-revoked, per spec.md §4.D invariant 3,
// rather than surfacing as a lookup error.
func (s *Store) IsRevoked(ctx context.Context, listID string, idx int64) (bool, error) {
	list := new(statusListModel)
	err := s.dbMap.SelectOne(ctx, list, "SELECT * FROM statuslists WHERE list_id = ?", listID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sa: reading status list: %w", err)
	}
	return statuslist.GetBit(list.Bitmap, idx), nil
}

func (s *Store) PublishStatusList(ctx context.Context, listID string) (core.StatusListPublication, error) {
	list := new(statusListModel)
	err := s.dbMap.SelectOne(ctx, list, "SELECT * FROM statuslists WHERE list_id = ?", listID)
	if err == sql.ErrNoRows {
		return core.StatusListPublication{}, core.ErrNotFound
	}
	if err != nil {
		return core.StatusListPublication{}, fmt.Errorf("sa: reading status list: %w", err)
	}
	return core.StatusListPublication{
		ID:       listID,
		Encoding: "bitset",
		Data:     hex.EncodeToString(list.Bitmap),
	}, nil
}

func (s *Store) CheckIdempotencyKey(ctx context.Context, key, route string, bodyHash [32]byte) ([]byte, bool, error) {
	m := new(idempotencyModel)
	err := s.dbMap.SelectOne(ctx, m,
		"SELECT * FROM idempotency_entries WHERE idem_key = ? AND route = ?", key, route)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sa: checking idempotency key: %w", err)
	}
	if m.BodyHash != hex.EncodeToString(bodyHash[:]) {
		return nil, false, errors.New("sa: idempotency key reused with a different request body")
	}
	if s.clk.Now().Unix()-m.CreatedAt > idempotencyTTLSeconds {
		return nil, false, nil
	}
	return m.Response, true, nil
}

func (s *Store) SaveIdempotencyResult(ctx context.Context, key, route string, bodyHash [32]byte, response []byte) error {
	m := &idempotencyModel{
		IdemKey:   key,
		Route:     route,
		BodyHash:  hex.EncodeToString(bodyHash[:]),
		Response:  response,
		CreatedAt: s.clk.Now().Unix(),
	}
	if err := s.dbMap.Insert(ctx, m); err != nil {
		return fmt.Errorf("sa: saving idempotency result: %w", err)
	}
	return nil
}

// ResetState truncates every table this store owns. Key material
// living outside the database (the KeyProvider's directory) is not
// touched here; the admin reset handler clears that separately.
func (s *Store) ResetState(ctx context.Context) error {
	for _, table := range []string{"parties", "credentials", "statuslists", "idempotency_entries"} {
		if _, err := s.dbMap.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sa: truncating %s: %w", table, err)
		}
	}
	return nil
}

// BodyHash is a convenience for callers (the wfe layer) computing the
// idempotency cache key's body-hash component.
func BodyHash(body []byte) [32]byte {
	return sha256.Sum256(body)
}
