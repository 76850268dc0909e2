package wfe

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	jose "gopkg.in/go-jose/go-jose.v2"

	"github.com/88448844/self-sovereign-identity-SSI/audit"
	"github.com/88448844/self-sovereign-identity-SSI/core"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
	"github.com/88448844/self-sovereign-identity-SSI/merkle"
)

type issueRequest struct {
	SubjectDID string                 `json:"subject_did" validate:"required"`
	Attributes map[string]interface{} `json:"attributes" validate:"required"`
}

// credentialID builds the id spec.md §3 mandates: "cred:<issuer_did>:<index>".
func credentialID(issuerDID string, index int64) string {
	return fmt.Sprintf("cred:%s:%d", issuerDID, index)
}

// signedFields are a credential's identifying fields and Merkle root;
// signCredential signs their canonical JSON with the issuer's #sign
// key, resolving
// SPEC_FULL.md's open question about the integrity anchor: the JWS, not
// the Merkle proof stub, is what Verifier actually cryptographically
// checks.
type signedFields struct {
	ID      string `json:"id"`
	Issuer  string `json:"issuer"`
	Subject string `json:"subject"`
	Root    string `json:"root"`
}

func (wfe *WebFrontEndImpl) signCredential(issuerDID string, cred *core.Credential) error {
	kp, err := wfe.Keys.Load(core.KID(issuerDID, core.RoleSign))
	if err != nil {
		return engerrors.InternalServerError("loading issuer sign key: %s", err)
	}
	if kp.Private == nil {
		return engerrors.InternalServerError("issuer sign key has no private half")
	}
	priv, ok := kp.Private.Key.(*ecdsa.PrivateKey)
	if !ok {
		return engerrors.InternalServerError("issuer sign key is not ECDSA")
	}

	canon, err := merkle.CanonicalJSON(signedFields{
		ID:      cred.ID,
		Issuer:  cred.Issuer,
		Subject: cred.Subject,
		Root:    cred.Merkle.Root,
	})
	if err != nil {
		return engerrors.InternalServerError("canonicalizing credential: %s", err)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: priv}, nil)
	if err != nil {
		return engerrors.InternalServerError("building signer: %s", err)
	}
	sig, err := signer.Sign(canon)
	if err != nil {
		return engerrors.InternalServerError("signing credential: %s", err)
	}
	compact, err := sig.CompactSerialize()
	if err != nil {
		return engerrors.InternalServerError("serializing signature: %s", err)
	}
	cred.JWS = compact
	return nil
}

// issueCredential performs the shared work behind both POST
// /v1/issuer/issue and a successful POST /v1/wallet/claim: allocate a
// status index, commit the attributes, sign, and persist.
func (wfe *WebFrontEndImpl) issueCredential(ctx context.Context, issuerDID, subjectDID string, attrs map[string]interface{}) (core.Credential, error) {
	listID, idx, err := wfe.StatusList.Allocate(ctx, issuerDID)
	if err != nil {
		return core.Credential{}, engerrors.InternalServerError("allocating status index: %s", err)
	}
	id := credentialID(issuerDID, idx)

	commitment, err := merkle.Commit(attrs, nil)
	if err != nil {
		return core.Credential{}, engerrors.InternalServerError("committing attributes: %s", err)
	}

	cred := core.Credential{
		ID:       id,
		Issuer:   issuerDID,
		Subject:  subjectDID,
		Schema:   core.SchemaStudentID,
		Attrs:    attrs,
		Merkle:   commitment,
		Status:   core.CredentialStatus{ListID: listID, Index: idx},
		IssuedAt: wfe.clk.Now().Unix(),
	}
	if err := wfe.signCredential(issuerDID, &cred); err != nil {
		return core.Credential{}, err
	}
	if err := wfe.Store.CreateCredential(ctx, cred); err != nil {
		return core.Credential{}, engerrors.InternalServerError("storing credential: %s", err)
	}
	return cred, nil
}

// Issue implements POST /v1/issuer/issue: admin + Idempotency-Key
// required, full (key, route, body hash) replay caching beyond the bare
// header-presence check.
func (wfe *WebFrontEndImpl) Issue(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	if err := wfe.requireAdmin(request); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	idemKey := request.Header.Get("Idempotency-Key")
	if idemKey == "" {
		wfe.sendError(response, logEvent, engerrors.PreconditionMissingError("Idempotency-Key header required"))
		return
	}

	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	bodyHash := sha256.Sum256(body)

	if cached, replay, err := wfe.Store.CheckIdempotencyKey(ctx, idemKey, issuePath, bodyHash); err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("%s", err))
		return
	} else if replay {
		response.Header().Set("Content-Type", "application/json")
		response.WriteHeader(http.StatusOK)
		response.Write(cached)
		return
	}

	var req issueRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	issuer, err := wfe.Store.GetDefaultParty(ctx, core.RoleIssuer)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("no issuer configured"))
		return
	}
	if _, err := wfe.Store.GetParty(ctx, req.SubjectDID); err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown holder %s", req.SubjectDID))
		return
	}

	cred, err := wfe.issueCredential(ctx, issuer.DID, req.SubjectDID, req.Attributes)
	if err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	respBody, err := json.Marshal(cred)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("marshaling credential: %s", err))
		return
	}
	if err := wfe.Store.SaveIdempotencyResult(ctx, idemKey, issuePath, bodyHash, respBody); err != nil {
		logEvent.AddError("saving idempotency result: %s", err)
	}

	wfe.appendAudit("issue", issuer.DID, cred.Subject, cred.ID)
	wfe.log.Audit("issued credential " + cred.ID + " to " + cred.Subject)

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusOK)
	response.Write(respBody)
}

// StatusListGet implements GET /v1/issuer/statuslist/{list_id}.
func (wfe *WebFrontEndImpl) StatusListGet(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	listID := pathTail(statusListPath, request.URL.Path)
	if listID == "" {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("missing list_id"))
		return
	}
	pub, err := wfe.StatusList.Publish(ctx, listID)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.NotFoundError("status list %s not found", listID))
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, pub)
}

type revokeRequest struct {
	CredID string `json:"cred_id" validate:"required"`
}

// Revoke implements POST /v1/issuer/revoke.
func (wfe *WebFrontEndImpl) Revoke(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	if err := wfe.requireAdmin(request); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var req revokeRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	cred, err := wfe.Store.GetCredential(ctx, req.CredID)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown credential %s", req.CredID))
		return
	}
	if err := wfe.Store.Revoke(ctx, req.CredID); err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("revoking: %s", err))
		return
	}
	wfe.appendAudit("revoke", cred.Issuer, cred.Subject, cred.ID)
	wfe.log.Audit("revoked credential " + req.CredID)
	wfe.writeJSON(response, logEvent, http.StatusOK, map[string]string{"cred_id": req.CredID})
}

type offerRequest struct {
	Challenge  string          `json:"challenge" validate:"required"`
	IssuerDID  string          `json:"issuer_did" validate:"required"`
	Claims     map[string]bool `json:"claims"`
	TTLSeconds int             `json:"ttl_seconds"`
}

// RegisterOffer implements POST /v1/issuer/offers: registers a
// single-use, time-bounded coupon under "offer:<challenge>" in the
// expiring store.
func (wfe *WebFrontEndImpl) RegisterOffer(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	if err := wfe.requireAdmin(request); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var req offerRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	ttl := req.TTLSeconds
	if ttl <= 0 {
		ttl = 600
	}

	offer := core.IssuanceOffer{
		Challenge:  req.Challenge,
		IssuerDID:  req.IssuerDID,
		Claims:     req.Claims,
		TTLSeconds: ttl,
	}
	data, err := json.Marshal(offer)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("marshaling offer: %s", err))
		return
	}
	if err := wfe.Offers.Set(ctx, offerKey(req.Challenge), string(data), int64(ttl)); err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("registering offer: %s", err))
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, offer)
}

func offerKey(challenge string) string { return "offer:" + challenge }

func readBody(request *http.Request) ([]byte, error) {
	return io.ReadAll(request.Body)
}

func (wfe *WebFrontEndImpl) appendAudit(kind, issuerDID, subjectDID, credID string) {
	if wfe.Audit == nil {
		return
	}
	if err := wfe.Audit.Append(audit.NewEvent(kind, issuerDID, subjectDID, credID)); err != nil {
		wfe.log.Err("audit append failed: " + err.Error())
	}
}
