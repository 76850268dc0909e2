package wfe

import (
	"context"
	"net/http"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
	"github.com/88448844/self-sovereign-identity-SSI/presentation"
)

type challengeRequest struct {
	Aud string `json:"aud" validate:"required"`
}

// Challenge implements POST /v1/verifier/challenge.
func (wfe *WebFrontEndImpl) Challenge(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var req challengeRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	ch, err := wfe.Nonces.Issue(ctx, req.Aud)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("issuing challenge: %s", err))
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, ch)
}

// challengeReasons are the three nonce-validation failure strings
// nonce.Service.Validate returns; spec.md §7 groups all three under
// the single "challenge invalid" BadRequest signal.
var challengeReasons = map[string]bool{
	"nonce not found": true,
	"aud mismatch":    true,
	"expired":         true,
}

// Verify implements POST /v1/verifier/verify. The request body carries
// only the encrypted box (spec.md §6): the issuer and verifier are
// resolved the same way Issue resolves its issuer, via the
// single-default-party convention this engine uses throughout (spec.md
// §9's default-party note).
func (wfe *WebFrontEndImpl) Verify(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var box presentation.Box
	if err := decodeAndValidate(body, &box); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	verifierParty, err := wfe.Store.GetDefaultParty(ctx, core.RoleVerifier)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("no verifier configured"))
		return
	}
	issuerParty, err := wfe.Store.GetDefaultParty(ctx, core.RoleIssuer)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("no issuer configured"))
		return
	}

	v := presentation.NewVerifier(wfe.Keys, wfe.Nonces, wfe.StatusList, verifierParty.DID)
	result := v.Verify(ctx, box, issuerParty.Doc)

	if result.Outcome != presentation.Verified {
		wfe.sendError(response, logEvent, presentationError(result.Reason))
		return
	}

	wfe.writeJSON(response, logEvent, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"message":  "verified OK",
		"disclosed": result.Revealed,
	})
}

// presentationError maps a presentation.Result.Reason to the error
// taxonomy in spec.md §7: nonce-validation reasons are grouped under
// one "challenge invalid" BadRequest, decryption/parse failures are
// flattened to a generic message that doesn't leak which step failed,
// and everything else (revocation, signature, proof) is surfaced
// verbatim.
func presentationError(reason string) error {
	if challengeReasons[reason] {
		return engerrors.BadRequestError("challenge invalid: %s", reason)
	}
	switch reason {
	case "malformed presentation", "decryption failed", "malformed disclosure payload":
		return engerrors.BadRequestError("decryption failed")
	case "":
		return engerrors.BadRequestError("presentation rejected")
	default:
		return engerrors.BadRequestError("%s", reason)
	}
}
