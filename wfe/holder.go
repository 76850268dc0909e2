package wfe

import (
	"context"
	"net/http"

	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
)

type presentRequest struct {
	HolderDID    string   `json:"holder_did" validate:"required"`
	CredID       string   `json:"cred_id" validate:"required"`
	RevealFields []string `json:"reveal_fields"`
	VerifierDID  string   `json:"verifier_did" validate:"required"`
}

// Present implements POST /v1/holder/present.
func (wfe *WebFrontEndImpl) Present(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var req presentRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	holder, err := wfe.Store.GetParty(ctx, req.HolderDID)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown holder %s", req.HolderDID))
		return
	}
	verifier, err := wfe.Store.GetParty(ctx, req.VerifierDID)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown verifier %s", req.VerifierDID))
		return
	}
	cred, err := wfe.Store.GetCredential(ctx, req.CredID)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown credential %s", req.CredID))
		return
	}
	if cred.Subject != req.HolderDID {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("credential does not belong to holder"))
		return
	}

	box, err := wfe.Builder.Build(ctx, holder.Doc, verifier.Doc, cred, req.RevealFields)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("building presentation: %s", err))
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, box)
}

// HolderCredentials implements GET /v1/holder/credentials/{holder_did}.
func (wfe *WebFrontEndImpl) HolderCredentials(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	did := pathTail(holderCredsPath, request.URL.Path)
	if did == "" {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("missing holder_did"))
		return
	}
	creds, err := wfe.Store.ListCredentialsForHolder(ctx, did)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("listing credentials: %s", err))
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, creds)
}
