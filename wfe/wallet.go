package wfe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
)

type claimRequest struct {
	Challenge  string                 `json:"challenge" validate:"required"`
	HolderDID  string                 `json:"holder_did" validate:"required"`
	Attributes map[string]interface{} `json:"attributes" validate:"required"`
}

// ClaimOffer implements POST /v1/wallet/claim: an atomic get-and-delete
// of the offer coupon followed by issuance. Per spec.md §5, if issuance
// fails after the coupon is consumed, the coupon is restored so the
// holder can retry; a second successful claim is impossible by
// construction since GetDel only ever returns the value once.
func (wfe *WebFrontEndImpl) ClaimOffer(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	body, err := readBody(request)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.BadRequestError("reading request body: %s", err))
		return
	}
	var req claimRequest
	if err := decodeAndValidate(body, &req); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}

	raw, err := wfe.Offers.GetDel(ctx, offerKey(req.Challenge))
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.NotFoundError("offer not found or already claimed"))
		return
	}

	var offer core.IssuanceOffer
	if err := json.Unmarshal([]byte(raw), &offer); err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("decoding stored offer: %s", err))
		return
	}

	for claim, required := range offer.Claims {
		if !required {
			continue
		}
		if _, ok := req.Attributes[claim]; !ok {
			wfe.restoreOffer(ctx, req.Challenge, offer)
			wfe.sendError(response, logEvent, engerrors.BadRequestError("missing claim attribute %q", claim))
			return
		}
	}

	if _, err := wfe.Store.GetParty(ctx, req.HolderDID); err != nil {
		wfe.restoreOffer(ctx, req.Challenge, offer)
		wfe.sendError(response, logEvent, engerrors.BadRequestError("unknown holder %s", req.HolderDID))
		return
	}

	cred, err := wfe.issueCredential(ctx, offer.IssuerDID, req.HolderDID, req.Attributes)
	if err != nil {
		wfe.restoreOffer(ctx, req.Challenge, offer)
		wfe.sendError(response, logEvent, err)
		return
	}

	wfe.appendAudit("claim", offer.IssuerDID, cred.Subject, cred.ID)
	wfe.log.Audit("claimed offer " + req.Challenge + " into credential " + cred.ID)
	wfe.writeJSON(response, logEvent, http.StatusOK, cred)
}

func (wfe *WebFrontEndImpl) restoreOffer(ctx context.Context, challenge string, offer core.IssuanceOffer) {
	data, err := json.Marshal(offer)
	if err != nil {
		return
	}
	if err := wfe.Offers.Set(ctx, offerKey(challenge), string(data), int64(offer.TTLSeconds)); err != nil {
		wfe.log.Err("restoring offer after failed claim: " + err.Error())
	}
}
