package wfe

import (
	"context"
	"crypto/ecdsa"
	"net/http"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/didkey"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
)

// bootstrapParty generates a fresh #sign/#agree keypair, derives the
// DID and DID Document, and persists both the keys and the Party row.
// Re-running bootstrap for the same label creates a distinct party
// (spec.md has no "label is unique" invariant); only the kid-level
// create-if-absent race (didkey.FileKeyProvider.Save) is de-duplicated.
func (wfe *WebFrontEndImpl) bootstrapParty(ctx context.Context, role core.PartyRole, label string) (core.Party, error) {
	signKP, err := wfe.Keys.Generate(core.RoleSign)
	if err != nil {
		return core.Party{}, engerrors.InternalServerError("generating sign key: %s", err)
	}
	agreeKP, err := wfe.Keys.Generate(core.RoleAgree)
	if err != nil {
		return core.Party{}, engerrors.InternalServerError("generating agreement key: %s", err)
	}

	signPub, ok := signKP.Public.Key.(*ecdsa.PublicKey)
	if !ok {
		return core.Party{}, engerrors.InternalServerError("generated sign key is not ECDSA")
	}
	agreePub, ok := agreeKP.Public.Key.(*ecdsa.PublicKey)
	if !ok {
		return core.Party{}, engerrors.InternalServerError("generated agreement key is not ECDSA")
	}

	doc := didkey.BuildDocument(signPub, agreePub, wfe.ServicePrefix)

	if err := wfe.Keys.Save(core.KID(doc.DID, core.RoleSign), signKP); err != nil {
		return core.Party{}, engerrors.InternalServerError("saving sign key: %s", err)
	}
	if err := wfe.Keys.Save(core.KID(doc.DID, core.RoleAgree), agreeKP); err != nil {
		return core.Party{}, engerrors.InternalServerError("saving agreement key: %s", err)
	}

	p := core.Party{
		Role:      role,
		Label:     label,
		DID:       doc.DID,
		Doc:       doc,
		CreatedAt: wfe.clk.Now().Unix(),
	}
	if err := wfe.Store.SaveParty(ctx, p); err != nil {
		return core.Party{}, engerrors.InternalServerError("saving party: %s", err)
	}
	return p, nil
}

func (wfe *WebFrontEndImpl) BootstrapIssuer(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	if err := wfe.requireAdmin(request); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	p, err := wfe.bootstrapParty(ctx, core.RoleIssuer, request.URL.Query().Get("name"))
	if err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	wfe.log.Audit("bootstrapped issuer " + p.DID)
	wfe.writeJSON(response, logEvent, http.StatusOK, p)
}

func (wfe *WebFrontEndImpl) BootstrapHolder(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	p, err := wfe.bootstrapParty(ctx, core.RoleHolder, request.URL.Query().Get("label"))
	if err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, p)
}

func (wfe *WebFrontEndImpl) BootstrapVerifier(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	p, err := wfe.bootstrapParty(ctx, core.RoleVerifier, request.URL.Query().Get("label"))
	if err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	wfe.writeJSON(response, logEvent, http.StatusOK, p)
}
