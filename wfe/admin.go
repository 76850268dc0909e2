package wfe

import (
	"context"
	"net/http"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
)

// AdminReset implements POST /v1/admin/reset: wipes durable state,
// ephemeral state (nonces and offers), and key material so test
// scenarios can re-bootstrap from a clean slate (spec.md §8 scenario 6).
// Key-material wipe is best-effort: an HSM-backed KeyProvider does not
// implement core.KeyPurger and is left untouched.
func (wfe *WebFrontEndImpl) AdminReset(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	if err := wfe.requireAdmin(request); err != nil {
		wfe.sendError(response, logEvent, err)
		return
	}
	if err := wfe.Store.ResetState(ctx); err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("resetting state: %s", err))
		return
	}
	if err := wfe.Offers.Flush(ctx); err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("flushing ephemeral state: %s", err))
		return
	}
	if purger, ok := wfe.Keys.(core.KeyPurger); ok {
		if err := purger.PurgeKeys(); err != nil {
			wfe.sendError(response, logEvent, engerrors.InternalServerError("purging key material: %s", err))
			return
		}
	}
	wfe.log.Audit("admin reset")
	wfe.writeJSON(response, logEvent, http.StatusOK, map[string]string{"status": "reset"})
}
