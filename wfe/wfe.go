// Package wfe implements the HTTP surface described in spec.md §6: one
// handler per route, wired through the same HandleFunc/topHandler/
// requestEvent scaffolding wfe2.WebFrontEndImpl uses, adapted from ACME's
// method-and-nonce-header concerns to this engine's JSON/admin-token
// concerns.
package wfe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmhodges/clock"
	"github.com/letsencrypt/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/88448844/self-sovereign-identity-SSI/audit"
	"github.com/88448844/self-sovereign-identity-SSI/core"
	engerrors "github.com/88448844/self-sovereign-identity-SSI/errors"
	"github.com/88448844/self-sovereign-identity-SSI/log"
	"github.com/88448844/self-sovereign-identity-SSI/metrics"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
	"github.com/88448844/self-sovereign-identity-SSI/presentation"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
)

const (
	bootstrapIssuerPath   = "/v1/bootstrap/issuer"
	bootstrapHolderPath   = "/v1/bootstrap/holder"
	bootstrapVerifierPath = "/v1/bootstrap/verifier"
	issuePath             = "/v1/issuer/issue"
	statusListPath        = "/v1/issuer/statuslist/"
	revokePath            = "/v1/issuer/revoke"
	offersPath            = "/v1/issuer/offers"
	claimPath             = "/v1/wallet/claim"
	challengePath         = "/v1/verifier/challenge"
	verifyPath            = "/v1/verifier/verify"
	presentPath           = "/v1/holder/present"
	holderCredsPath       = "/v1/holder/credentials/"
	adminResetPath        = "/v1/admin/reset"
	healthzPath           = "/healthz"
	readyzPath            = "/readyz"
)

// WebFrontEndImpl wires the credential engine's components to the HTTP
// surface spec.md §6 names.
type WebFrontEndImpl struct {
	Keys       core.KeyProvider
	Store      core.CredentialStore
	Offers     core.ExpiringStore
	Nonces     *nonce.Service
	Builder    *presentation.Builder
	StatusList *statuslist.Manager
	Audit      *audit.Queue

	log   log.Logger
	clk   clock.Clock
	stats metrics.Scope

	// AdminToken, if non-empty, must match the X-Admin-Token header on
	// every admin route (spec.md §6 "Admin auth").
	AdminToken string

	// AdminTokenHash, if set, takes precedence over AdminToken: the
	// header is checked against a bcrypt hash instead of a plaintext
	// comparison, so the service never needs to hold the admin token in
	// memory past startup. cmd/credential-engine sets this instead of
	// AdminToken in production.
	AdminTokenHash []byte

	// ServicePrefix feeds didkey.BuildDocument's service endpoint.
	ServicePrefix string

	// AllowOrigins lists the CORS origins to honor; "*" matches any.
	AllowOrigins []string

	RequestTimeout time.Duration
}

func New(
	keys core.KeyProvider,
	store core.CredentialStore,
	offers core.ExpiringStore,
	nonces *nonce.Service,
	builder *presentation.Builder,
	sl *statuslist.Manager,
	auditQueue *audit.Queue,
	logger log.Logger,
	clk clock.Clock,
	stats metrics.Scope,
) *WebFrontEndImpl {
	if clk == nil {
		clk = clock.New()
	}
	if stats == nil {
		stats = metrics.NewNoopScope()
	}
	return &WebFrontEndImpl{
		Keys:           keys,
		Store:          store,
		Offers:         offers,
		Nonces:         nonces,
		Builder:        builder,
		StatusList:     sl,
		Audit:          auditQueue,
		log:            logger,
		clk:            clk,
		stats:          stats,
		ServicePrefix:  "inbox://",
		RequestTimeout: 5 * time.Minute,
	}
}

// wfeHandlerFunc is the signature every route handler implements, the
// same shape wfe2.wfeHandlerFunc uses.
type wfeHandlerFunc func(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request)

// requestEvent accumulates per-request bookkeeping for audit logging.
// Mirrors wfe2's requestEvent, minus the ACME-specific fields (no
// Requester/Contacts; this engine has no account model).
type requestEvent struct {
	Endpoint string
	Method   string
	Errors   []string
	Extra    map[string]interface{}
}

func (e *requestEvent) AddError(msg string, args ...interface{}) {
	e.Errors = append(e.Errors, fmt.Sprintf(msg, args...))
}

// topHandler is the outermost http.Handler every route passes through:
// it builds the requestEvent, times the request, and on the way out
// logs it at Info level if the handler recorded any errors.
type topHandler struct {
	log log.Logger
	clk clock.Clock
	wfe wfeHandlerFunc
}

func (th *topHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	begin := th.clk.Now()
	logEvent := &requestEvent{
		Method: r.Method,
		Extra:  make(map[string]interface{}),
	}
	th.wfe(r.Context(), logEvent, w, r)
	if len(logEvent.Errors) > 0 {
		th.log.Info(fmt.Sprintf("%s %s %v (%s)", logEvent.Method, logEvent.Endpoint, logEvent.Errors, th.clk.Since(begin)))
	}
}

// HandleFunc registers h at pattern with the shared method-gating,
// CORS, no-cache, and OPTIONS scaffolding spec.md's HTTP surface
// requires of every route.
func (wfe *WebFrontEndImpl) HandleFunc(mux *http.ServeMux, pattern string, h wfeHandlerFunc, methods ...string) {
	methodsMap := make(map[string]bool, len(methods))
	for _, m := range methods {
		methodsMap[m] = true
	}
	methodsStr := strings.Join(methods, ", ")

	handler := &topHandler{
		log: wfe.log,
		clk: wfe.clk,
		wfe: wfeHandlerFunc(func(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
			logEvent.Endpoint = pattern

			if request.Method == "OPTIONS" {
				wfe.options(response, request, methodsStr, methodsMap)
				return
			}

			addNoCacheHeader(response)

			if !methodsMap[request.Method] {
				response.Header().Set("Allow", methodsStr)
				logEvent.AddError("method not allowed")
				http.Error(response, `{"detail": "method not allowed"}`, http.StatusMethodNotAllowed)
				return
			}

			wfe.setCORSHeaders(response, request, "")

			timeout := wfe.RequestTimeout
			if timeout == 0 {
				timeout = 5 * time.Minute
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			h(ctx, logEvent, response, request)
		}),
	}
	mux.Handle(pattern, handler)
}

// Handler assembles the complete mux for spec.md §6's route table.
func (wfe *WebFrontEndImpl) Handler() http.Handler {
	mux := http.NewServeMux()

	wfe.HandleFunc(mux, bootstrapIssuerPath, wfe.BootstrapIssuer, "POST")
	wfe.HandleFunc(mux, bootstrapHolderPath, wfe.BootstrapHolder, "POST")
	wfe.HandleFunc(mux, bootstrapVerifierPath, wfe.BootstrapVerifier, "POST")
	wfe.HandleFunc(mux, issuePath, wfe.Issue, "POST")
	wfe.HandleFunc(mux, statusListPath, wfe.StatusListGet, "GET")
	wfe.HandleFunc(mux, revokePath, wfe.Revoke, "POST")
	wfe.HandleFunc(mux, offersPath, wfe.RegisterOffer, "POST")
	wfe.HandleFunc(mux, claimPath, wfe.ClaimOffer, "POST")
	wfe.HandleFunc(mux, challengePath, wfe.Challenge, "POST")
	wfe.HandleFunc(mux, verifyPath, wfe.Verify, "POST")
	wfe.HandleFunc(mux, presentPath, wfe.Present, "POST")
	wfe.HandleFunc(mux, holderCredsPath, wfe.HolderCredentials, "GET")
	wfe.HandleFunc(mux, adminResetPath, wfe.AdminReset, "POST")
	wfe.HandleFunc(mux, healthzPath, wfe.Healthz, "GET")
	wfe.HandleFunc(mux, readyzPath, wfe.Readyz, "GET")

	return mux
}

func addNoCacheHeader(w http.ResponseWriter) {
	w.Header().Add("Cache-Control", "public, max-age=0, no-cache")
}

func (wfe *WebFrontEndImpl) options(response http.ResponseWriter, request *http.Request, methodsStr string, methodsMap map[string]bool) {
	response.Header().Set("Allow", methodsStr)
	reqMethod := request.Header.Get("Access-Control-Request-Method")
	if reqMethod == "" {
		reqMethod = "GET"
	}
	if methodsMap[reqMethod] {
		wfe.setCORSHeaders(response, request, methodsStr)
	}
}

// setCORSHeaders mirrors wfe2's of the same name: only honors the
// configured AllowOrigins, with "*" matching anything.
func (wfe *WebFrontEndImpl) setCORSHeaders(response http.ResponseWriter, request *http.Request, allowMethods string) {
	reqOrigin := request.Header.Get("Origin")
	if reqOrigin == "" {
		return
	}

	origins := wfe.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	allow := false
	for _, ao := range origins {
		if ao == "*" {
			response.Header().Set("Access-Control-Allow-Origin", "*")
			allow = true
			break
		} else if ao == reqOrigin {
			response.Header().Set("Vary", "Origin")
			response.Header().Set("Access-Control-Allow-Origin", ao)
			allow = true
			break
		}
	}
	if !allow {
		return
	}
	if allowMethods != "" {
		response.Header().Set("Access-Control-Allow-Methods", allowMethods)
	}
	response.Header().Set("Access-Control-Expose-Headers", "Link")
	response.Header().Set("Access-Control-Max-Age", "86400")
}

// sendError writes {"detail": "..."} at the status code derived from
// err's ErrorType, per spec.md §7.
func (wfe *WebFrontEndImpl) sendError(response http.ResponseWriter, logEvent *requestEvent, err error) {
	detail := err.Error()
	code := engerrors.StatusCode(err)
	logEvent.AddError("%d :: %s", code, detail)

	if code == 500 {
		wfe.log.AuditErr(fmt.Sprintf("internal error: %s", detail))
	}

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(code)
	_ = json.NewEncoder(response).Encode(map[string]string{"detail": detail})

	wfe.stats.Inc(fmt.Sprintf("http.errors.%d", code), 1)
}

// validate runs struct-tag validation on decoded request bodies before a
// handler acts on them, the same "reject garbage before it touches
// business logic" role wfe2 leans on github.com/go-playground/validator
// for in a few of its own config/profile structs.
var validate = validator.New()

// decodeAndValidate decodes body as JSON into v, then runs v's
// `validate` struct tags. Handlers use this in place of a bare
// json.Decoder so malformed and incomplete bodies are rejected with the
// same BadRequest shape.
func decodeAndValidate(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return engerrors.BadRequestError("malformed JSON body: %s", err)
	}
	if err := validate.Struct(v); err != nil {
		return engerrors.BadRequestError("invalid request: %s", err)
	}
	return nil
}

func (wfe *WebFrontEndImpl) writeJSON(response http.ResponseWriter, logEvent *requestEvent, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		wfe.sendError(response, logEvent, engerrors.InternalServerError("marshaling response: %s", err))
		return
	}
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if _, err := response.Write(data); err != nil {
		logEvent.AddError("failed to write response: %s", err)
	}
}

// requireAdmin enforces spec.md §6's "Admin auth" rule: if AdminToken
// is set, X-Admin-Token must match it exactly; an unset AdminToken is a
// no-op (development mode).
func (wfe *WebFrontEndImpl) requireAdmin(request *http.Request) error {
	if wfe.AdminToken == "" && len(wfe.AdminTokenHash) == 0 {
		return nil
	}
	header := request.Header.Get("X-Admin-Token")
	if len(wfe.AdminTokenHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(wfe.AdminTokenHash, []byte(header)); err != nil {
			return engerrors.UnauthorizedError("admin token mismatch")
		}
		return nil
	}
	if header != wfe.AdminToken {
		return engerrors.UnauthorizedError("admin token mismatch")
	}
	return nil
}

// pathTail returns the path segment after prefix, for routes registered
// with a trailing slash (statuslist/{id}, holder/credentials/{did}).
func pathTail(prefix, path string) string {
	return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
}

func (wfe *WebFrontEndImpl) Healthz(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	response.WriteHeader(http.StatusOK)
	response.Write([]byte("ok"))
}

func (wfe *WebFrontEndImpl) Readyz(ctx context.Context, logEvent *requestEvent, response http.ResponseWriter, request *http.Request) {
	response.WriteHeader(http.StatusOK)
	response.Write([]byte("ok"))
}
