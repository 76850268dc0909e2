package wfe

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/88448844/self-sovereign-identity-SSI/core"
	"github.com/88448844/self-sovereign-identity-SSI/didkey"
	"github.com/88448844/self-sovereign-identity-SSI/kvstore"
	"github.com/88448844/self-sovereign-identity-SSI/log"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
	"github.com/88448844/self-sovereign-identity-SSI/presentation"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
	memtest "github.com/88448844/self-sovereign-identity-SSI/test"
)

type harness struct {
	t      *testing.T
	server *httptest.Server
	clk    clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	keys, err := didkey.NewFileKeyProvider(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKeyProvider: %v", err)
	}
	store := memtest.NewMemStore()
	offers := kvstore.NewMemoryStore()
	clk := clock.NewFake()
	clk.Set(time.Unix(1700000000, 0))

	nonces := nonce.New(offers, clk)
	sl := statuslist.New(store)
	builder := presentation.NewBuilder(nonces, clk)

	impl := New(keys, store, offers, nonces, builder, sl, nil, log.NewMock(), clk, nil)
	return &harness{t: t, server: httptest.NewServer(impl.Handler()), clk: clk}
}

func (h *harness) url(path string) string { return h.server.URL + path }

func (h *harness) close() { h.server.Close() }

func (h *harness) do(t *testing.T, method, path string, headers map[string]string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.url(path), reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp.StatusCode, respBody
}

func (h *harness) bootstrap(t *testing.T, path, query string) core.Party {
	t.Helper()
	code, body := h.do(t, "POST", path+"?"+query, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("bootstrap %s: status %d body %s", path, code, body)
	}
	var p core.Party
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("decoding party: %v", err)
	}
	return p
}

type scenarioFixture struct {
	h        *harness
	issuer   core.Party
	holder   core.Party
	verifier core.Party
}

func newScenarioFixture(t *testing.T) *scenarioFixture {
	h := newHarness(t)
	return &scenarioFixture{
		h:        h,
		issuer:   h.bootstrap(t, bootstrapIssuerPath, "name=Test+University"),
		holder:   h.bootstrap(t, bootstrapHolderPath, "label=Alice"),
		verifier: h.bootstrap(t, bootstrapVerifierPath, "label=Verifier"),
	}
}

func (f *scenarioFixture) issue(t *testing.T, idemKey string) core.Credential {
	t.Helper()
	code, body := f.h.do(t, "POST", issuePath, map[string]string{"Idempotency-Key": idemKey}, issueRequest{
		SubjectDID: f.holder.DID,
		Attributes: map[string]interface{}{"name": "Alice", "status": "student"},
	})
	if code != http.StatusOK {
		t.Fatalf("issue: status %d body %s", code, body)
	}
	var cred core.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		t.Fatalf("decoding credential: %v", err)
	}
	return cred
}

func (f *scenarioFixture) present(t *testing.T, cred core.Credential, reveal []string) presentation.Box {
	t.Helper()
	code, body := f.h.do(t, "POST", presentPath, nil, presentRequest{
		HolderDID:    f.holder.DID,
		CredID:       cred.ID,
		RevealFields: reveal,
		VerifierDID:  f.verifier.DID,
	})
	if code != http.StatusOK {
		t.Fatalf("present: status %d body %s", code, body)
	}
	var box presentation.Box
	if err := json.Unmarshal(body, &box); err != nil {
		t.Fatalf("decoding box: %v", err)
	}
	return box
}

// TestHappyPath covers spec scenario 1: bootstrap, issue, present,
// verify.
func TestHappyPath(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	cred := f.issue(t, "issue-1")
	box := f.present(t, cred, []string{"name"})

	code, body := f.h.do(t, "POST", verifyPath, nil, box)
	if code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", code, body)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result["ok"] != true || result["message"] != "verified OK" {
		t.Fatalf("unexpected verify result: %v", result)
	}
	disclosed, ok := result["disclosed"].(map[string]interface{})
	if !ok || disclosed["name"] != "Alice" {
		t.Fatalf("expected disclosed name Alice, got %v", result["disclosed"])
	}
	if _, ok := disclosed["status"]; ok {
		t.Fatalf("status should not have been disclosed: %v", disclosed)
	}
}

// TestReplayRejected covers spec scenario 2.
func TestReplayRejected(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	cred := f.issue(t, "issue-1")
	box := f.present(t, cred, []string{"name"})

	code, _ := f.h.do(t, "POST", verifyPath, nil, box)
	if code != http.StatusOK {
		t.Fatalf("first verify should succeed, got %d", code)
	}

	code, body := f.h.do(t, "POST", verifyPath, nil, box)
	if code != http.StatusBadRequest {
		t.Fatalf("replayed verify: expected 400, got %d body %s", code, body)
	}
	var errResp map[string]string
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if !bytes.HasPrefix([]byte(errResp["detail"]), []byte("challenge invalid")) {
		t.Fatalf("expected detail to start with 'challenge invalid', got %q", errResp["detail"])
	}
}

// TestRevocationVisibility covers spec scenario 3.
func TestRevocationVisibility(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	cred := f.issue(t, "issue-1")

	code, beforeBody := f.h.do(t, "GET", statusListPath+cred.Status.ListID, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("get statuslist before revoke: status %d", code)
	}

	code, _ = f.h.do(t, "POST", revokePath, nil, revokeRequest{CredID: cred.ID})
	if code != http.StatusOK {
		t.Fatalf("revoke: status %d", code)
	}

	code, afterBody := f.h.do(t, "GET", statusListPath+cred.Status.ListID, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("get statuslist after revoke: status %d", code)
	}
	if string(beforeBody) == string(afterBody) {
		t.Fatalf("expected statuslist data to change after revoke")
	}

	box := f.present(t, cred, []string{"name"})
	code, body := f.h.do(t, "POST", verifyPath, nil, box)
	if code != http.StatusBadRequest {
		t.Fatalf("verify of revoked credential: expected 400, got %d body %s", code, body)
	}
	var errResp map[string]string
	json.Unmarshal(body, &errResp)
	if errResp["detail"] != "credential revoked" {
		t.Fatalf("expected 'credential revoked', got %q", errResp["detail"])
	}
}

// TestMissingIdempotencyHeader covers spec scenario 4.
func TestMissingIdempotencyHeader(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	code, body := f.h.do(t, "POST", issuePath, nil, issueRequest{
		SubjectDID: f.holder.DID,
		Attributes: map[string]interface{}{"name": "Alice"},
	})
	if code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428, got %d body %s", code, body)
	}
	var errResp map[string]string
	json.Unmarshal(body, &errResp)
	if errResp["detail"] != "Idempotency-Key header required" {
		t.Fatalf("unexpected detail: %q", errResp["detail"])
	}
}

// TestOfferSingleUse covers spec scenario 5.
func TestOfferSingleUse(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	code, body := f.h.do(t, "POST", offersPath, nil, offerRequest{
		Challenge: "challenge-123",
		IssuerDID: f.issuer.DID,
		Claims:    map[string]bool{"name": true},
	})
	if code != http.StatusOK {
		t.Fatalf("register offer: status %d body %s", code, body)
	}

	code, body = f.h.do(t, "POST", claimPath, nil, claimRequest{
		Challenge:  "challenge-123",
		HolderDID:  f.holder.DID,
		Attributes: map[string]interface{}{"name": "Alice"},
	})
	if code != http.StatusOK {
		t.Fatalf("first claim: status %d body %s", code, body)
	}

	code, body = f.h.do(t, "POST", claimPath, nil, claimRequest{
		Challenge:  "challenge-123",
		HolderDID:  f.holder.DID,
		Attributes: map[string]interface{}{"name": "Alice"},
	})
	if code != http.StatusNotFound {
		t.Fatalf("second claim: expected 404, got %d body %s", code, body)
	}
}

// TestAdminReset covers spec scenario 6.
func TestAdminReset(t *testing.T) {
	f := newScenarioFixture(t)
	defer f.h.close()

	cred := f.issue(t, "issue-1")
	if cred.Status.Index != 0 {
		t.Fatalf("expected first credential index 0, got %d", cred.Status.Index)
	}

	code, _ := f.h.do(t, "POST", adminResetPath, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("admin reset: status %d", code)
	}

	newHolder := f.h.bootstrap(t, bootstrapHolderPath, "label=Bob")
	newIssuer := f.h.bootstrap(t, bootstrapIssuerPath, "name=Second+University")
	_ = newIssuer

	code, body := f.h.do(t, "POST", issuePath, map[string]string{"Idempotency-Key": "issue-2"}, issueRequest{
		SubjectDID: newHolder.DID,
		Attributes: map[string]interface{}{"name": "Bob"},
	})
	if code != http.StatusOK {
		t.Fatalf("post-reset issue: status %d body %s", code, body)
	}
	var newCred core.Credential
	json.Unmarshal(body, &newCred)
	if newCred.Status.Index != 0 {
		t.Fatalf("expected index to restart at 0 after reset, got %d", newCred.Status.Index)
	}

	code, body = f.h.do(t, "GET", holderCredsPath+newHolder.DID, nil, nil)
	if code != http.StatusOK {
		t.Fatalf("list credentials: status %d body %s", code, body)
	}
	var creds []core.Credential
	if err := json.Unmarshal(body, &creds); err != nil {
		t.Fatalf("decoding credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Fatalf("expected exactly one credential after reset, got %d", len(creds))
	}
}
