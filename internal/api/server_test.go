package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/focal-ai/focal/internal/app/debate"
	"github.com/focal-ai/focal/internal/app/ledger"
	"github.com/focal-ai/focal/internal/app/refine"
	"github.com/focal-ai/focal/internal/domain"
	"github.com/focal-ai/focal/internal/infra/identity"
	"github.com/focal-ai/focal/internal/infra/sqlite"
)

// ─── Test Harness ───────────────────────────────────────────────────────────

const testSecret = "test-secret"

type stubLLM struct {
	err error
}

func (s *stubLLM) Complete(_ context.Context, system, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.HasPrefix(system, "You are an expert product strategist") {
		return "REFINED REQUIREMENTS\n- r1\nTRADE-OFFS\n- t1\nNEXT STEPS\n- n1", nil
	}
	return "an opinion", nil
}

type harness struct {
	handler http.Handler
	db      *sqlite.DB
	ledger  *ledger.Ledger
	llm     *stubLLM
	jwt     *identity.JWTVerifier
}

func setupServer(t *testing.T) *harness {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	llm := &stubLLM{}
	l := ledger.New(db, ledger.DefaultConfig())
	gen := debate.NewGenerator(llm, debate.DefaultConfig())
	orch := debate.NewOrchestrator(gen, debate.DefaultOrchestratorConfig())
	agg := debate.NewAggregator(llm, nil, debate.DefaultConfig())
	rs := refine.New(l, db, orch, agg, nil, refine.DefaultConfig())
	verifier := identity.NewJWTVerifier(testSecret)

	srv := NewServer(l, db, rs, verifier)
	srv.EnableMetrics()
	return &harness{handler: srv.Handler(), db: db, ledger: l, llm: llm, jwt: verifier}
}

func (h *harness) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := h.jwt.Sign(domain.Identity{Email: email, Name: "Test"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, _ := decode(t, w)["error"].(map[string]interface{})
	typ, _ := e["type"].(string)
	return typ
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := setupServer(t)
	w := h.do(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPersonas(t *testing.T) {
	h := setupServer(t)
	w := h.do(t, http.MethodGet, "/api/personas", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if got := len(resp["personas"].([]interface{})); got != 5 {
		t.Errorf("expected 5 personas, got %d", got)
	}
	if resp["refine_cost"] != float64(2) {
		t.Errorf("expected refine_cost=2, got %v", resp["refine_cost"])
	}
}

func TestRefine_Auth(t *testing.T) {
	h := setupServer(t)

	w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"x"}`, "")
	if w.Code != http.StatusUnauthorized || errorType(t, w) != errUnauthorized {
		t.Errorf("no token: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/refine", `{"idea":"x"}`, "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", w.Code)
	}

	other := identity.NewJWTVerifier("other-secret")
	tok, _ := other.Sign(domain.Identity{Email: "eve@example.com"}, time.Hour)
	w = h.do(t, http.MethodPost, "/api/refine", `{"idea":"x"}`, tok)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("foreign token: expected 401, got %d", w.Code)
	}
}

func TestRefine_Success(t *testing.T) {
	h := setupServer(t)
	tok := h.token(t, "ada@example.com")

	w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"A recipe planner"}`, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["updated_balance"] != float64(8) {
		t.Errorf("expected updated_balance=8, got %v", resp["updated_balance"])
	}
	if resp["refined_requirements"] != "- r1" || resp["trade_offs"] != "- t1" || resp["next_steps"] != "- n1" {
		t.Errorf("unexpected sections: %v", resp)
	}
	if got := len(resp["debate_log"].([]interface{})); got != 10 {
		t.Errorf("expected 10 debate turns, got %d", got)
	}
	if resp["idea_id"] == "" {
		t.Error("expected idea_id")
	}
}

func TestRefine_Validation(t *testing.T) {
	h := setupServer(t)
	tok := h.token(t, "ada@example.com")

	for _, body := range []string{`{"idea":"   "}`, `{"idea":`, `{}`} {
		w := h.do(t, http.MethodPost, "/api/refine", body, tok)
		if w.Code != http.StatusBadRequest || errorType(t, w) != errValidation {
			t.Errorf("body %s: got %d %s", body, w.Code, w.Body.String())
		}
	}
	bal, _ := h.ledger.GetBalance(context.Background(), "ada@example.com")
	if bal != 10 {
		t.Errorf("expected balance 10, got %d", bal)
	}
}

func TestRefine_InsufficientCredits(t *testing.T) {
	h := setupServer(t)
	tok := h.token(t, "ada@example.com")
	h.do(t, http.MethodGet, "/api/users/me", "", tok)
	if _, err := h.ledger.Debit(context.Background(), "ada@example.com", 9, "drain"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"x"}`, tok)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	e := decode(t, w)["error"].(map[string]interface{})
	if e["type"] != errInsufficient || e["required"] != float64(2) || e["available"] != float64(1) {
		t.Errorf("unexpected error body: %v", e)
	}
}

func TestRefine_UpstreamFailureRefunds(t *testing.T) {
	h := setupServer(t)
	h.llm.err = &domain.UpstreamError{Op: "chat completion", Err: errors.New("status 500")}
	tok := h.token(t, "ada@example.com")

	w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"x"}`, tok)
	if w.Code != http.StatusBadGateway || errorType(t, w) != errUpstream {
		t.Fatalf("expected 502 upstream_error, got %d %s", w.Code, w.Body.String())
	}
	bal, _ := h.ledger.GetBalance(context.Background(), "ada@example.com")
	if bal != 10 {
		t.Errorf("expected refunded balance 10, got %d", bal)
	}
}

func TestHistory(t *testing.T) {
	h := setupServer(t)
	ada := h.token(t, "ada@example.com")
	bob := h.token(t, "bob@example.com")

	for _, idea := range []string{"first", "second", "third"} {
		if w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"`+idea+`"}`, ada); w.Code != http.StatusOK {
			t.Fatalf("refine: %d", w.Code)
		}
	}

	w := h.do(t, http.MethodGet, "/api/history?limit=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	items := resp["history"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["title"] != "third" || first["debate_count"] != float64(10) {
		t.Errorf("unexpected first item: %v", first)
	}

	if w := h.do(t, http.MethodGet, "/api/history?user=scoped", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("scoped without auth: expected 401, got %d", w.Code)
	}

	w = h.do(t, http.MethodGet, "/api/history?user=scoped", "", bob)
	if got := decode(t, w)["count"]; got != float64(0) {
		t.Errorf("bob scoped count = %v, want 0", got)
	}
	w = h.do(t, http.MethodGet, "/api/history?user=scoped", "", ada)
	if got := decode(t, w)["count"]; got != float64(3) {
		t.Errorf("ada scoped count = %v, want 3", got)
	}

	for _, q := range []string{"limit=0", "limit=abc", "limit=-3"} {
		if w := h.do(t, http.MethodGet, "/api/history?"+q, "", ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestIdeaDetails(t *testing.T) {
	h := setupServer(t)
	tok := h.token(t, "ada@example.com")

	w := h.do(t, http.MethodPost, "/api/refine", `{"idea":"A recipe planner"}`, tok)
	id := decode(t, w)["idea_id"].(string)

	w = h.do(t, http.MethodGet, "/api/idea/"+id, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	rounds := resp["debate_rounds"].([]interface{})
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if resp["requirement"] == nil {
		t.Error("expected requirement")
	}

	w = h.do(t, http.MethodGet, "/api/idea/does-not-exist", "", "")
	if w.Code != http.StatusNotFound || errorType(t, w) != errNotFound {
		t.Errorf("expected 404 not_found, got %d %s", w.Code, w.Body.String())
	}
}

func TestUsersMe(t *testing.T) {
	h := setupServer(t)
	tok := h.token(t, "ada@example.com")

	w := h.do(t, http.MethodGet, "/api/users/me", "", tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["email"] != "ada@example.com" || resp["credits"] != float64(10) {
		t.Errorf("unexpected profile: %v", resp)
	}

	w = h.do(t, http.MethodGet, "/api/users/me/transactions", "", tok)
	txs := decode(t, w)["transactions"].([]interface{})
	if len(txs) != 1 || txs[0].(map[string]interface{})["kind"] != "initial" {
		t.Errorf("unexpected transactions: %v", txs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupServer(t)
	w := h.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "focal_") {
		t.Error("expected focal metrics in exposition")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := setupServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/refine", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
