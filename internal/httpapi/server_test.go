package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kestrelworks/nervecenter/internal/nervous"
	"github.com/kestrelworks/nervecenter/internal/record"
)

func testRouter(t *testing.T) (*gin.Engine, *nervous.System) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sys, err := nervous.Open(nervous.Options{
		JournalPath: filepath.Join(t.TempDir(), "nerve.jsonl"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sys.Close() })
	return NewRouter(sys), sys
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestActorLifecycle(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/actors", map[string]any{
		"name": "probe-agent", "type": "agent",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	a := decode[record.Actor](t, w)

	w = doJSON(t, r, http.MethodGet, "/api/v1/actors/"+a.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get actor: expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/actors/absent", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing actor: expected 404, got %d", w.Code)
	}
}

func TestEventEndpointsAndErrorMapping(t *testing.T) {
	r, _ := testRouter(t)

	a := decode[record.Actor](t, doJSON(t, r, http.MethodPost, "/api/v1/actors", map[string]any{"name": "writer"}))

	// Unknown actor reference → 422.
	w := doJSON(t, r, http.MethodPost, "/api/v1/events", map[string]any{"actorId": "ghost"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown actor: expected 422, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/events", map[string]any{
		"actorId": a.ID,
		"intent":  map[string]any{"goal": "reduce latency", "confidence": 0.8},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record event: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	ev := decode[record.UniversalEvent](t, w)
	if ev.Version != 1 || ev.Intent == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}

	w = doJSON(t, r, http.MethodPatch, "/api/v1/events/"+ev.ID, map[string]any{
		"readout": map[string]any{"payoff": 0.9, "success": true},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update event: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	updated := decode[record.UniversalEvent](t, w)
	if updated.Version != 2 || updated.Readout == nil {
		t.Fatalf("unexpected updated event: %+v", updated)
	}

	w = doJSON(t, r, http.MethodPatch, "/api/v1/events/absent", map[string]any{})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing event: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/events?actorId="+a.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query events: expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/events?start=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad time: expected 400, got %d", w.Code)
	}
}

func TestPermissionDenied(t *testing.T) {
	r, _ := testRouter(t)
	a := decode[record.Actor](t, doJSON(t, r, http.MethodPost, "/api/v1/actors", map[string]any{
		"name": "observer", "permissions": []string{"read"},
	}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/events", map[string]any{"actorId": a.ID})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHypothesisAndConsensusEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/hypotheses", map[string]any{
		"modelType": "me", "description": "caching helps", "probability": 0.8,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create hypothesis: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	h1 := decode[record.Hypothesis](t, w)

	h2 := decode[record.Hypothesis](t, doJSON(t, r, http.MethodPost, "/api/v1/hypotheses", map[string]any{
		"modelType": "we", "description": "caching helps", "probability": 0.6,
	}))

	w = doJSON(t, r, http.MethodGet, "/api/v1/consensus?ids="+h1.ID+","+h2.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("consensus: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	out := decode[map[string]any](t, w)
	if got := out["consensus"].(float64); got < 0.699 || got > 0.701 {
		t.Fatalf("expected consensus 0.7, got %v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/hypotheses?model=me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list by model: expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/hypotheses?model=unknownkind", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad model: expected 400, got %d", w.Code)
	}

	// Falsification endpoint.
	hf := decode[record.Hypothesis](t, doJSON(t, r, http.MethodPost, "/api/v1/hypotheses", map[string]any{
		"modelType": "system", "description": "never stale", "falsifiers": []string{"stale seen"},
	}))
	w = doJSON(t, r, http.MethodPost, "/api/v1/hypotheses/"+hf.ID+"/falsifiers/0", map[string]any{"result": true})
	if w.Code != http.StatusOK {
		t.Fatalf("falsify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	falsified := decode[record.Hypothesis](t, w)
	if !falsified.Falsified() {
		t.Fatal("expected hypothesis falsified")
	}
}

func TestTestEndpointsAndAudit(t *testing.T) {
	r, _ := testRouter(t)

	h := decode[record.Hypothesis](t, doJSON(t, r, http.MethodPost, "/api/v1/hypotheses", map[string]any{
		"modelType": "me", "description": "claim",
	}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/tests", map[string]any{
		"name": "cache test", "hypothesisId": h.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create test: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	to := decode[record.TestObject](t, w)

	w = doJSON(t, r, http.MethodPost, "/api/v1/tests/"+to.ID+"/results", map[string]any{
		"passed": true, "measurements": map[string]any{"ms": 85},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record result: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	cur := decode[record.TestObject](t, doJSON(t, r, http.MethodGet, "/api/v1/tests/"+to.ID, nil))
	if cur.SuccessRate() != 1.0 {
		t.Fatalf("expected success rate 1.0, got %f", cur.SuccessRate())
	}

	// Unknown hypothesis → 404.
	w = doJSON(t, r, http.MethodPost, "/api/v1/tests", map[string]any{
		"name": "orphan", "hypothesisId": "absent",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	// Audit trail across record types.
	w = doJSON(t, r, http.MethodGet, "/api/v1/audit/"+h.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", w.Code)
	}
	trail := decode[map[string]any](t, w)
	// v1 + link version from test creation
	if int(trail["count"].(float64)) != 2 {
		t.Fatalf("expected 2 audit entries, got %v", trail["count"])
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/audit/never-written", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("empty audit: expected 404, got %d", w.Code)
	}
}

func TestStatsAndVerifyEndpoints(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/actors", map[string]any{"name": "a"})

	w := doJSON(t, r, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	st := decode[nervous.Stats](t, w)
	if st.TotalActors != 1 {
		t.Fatalf("expected 1 actor, got %d", st.TotalActors)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/verify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}
}
