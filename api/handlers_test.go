/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- Bearer token gate (401 without or with a bad token)
- Error mapping: 400 validation bodies, 403 denials, 404 tenancy, 409 transitions
- Happy paths through farm creation, hiring and the shift chain
- CSV report rendering
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/acrefield/farm-engine/engine"
	"github.com/acrefield/farm-engine/farm"
	"github.com/acrefield/farm-engine/farm/store"
)

const testSecret = "handlers-test-secret"

type testAPI struct {
	router http.Handler
	tokens *TokenManager
	store  *store.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mem := store.NewMemory()
	clock := &engine.FixedClock{At: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)}
	svc := farm.NewServices(mem, zap.NewNop(), nil, clock)
	tokens := NewTokenManager(testSecret, "")
	h := NewHandler(svc, zap.NewNop())
	return &testAPI{
		router: NewRouter(h, tokens, RouterConfig{EnableDemoSeed: true}),
		tokens: tokens,
		store:  mem,
	}
}

// do issues a request as the given user and decodes the JSON response.
func (a *testAPI) do(t *testing.T, user engine.UserID, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		token, err := a.tokens.Issue(user, time.Hour)
		if err != nil {
			t.Fatalf("issuing token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		raw := rec.Body.Bytes()
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			json.Unmarshal(raw, &decoded)
		}
	}
	return rec, decoded
}

func (a *testAPI) doList(t *testing.T, user engine.UserID, path string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	rec, _ := a.do(t, user, http.MethodGet, path, nil)
	var list []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &list)
	return rec, list
}

// createFarm makes a farm owned by user and returns its id.
func (a *testAPI) createFarm(t *testing.T, user engine.UserID, name string) string {
	t.Helper()
	rec, body := a.do(t, user, http.MethodPost, "/api/farms", map[string]any{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create farm: status %d, body %s", rec.Code, rec.Body.String())
	}
	return body["id"].(string)
}

func (a *testAPI) hireWorker(t *testing.T, user engine.UserID, farmID, name string) string {
	t.Helper()
	rec, body := a.do(t, user, http.MethodPost, "/api/farms/"+farmID+"/workers", map[string]any{
		"name": name, "hourlyRate": 18.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("hire worker: status %d, body %s", rec.Code, rec.Body.String())
	}
	return body["id"].(string)
}

// =============================================================================
// AUTH GATE
// =============================================================================

func TestAPI_MissingTokenIs401(t *testing.T) {
	// GIVEN: A request with no Authorization header
	a := newTestAPI(t)

	// WHEN: Any API route is hit
	rec, body := a.do(t, "", http.MethodPost, "/api/farms", map[string]any{"name": "North Field"})

	// THEN: 401 with an error body
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestAPI_GarbageTokenIs401(t *testing.T) {
	a := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/farms/f/workers", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAPI_HealthzIsPublic(t *testing.T) {
	a := newTestAPI(t)

	rec, body := a.do(t, "", http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_ValidationFailureIs400WithViolations(t *testing.T) {
	// GIVEN: An owner hiring with a blank name and a negative rate
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")

	// WHEN: The invalid payload is posted
	rec, body := a.do(t, "user-own", http.MethodPost, "/api/farms/"+farmID+"/workers", map[string]any{
		"name": "  ", "hourlyRate": -3,
	})

	// THEN: 400 and the body lists every violation
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	violations, ok := body["violations"].([]any)
	if !ok || len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %v", body["violations"])
	}
}

func TestAPI_ForbiddenIs403(t *testing.T) {
	// GIVEN: A viewer on the farm
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")
	rec, _ := a.do(t, "user-own", http.MethodPost, "/api/farms/"+farmID+"/members", map[string]any{
		"userId": "user-vi", "role": "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add member: status %d", rec.Code)
	}

	// WHEN: The viewer tries to hire
	rec, _ = a.do(t, "user-vi", http.MethodPost, "/api/farms/"+farmID+"/workers", map[string]any{
		"name": "Jo Field", "hourlyRate": 18.0,
	})

	// THEN: 403
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAPI_ForeignFarmStaysInvisible(t *testing.T) {
	// GIVEN: Two farms with different owners
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")
	a.hireWorker(t, "user-own", farmID, "Jo Field")
	rivalID := a.createFarm(t, "user-rival", "Rival Ranch")

	// WHEN: The rival owner reads the other farm's workers through their own farm id
	rec, list := a.doList(t, "user-rival", "/api/farms/"+rivalID+"/workers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(list) != 0 {
		t.Errorf("expected no visible workers, got %d", len(list))
	}

	// AND: Probing the foreign farm directly reads as not a member
	rec, _ = a.doList(t, "user-rival", "/api/farms/"+farmID+"/workers")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign farm, got %d", rec.Code)
	}
}

func TestAPI_IllegalTransitionIs409WithStates(t *testing.T) {
	// GIVEN: A freshly scheduled shift
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")
	workerID := a.hireWorker(t, "user-own", farmID, "Jo Field")
	rec, shift := a.do(t, "user-own", http.MethodPost, "/api/farms/"+farmID+"/shifts", map[string]any{
		"workerId": workerID, "date": "2026-04-07", "hours": 8, "duty": "harvest",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("schedule: status %d, body %s", rec.Code, rec.Body.String())
	}
	shiftID := shift["id"].(string)

	// WHEN: The owner tries to complete it without submit/confirm
	rec, body := a.do(t, "user-own", http.MethodPost,
		fmt.Sprintf("/api/farms/%s/shifts/%s/complete", farmID, shiftID), nil)

	// THEN: 409 with both states in the body
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	tr, ok := body["transition"].(map[string]any)
	if !ok {
		t.Fatalf("expected transition detail, got %v", body)
	}
	if tr["current"] != "scheduled" || tr["attempted"] != "completed" {
		t.Errorf("unexpected transition detail: %v", tr)
	}
}

func TestAPI_CancelShiftBodyIsOptionalButMustParse(t *testing.T) {
	// GIVEN: A shift submitted for approval
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")
	workerID := a.hireWorker(t, "user-own", farmID, "Jo Field")
	_, shift := a.do(t, "user-own", http.MethodPost, "/api/farms/"+farmID+"/shifts", map[string]any{
		"workerId": workerID, "date": "2026-04-07", "hours": 8, "duty": "harvest",
	})
	shiftID := shift["id"].(string)
	if rec, _ := a.do(t, "user-own", http.MethodPost,
		fmt.Sprintf("/api/farms/%s/shifts/%s/submit", farmID, shiftID), nil); rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d", rec.Code)
	}
	cancelPath := fmt.Sprintf("/api/farms/%s/shifts/%s/cancel", farmID, shiftID)

	// WHEN: Cancel arrives with a body that is not JSON
	token, err := a.tokens.Issue("user-own", time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, cancelPath, strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	// THEN: 400, and the shift did not move
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	if rec, list := a.doList(t, "user-own", "/api/farms/"+farmID+"/shifts?status=pending_approval"); rec.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected the shift to stay pending_approval, got %d rows (status %d)", len(list), rec.Code)
	}

	// AND: Cancel with no body at all still succeeds
	rec2, body := a.do(t, "user-own", http.MethodPost, cancelPath, nil)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 for bodyless cancel, got %d: %s", rec2.Code, rec2.Body.String())
	}
	if body["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %v", body["status"])
	}
}

func TestAPI_UnknownRecordIs404(t *testing.T) {
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")

	rec, _ := a.do(t, "user-own", http.MethodPost,
		"/api/farms/"+farmID+"/shifts/shift-ghost/confirm", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// HAPPY PATHS
// =============================================================================

func TestAPI_ShiftChainEndsCompleted(t *testing.T) {
	// GIVEN: A scheduled shift
	a := newTestAPI(t)
	farmID := a.createFarm(t, "user-own", "Acre Field")
	workerID := a.hireWorker(t, "user-own", farmID, "Jo Field")
	_, shift := a.do(t, "user-own", http.MethodPost, "/api/farms/"+farmID+"/shifts", map[string]any{
		"workerId": workerID, "date": "2026-04-07", "hours": 8, "duty": "harvest",
	})
	shiftID := shift["id"].(string)

	// WHEN: It walks submit -> confirm -> complete
	base := fmt.Sprintf("/api/farms/%s/shifts/%s", farmID, shiftID)
	for _, step := range []string{"submit", "confirm", "complete"} {
		rec, _ := a.do(t, "user-own", http.MethodPost, base+"/"+step, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", step, rec.Code, rec.Body.String())
		}
	}

	// THEN: The final state carries the stamps and a bumped version
	rec, list := a.doList(t, "user-own", "/api/farms/"+farmID+"/shifts?status=completed")
	if rec.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one completed shift, got %d (status %d)", len(list), rec.Code)
	}
	got := list[0]
	if got["approvedBy"] != "user-own" {
		t.Errorf("expected approvedBy user-own, got %v", got["approvedBy"])
	}
	if got["completedAt"] == nil {
		t.Error("expected completedAt to be stamped")
	}
	if got["version"].(float64) != 4 {
		t.Errorf("expected version 4 after three transitions, got %v", got["version"])
	}
}

func TestAPI_LaborReportCSV(t *testing.T) {
	// GIVEN: A demo farm with completed work
	a := newTestAPI(t)
	rec, seeded := a.do(t, "user-own", http.MethodPost, "/api/seed/demo", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed: status %d, body %s", rec.Code, rec.Body.String())
	}
	farmID := seeded["id"].(string)

	// WHEN: The labor report is requested as CSV
	path := fmt.Sprintf("/api/farms/%s/reports/labor?from=2026-08-01&to=2026-08-31&format=csv", farmID)
	recCSV, _ := a.do(t, "user-own", http.MethodGet, path, nil)

	// THEN: text/csv with a header row and a totals row
	if recCSV.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recCSV.Code, recCSV.Body.String())
	}
	if ct := recCSV.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(recCSV.Body.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected header plus rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "workerId,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "total,") {
		t.Errorf("expected totals row last, got: %s", lines[len(lines)-1])
	}
}

func TestAPI_DemoSeedBuildsWholeFarm(t *testing.T) {
	// GIVEN: The demo seed has run
	a := newTestAPI(t)
	rec, body := a.do(t, "user-own", http.MethodPost, "/api/seed/demo", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed: status %d, body %s", rec.Code, rec.Body.String())
	}
	farmID := body["id"].(string)

	// THEN: The seeded records are visible through the API
	if rec, list := a.doList(t, "user-own", "/api/farms/"+farmID+"/workers"); rec.Code != http.StatusOK || len(list) != 2 {
		t.Errorf("expected 2 workers, got %d (status %d)", len(list), rec.Code)
	}
	if rec, list := a.doList(t, "user-own", "/api/farms/"+farmID+"/timeoff/pending"); rec.Code != http.StatusOK || len(list) != 1 {
		t.Errorf("expected 1 pending request, got %d (status %d)", len(list), rec.Code)
	}
	if rec, list := a.doList(t, "user-own", "/api/farms/"+farmID+"/alerts"); rec.Code != http.StatusOK || len(list) != 1 {
		t.Errorf("expected 1 efficiency alert, got %d (status %d)", len(list), rec.Code)
	}
}
