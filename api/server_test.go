package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"protrack/lifecycle"
	"protrack/model"
	"protrack/pricing"
	"protrack/store"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	workers := [][]string{
		{"Sofia", "900", "supervisor", "0.00"},
		{"Carlos", "300", "checker", "0.00"},
		{"Marta", "200", "operator", "0.00"},
		{"João", "100", "general", "0.00"},
	}
	if err := store.Ensure(ctx, m, store.TableWorkers, model.WorkerColumns, workers); err != nil {
		t.Fatalf("seed workers: %v", err)
	}
	if err := store.Ensure(ctx, m, store.TableRules, model.RuleColumns, pricing.DefaultRuleRows()); err != nil {
		t.Fatalf("seed rules: %v", err)
	}
	return NewServer(":0", lifecycle.New(m)).Handler
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	// Checker assigns a repack task.
	w := doJSON(t, h, "POST", "/tasks", map[string]any{
		"actor": "300", "owner": "100", "activity": "REPACK", "area": "Armazém D",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Status != "pending" {
		t.Errorf("status = %s, want pending", created.Status)
	}

	// Owner starts and finishes with package counts.
	if w := doJSON(t, h, "POST", "/tasks/"+created.ID+"/start", map[string]any{"actor": "100"}); w.Code != http.StatusNoContent {
		t.Fatalf("start: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "POST", "/tasks/"+created.ID+"/finish", map[string]any{
		"actor": "100", "qty_can": 10, "qty_pet": 5, "qty_longneck": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var finished struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(w.Body).Decode(&finished); err != nil {
		t.Fatalf("decode finish response: %v", err)
	}
	if finished.Value != "2.15" {
		t.Errorf("value = %s, want 2.15", finished.Value)
	}

	// Checker approves; the owner's balance reflects the credit.
	if w := doJSON(t, h, "POST", "/tasks/"+created.ID+"/approve", map[string]any{"actor": "300"}); w.Code != http.StatusNoContent {
		t.Fatalf("approve: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "GET", "/workers/100/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", w.Code)
	}
	var balance balanceResponse
	if err := json.NewDecoder(w.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Balance != "2.15" {
		t.Errorf("balance = %s, want 2.15", balance.Balance)
	}
}

func TestKPIFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/tasks", map[string]any{
		"actor": "200", "owner": "200", "activity": "EFC", "attained": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("declare: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var declared struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&declared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if declared.Status != "awaiting_validation" {
		t.Errorf("status = %s, want awaiting_validation", declared.Status)
	}

	// Supervisor's pending list shows the declaration.
	w = doJSON(t, h, "GET", "/tasks?actor=900", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var list []taskResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != declared.ID {
		t.Errorf("unexpected pending list: %+v", list)
	}

	if w := doJSON(t, h, "POST", "/tasks/"+declared.ID+"/validate", map[string]any{"actor": "900"}); w.Code != http.StatusNoContent {
		t.Fatalf("validate: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, h, "POST", "/tasks/"+declared.ID+"/override", map[string]any{"actor": "900"}); w.Code != http.StatusNoContent {
		t.Fatalf("override: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/workers/200/balance", nil)
	var balance balanceResponse
	if err := json.NewDecoder(w.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	// 3.85 credited on validate, reversed by the override.
	if balance.Balance != "0.00" {
		t.Errorf("balance = %s, want 0.00", balance.Balance)
	}
}

func TestAdjustmentAndRankingOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/adjustments", map[string]any{
		"actor": "900", "worker": "100", "amount": "12,50", "reason": "acerto semanal",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("adjustment: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/ranking", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ranking: expected 200, got %d", w.Code)
	}
	var ranking []rankingResponse
	if err := json.NewDecoder(w.Body).Decode(&ranking); err != nil {
		t.Fatalf("decode ranking: %v", err)
	}
	if len(ranking) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(ranking))
	}
	if ranking[0].WorkerID != "100" || ranking[0].Balance != "12.50" {
		t.Errorf("leader = %+v, want João at 12.50", ranking[0])
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown actor is forbidden", "GET", "/tasks?actor=999", nil, http.StatusForbidden},
		{"missing actor is a bad request", "GET", "/tasks", nil, http.StatusBadRequest},
		{"unknown task is not found", "POST", "/tasks/nope/start", map[string]any{"actor": "100"}, http.StatusNotFound},
		{"general worker cannot approve", "POST", "/tasks/nope/approve", map[string]any{"actor": "100"}, http.StatusForbidden},
		{"malformed body is a bad request", "POST", "/tasks", "not json at all", http.StatusBadRequest},
		{"non-supervisor cannot adjust", "POST", "/adjustments", map[string]any{"actor": "300", "worker": "100", "amount": "1.00", "reason": "x"}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if s, ok := c.body.(string); ok {
				req := httptest.NewRequest(c.method, c.path, bytes.NewReader([]byte(s)))
				w = httptest.NewRecorder()
				h.ServeHTTP(w, req)
			} else {
				w = doJSON(t, h, c.method, c.path, c.body)
			}
			if w.Code != c.want {
				t.Errorf("expected %d, got %d: %s", c.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestInvalidTransitionMapsToConflict(t *testing.T) {
	h := newTestHandler(t)

	w := doJSON(t, h, "POST", "/tasks", map[string]any{
		"actor": "300", "owner": "100", "activity": "REFUGO",
	})
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = doJSON(t, h, "POST", fmt.Sprintf("/tasks/%s/approve", created.ID), map[string]any{"actor": "300"})
	if w.Code != http.StatusConflict {
		t.Errorf("approving a pending task: expected 409, got %d", w.Code)
	}
}
