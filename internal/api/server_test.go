package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"japa/internal/auth"
	"japa/internal/chant"
	"japa/internal/config"
	"japa/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.APIConfig{Addr: ":0", JWTSecret: "test-secret", TokenTTL: time.Hour}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	mem := store.NewMemory()
	svc := chant.NewService(mem, nil, nil)
	srv := New(cfg, nil, tokens, svc, nil, mem)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func signup(t *testing.T, ts *httptest.Server, name, email string) string {
	t.Helper()
	resp, out := doJSON(t, ts, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "secret123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %v", resp.StatusCode, out)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("signup returned no token: %v", out)
	}
	return token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, out := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, out)
	}
}

func TestSignupLoginAndChant(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")

	resp, out := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "ram@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, out)
	}

	resp, out = doJSON(t, ts, http.MethodPost, "/v1/chants", token, map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chant status %d: %v", resp.StatusCode, out)
	}
	if out["coins"] != float64(1) || out["total_chants"] != float64(1) {
		t.Fatalf("unexpected chant response: %v", out)
	}
	if out["rupees"] != "0.01" {
		t.Fatalf("rupees %v, want 0.01", out["rupees"])
	}
	unlocked, _ := out["unlocked"].([]any)
	if len(unlocked) != 1 {
		t.Fatalf("expected first chant unlock, got %v", out["unlocked"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "Ram", "ram@example.com")
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    "ram@example.com",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestDuplicateSignup(t *testing.T) {
	ts := newTestServer(t)
	signup(t, ts, "Ram", "ram@example.com")
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"name":     "Other",
		"email":    "ram@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409", resp.StatusCode)
	}
}

func TestChantRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/chants", "", map[string]any{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/chants", "not-a-token", map[string]any{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d, want 401", resp.StatusCode)
	}
}

func TestChantInvalidConfidence(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/chants", token, map[string]any{"confidence": 1.5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}

	// Boundary values are valid.
	for _, v := range []float64{0, 1} {
		resp, out := doJSON(t, ts, http.MethodPost, "/v1/chants", token, map[string]any{"confidence": v})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("confidence %v status %d: %v", v, resp.StatusCode, out)
		}
	}
}

func TestWithdrawInsufficient(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/wallet/withdraw", token, map[string]any{"amount": 100})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestLeaderboardAndProfile(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")

	for i := 0; i < 3; i++ {
		resp, out := doJSON(t, ts, http.MethodPost, "/v1/chants", token, map[string]any{})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chant %d status %d: %v", i, resp.StatusCode, out)
		}
	}

	resp, out := doJSON(t, ts, http.MethodGet, "/v1/leaderboard?period=all", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard status %d: %v", resp.StatusCode, out)
	}
	if out["caller_rank"] != float64(1) {
		t.Fatalf("caller_rank %v, want 1", out["caller_rank"])
	}

	resp, out = doJSON(t, ts, http.MethodGet, "/v1/user/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status %d: %v", resp.StatusCode, out)
	}
	stats, _ := out["stats"].(map[string]any)
	if stats == nil || stats["chant_count"] != float64(3) {
		t.Fatalf("profile stats %v", out["stats"])
	}

	resp, out = doJSON(t, ts, http.MethodGet, "/v1/chants/history?page=1&limit=2", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %v", resp.StatusCode, out)
	}
	if out["total_pages"] != float64(2) || out["total_chants"] != float64(3) {
		t.Fatalf("history paging %v", out)
	}
}

func TestLeaderboardInvalidPeriod(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")
	resp, _ := doJSON(t, ts, http.MethodGet, "/v1/leaderboard?period=year", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestUpdateProfileKeepsBlankFields(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")

	resp, out := doJSON(t, ts, http.MethodPut, "/v1/user/profile", token, map[string]any{"bio": "Jai Shri Ram"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %v", resp.StatusCode, out)
	}
	if out["name"] != "Ram" || out["bio"] != "Jai Shri Ram" {
		t.Fatalf("unexpected account after update: %v", out)
	}
}

func TestTransactionsFilter(t *testing.T) {
	ts := newTestServer(t)
	token := signup(t, ts, "Ram", "ram@example.com")

	resp, out := doJSON(t, ts, http.MethodPost, "/v1/chants", token, map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chant status %d: %v", resp.StatusCode, out)
	}

	path := fmt.Sprintf("/v1/transactions?kind=%s", store.KindChantReward)
	resp, out = doJSON(t, ts, http.MethodGet, path, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transactions status %d: %v", resp.StatusCode, out)
	}
	if out["total"] != float64(1) {
		t.Fatalf("total %v, want 1", out["total"])
	}

	resp, out = doJSON(t, ts, http.MethodGet, "/v1/transactions?kind=withdrawal", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transactions status %d: %v", resp.StatusCode, out)
	}
	if out["total"] != float64(0) {
		t.Fatalf("filtered total %v, want 0", out["total"])
	}
}
