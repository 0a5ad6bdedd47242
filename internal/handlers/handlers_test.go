package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KiwifruitDev/arkham-revived/internal/identity"
	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/KiwifruitDev/arkham-revived/internal/scheduler"
	"github.com/KiwifruitDev/arkham-revived/internal/storage"
	"github.com/KiwifruitDev/arkham-revived/internal/workflow"
)

type stubLegacy struct{}

func (stubLegacy) ExchangeToken(context.Context, string, string) (string, error) {
	return "tok", nil
}
func (stubLegacy) FetchAccount(context.Context, string) (string, error) { return "legacy-1", nil }
func (stubLegacy) FetchPrivateProfile(context.Context, string, string) (map[string]any, error) {
	return map[string]any{"accountXp": float64(100)}, nil
}

type testEnv struct {
	router *gin.Engine
	users  *storage.MemStore
	boards *storage.MemBoardStore
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := storage.NewMemStore()
	boards := storage.NewMemBoardStore()
	engine := leaderboard.NewEngine(boards, leaderboard.Event{}, nil)
	deriver, err := identity.NewDeriver("test-key")
	if err != nil {
		t.Fatalf("NewDeriver: %v", err)
	}
	service := workflow.NewService(workflow.Deps{
		Users:        users,
		Boards:       engine,
		Queue:        scheduler.NewQueue(),
		Legacy:       stubLegacy{},
		MigrateDelay: 2 * time.Minute,
		DeleteDelay:  5 * time.Minute,
		CancelWindow: 2 * time.Minute,
	})

	router := gin.New()
	New(identity.NewResolver(deriver, users, ""), users, engine, service, nil).Register(router)
	return &testEnv{router: router, users: users, boards: boards}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
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
	e.router.ServeHTTP(w, req)
	return w
}

func TestResolveAccountCreatesAndReturns(t *testing.T) {
	env := newEnv(t)

	w := env.do(t, http.MethodPost, "/v1/accounts/resolve", map[string]string{
		"ticket": "ticket-1", "persona": "batfan",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp struct {
		UUID    string `json:"uuid"`
		Persona string `json:"persona"`
		State   string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.UUID == "" || resp.Persona != "batfan" || resp.State != "idle" {
		t.Fatalf("unexpected response %+v", resp)
	}

	again := env.do(t, http.MethodPost, "/v1/accounts/resolve", map[string]string{"ticket": "ticket-1"})
	var second struct {
		UUID string `json:"uuid"`
	}
	json.Unmarshal(again.Body.Bytes(), &second)
	if second.UUID != resp.UUID {
		t.Fatalf("same ticket resolved differently: %s != %s", second.UUID, resp.UUID)
	}
}

func TestResolveAccountRequiresTicket(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodPost, "/v1/accounts/resolve", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodGet, "/v1/accounts/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPutSaveFeedsLeaderboard(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.users.Create(ctx, &storage.UserRecord{UUID: "u1"})
	env.boards.Upsert(ctx, leaderboard.Entry{
		UUID: "u1", Pool: leaderboard.PoolOfficial, Stats: leaderboard.Stats{AccountXP: 100},
	})

	w := env.do(t, http.MethodPut, "/v1/accounts/u1/save", map[string]any{"accountXp": 500})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body)
	}

	rec, _ := env.users.Get(ctx, "u1")
	if !bytes.Contains(rec.SaveData, []byte(`"accountXp":500`)) {
		t.Fatalf("save not stored: %s", rec.SaveData)
	}
	stats, ok, _ := env.boards.Get(ctx, "u1", leaderboard.PoolRevived)
	if !ok || stats.AccountXP != 400 {
		t.Fatalf("expected revived 400, got ok=%v stats=%+v", ok, stats)
	}
}

func TestPutSaveUnknownAccount(t *testing.T) {
	env := newEnv(t)
	w := env.do(t, http.MethodPut, "/v1/accounts/nope/save", map[string]any{"accountXp": 1})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestMigrationAndDeletionEndpoints(t *testing.T) {
	env := newEnv(t)
	env.users.Create(context.Background(), &storage.UserRecord{UUID: "u1"})

	w := env.do(t, http.MethodPost, "/v1/accounts/u1/migrate", map[string]string{
		"credentials": "creds", "ticket": "ticket",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body)
	}
	var resp statusResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != string(workflow.StatusMigrationStarted) {
		t.Fatalf("expected migration started, got %s", resp.Status)
	}

	w = env.do(t, http.MethodPost, "/v1/accounts/u1/delete", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != string(workflow.StatusDeclinedMigrationPending) {
		t.Fatalf("expected declined while migrating, got %s", resp.Status)
	}
}

func TestPersistentAndDiscordEndpoints(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.users.Create(ctx, &storage.UserRecord{UUID: "u1"})

	if w := env.do(t, http.MethodPut, "/v1/accounts/u1/persistent", map[string]bool{"persistent": true}); w.Code != http.StatusNoContent {
		t.Fatalf("persistent: expected 204, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPut, "/v1/accounts/u1/discord", map[string]string{"discord_id": "d-1"}); w.Code != http.StatusNoContent {
		t.Fatalf("discord: expected 204, got %d", w.Code)
	}

	rec, _ := env.users.Get(ctx, "u1")
	if !rec.Persistent || rec.DiscordID != "d-1" {
		t.Fatalf("updates not applied: %+v", rec)
	}
}
