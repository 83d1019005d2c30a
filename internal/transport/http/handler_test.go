package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/adapters/ai"
	"github.com/randomtoy/hex-backend/internal/adapters/memory"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
	transporthttp "github.com/randomtoy/hex-backend/internal/transport/http"
	"github.com/randomtoy/hex-backend/internal/transport/ws"
	"github.com/randomtoy/hex-backend/internal/usecase"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	hub := ws.NewHub(zap.NewNop())
	reg := session.NewRegistry(context.Background(), session.Deps{
		Store:       memory.New(),
		Broadcaster: hub,
		AI:          map[ports.SeatKind]ports.AIMoveSource{ports.SeatLocalBot: ai.NewRandomBot(1)},
		Log:         zap.NewNop(),
	}, session.Options{SaveTimeout: time.Second})
	t.Cleanup(reg.Close)

	rl := memory.AlwaysAllow{}
	h := transporthttp.NewHandlers(
		usecase.NewGameCreator(reg, rl, 25),
		usecase.NewGameGetter(reg, rl),
		usecase.NewMoveSubmitter(reg, rl),
		usecase.NewGameActions(reg, rl),
		hub,
	)
	return transporthttp.New(h, nil)
}

func doRequest(t *testing.T, e *echo.Echo, method, path, player string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if player != "" {
		req.Header.Set("X-Player-Id", player)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type gameResp struct {
	GameID        string  `json:"game_id"`
	State         string  `json:"state"`
	Outcome       *string `json:"outcome"`
	Winner        *int    `json:"winner"`
	CurrentPlayer *int    `json:"current_player"`
	Moves         []struct {
		Ply  int    `json:"ply"`
		Move string `json:"move"`
	} `json:"moves"`
	Clocks []struct {
		Running     bool  `json:"running"`
		RemainingMs int64 `json:"remaining_ms"`
	} `json:"clocks"`
	Takeback     *int `json:"takeback_requested_by"`
	StateVersion int  `json:"state_version"`
}

type problemResp struct {
	Status int       `json:"status"`
	Code   string    `json:"code"`
	Game   *gameResp `json:"game"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return out
}

// createGame starts a 5x5 game between alice (player 0) and bob.
func createGame(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := doRequest(t, e, http.MethodPost, "/api/v1/games", "alice", map[string]any{
		"size":       5,
		"allow_swap": true,
		"time_control": map[string]any{
			"kind":         "fischer",
			"initial_ms":   300000,
			"increment_ms": 2000,
			"max_ms":       300000,
		},
		"seats": []map[string]string{{"player_id": "alice"}, {"player_id": "bob"}},
		"start": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[gameResp](t, rec).GameID
}

func play(t *testing.T, e *echo.Echo, gameID, player, mv string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/moves", player, map[string]any{"move": mv})
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t)
	rec := doRequest(t, e, http.MethodGet, "/api/v1/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[map[string]bool](t, rec)
	if !resp["ok"] {
		t.Fatalf("expected ok:true, got %v", resp)
	}
}

func TestMetrics(t *testing.T) {
	e := newTestServer(t)
	rec := doRequest(t, e, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hex_hosted_games") {
		t.Fatal("expected hex_hosted_games in metrics output")
	}
}

func TestCreateGame(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/games/"+gameID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	g := decode[gameResp](t, rec)
	if g.State != "playing" {
		t.Fatalf("state: want playing, got %q", g.State)
	}
	if g.CurrentPlayer == nil || *g.CurrentPlayer != 0 {
		t.Fatalf("current_player: want 0, got %v", g.CurrentPlayer)
	}
	if g.Winner != nil || g.Outcome != nil {
		t.Fatalf("unexpected result: %v %v", g.Winner, g.Outcome)
	}
	if len(g.Clocks) != 2 || !g.Clocks[0].Running || g.Clocks[1].Running {
		t.Fatalf("clocks: %+v", g.Clocks)
	}
}

func TestCreateGame_BadRequests(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games", "", map[string]any{"size": 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing player: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games", "alice", map[string]any{
		"size":         40,
		"time_control": map[string]any{"kind": "unlimited"},
		"seats":        []map[string]string{{"player_id": "alice"}, {"player_id": "bob"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized board: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games", "alice", map[string]any{
		"size":         5,
		"time_control": map[string]any{"kind": "sundial"},
		"seats":        []map[string]string{{"player_id": "alice"}, {"player_id": "bob"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad time control: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetGame_NotFound(t *testing.T) {
	e := newTestServer(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := doRequest(t, e, http.MethodGet, "/api/v1/games/"+id, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", id, rec.Code)
		}
	}
}

func TestSubmitMove_Legal(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)

	rec := play(t, e, gameID, "alice", "c3")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		Accepted bool     `json:"accepted"`
		Game     gameResp `json:"game"`
	}](t, rec)
	if !resp.Accepted {
		t.Fatal("expected accepted:true")
	}
	if len(resp.Game.Moves) != 1 || resp.Game.Moves[0].Move != "c3" {
		t.Fatalf("moves: %+v", resp.Game.Moves)
	}
	if *resp.Game.CurrentPlayer != 1 {
		t.Fatalf("current_player: want 1, got %d", *resp.Game.CurrentPlayer)
	}
	if !resp.Game.Clocks[1].Running || resp.Game.Clocks[0].Running {
		t.Fatalf("clocks should have switched: %+v", resp.Game.Clocks)
	}
}

func TestSubmitMove_Refusals(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)
	if rec := play(t, e, gameID, "alice", "c3"); rec.Code != http.StatusOK {
		t.Fatalf("first move: %d", rec.Code)
	}

	tests := []struct {
		name     string
		player   string
		move     string
		wantCode int
		wantErr  string
	}{
		{"bad format", "bob", "c33x", http.StatusUnprocessableEntity, "invalid_move_format"},
		{"occupied", "bob", "c3", http.StatusUnprocessableEntity, "illegal_move"},
		{"off board", "bob", "f1", http.StatusUnprocessableEntity, "illegal_move"},
		{"not your turn", "alice", "d4", http.StatusConflict, "not_your_turn"},
		{"not a player", "mallory", "d4", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := play(t, e, gameID, tt.player, tt.move)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantErr == "" {
				return
			}
			resp := decode[problemResp](t, rec)
			if resp.Code != tt.wantErr {
				t.Fatalf("code: want %q, got %q", tt.wantErr, resp.Code)
			}
		})
	}

	// refusals that reached the game carry its state
	rec := play(t, e, gameID, "bob", "c3")
	resp := decode[problemResp](t, rec)
	if resp.Game == nil || len(resp.Game.Moves) != 1 {
		t.Fatalf("expected the current game in the problem, got %+v", resp.Game)
	}
}

func TestSubmitMove_VersionMismatch(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/moves", "alice", map[string]any{
		"move":             "a1",
		"expected_version": 99,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[problemResp](t, rec); resp.Code != "version_conflict" {
		t.Fatalf("code: want version_conflict, got %q", resp.Code)
	}
}

func TestResignAndCancel(t *testing.T) {
	e := newTestServer(t)

	gameID := createGame(t, e)
	rec := doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/resign", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resign: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[gameResp](t, rec)
	if g.State != "ended" || g.Outcome == nil || *g.Outcome != "resign" || *g.Winner != 1 {
		t.Fatalf("after resign: %+v", g)
	}

	rec = play(t, e, gameID, "bob", "a1")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("move after end: expected 422, got %d", rec.Code)
	}

	gameID = createGame(t, e)
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/cancel", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	if g := decode[gameResp](t, rec); g.State != "canceled" || g.Winner != nil {
		t.Fatalf("after cancel: %+v", g)
	}
}

func TestPremove(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)
	play(t, e, gameID, "alice", "a1")

	rec := doRequest(t, e, http.MethodPut, "/api/v1/games/"+gameID+"/premove", "alice", map[string]any{"move": "b2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("premove: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, e, http.MethodDelete, "/api/v1/games/"+gameID+"/premove", "alice", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel premove: expected 204, got %d", rec.Code)
	}
	rec = doRequest(t, e, http.MethodDelete, "/api/v1/games/"+gameID+"/premove", "alice", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel twice: expected 409, got %d", rec.Code)
	}

	rec = doRequest(t, e, http.MethodPut, "/api/v1/games/"+gameID+"/premove", "bob", map[string]any{"move": "b2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("premove on own turn: expected 409, got %d", rec.Code)
	}
}

func TestTakeback(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)
	play(t, e, gameID, "alice", "a1")
	play(t, e, gameID, "bob", "b2")

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/takeback", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("request: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if g := decode[gameResp](t, rec); g.Takeback == nil || *g.Takeback != 1 {
		t.Fatalf("takeback_requested_by: %v", g.Takeback)
	}

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/"+gameID+"/takeback/answer", "alice", map[string]any{"accept": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[gameResp](t, rec)
	if len(g.Moves) != 1 || *g.CurrentPlayer != 1 || g.Takeback != nil {
		t.Fatalf("after takeback: %+v", g)
	}
}

func TestSGF(t *testing.T) {
	e := newTestServer(t)
	gameID := createGame(t, e)
	play(t, e, gameID, "alice", "e5")

	rec := doRequest(t, e, http.MethodGet, "/api/v1/games/"+gameID+"/sgf", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-go-sgf" {
		t.Fatalf("content type: %q", ct)
	}
	if body := rec.Body.String(); !strings.HasPrefix(body, "(;FF[4]GM[11]") || !strings.Contains(body, ";B[e5]") {
		t.Fatalf("unexpected sgf: %s", body)
	}
}

func TestWatch(t *testing.T) {
	e := newTestServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()
	gameID := createGame(t, e)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/games/" + gameID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello struct {
		Type string   `json:"type"`
		Game gameResp `json:"game"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if hello.Type != "snapshot" || hello.Game.GameID != gameID {
		t.Fatalf("unexpected snapshot: %+v", hello)
	}

	if rec := play(t, e, gameID, "alice", "c3"); rec.Code != http.StatusOK {
		t.Fatalf("move: %d", rec.Code)
	}

	var ev struct {
		Type      string `json:"type"`
		Move      string `json:"move"`
		MoveIndex int    `json:"move_index"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "move" || ev.Move != "c3" || ev.MoveIndex != 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
