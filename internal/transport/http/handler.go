package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
	"github.com/randomtoy/hex-backend/internal/usecase"
)

const playerHeader = "X-Player-Id"

type seatJSON struct {
	PlayerID string `json:"player_id,omitempty"`
	Bot      string `json:"bot,omitempty"`
}

type moveJSON struct {
	Ply      int       `json:"ply"`
	Move     string    `json:"move"`
	PlayedAt time.Time `json:"played_at"`
}

// gameJSON is the wire representation of a hosted game.
type gameJSON struct {
	GameID        string                   `json:"game_id"`
	Size          int                      `json:"size"`
	AllowSwap     bool                     `json:"allow_swap"`
	TimeControl   timecontrol.Config       `json:"time_control"`
	Seats         [2]seatJSON              `json:"seats"`
	State         string                   `json:"state"`
	Outcome       *string                  `json:"outcome"`
	Winner        *int                     `json:"winner"`
	CurrentPlayer *int                     `json:"current_player"`
	Moves         []moveJSON               `json:"moves"`
	Clocks        [2]timecontrol.TimeValue `json:"clocks"`
	Takeback      *int                     `json:"takeback_requested_by"`
	StateVersion  int                      `json:"state_version"`
	CreatedAt     time.Time                `json:"created_at"`
	StartedAt     *time.Time               `json:"started_at"`
	EndedAt       *time.Time               `json:"ended_at"`
}

func toGameJSON(v session.View) *gameJSON {
	out := &gameJSON{
		GameID:        v.ID.String(),
		Size:          v.Config.Size,
		AllowSwap:     v.Config.AllowSwap,
		TimeControl:   v.Config.TimeControl,
		State:         string(v.State),
		Winner:        playerPtr(v.Winner),
		CurrentPlayer: playerPtr(v.CurrentPlayer),
		Moves:         make([]moveJSON, len(v.Moves)),
		Clocks:        v.Clocks,
		Takeback:      playerPtr(v.Takeback),
		StateVersion:  v.Version,
		CreatedAt:     v.CreatedAt,
		StartedAt:     timePtr(v.StartedAt),
		EndedAt:       timePtr(v.EndedAt),
	}
	if v.Outcome != "" {
		s := string(v.Outcome)
		out.Outcome = &s
	}
	for i, s := range v.Seats {
		out.Seats[i] = seatJSON{PlayerID: s.PlayerID, Bot: string(s.Kind)}
	}
	for i, m := range v.Moves {
		out.Moves[i] = moveJSON{Ply: i, Move: m.Move, PlayedAt: m.PlayedAt}
	}
	return out
}

// gameOrNil attaches v to error responses only when it was actually read.
func gameOrNil(v session.View) *gameJSON {
	if v.ID == uuid.Nil {
		return nil
	}
	return toGameJSON(v)
}

func playerPtr(p int) *int {
	if p < 0 {
		return nil
	}
	return &p
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// client reads the caller identity. X-Player-Id is optional here; usecases
// reject anonymous callers where a seat is needed.
func client(c echo.Context) usecase.Client {
	return usecase.Client{
		IP:       c.RealIP(),
		Token:    c.Request().Header.Get("X-Client-Token"),
		PlayerID: c.Request().Header.Get(playerHeader),
	}
}

// requirePlayer returns the caller identity or writes a 400 when the
// X-Player-Id header is missing.
func requirePlayer(c echo.Context) (usecase.Client, bool, error) {
	cl := client(c)
	if cl.PlayerID == "" {
		return cl, false, c.JSON(http.StatusBadRequest, Problem{
			Type:   errBase + "/missing-player-id",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: playerHeader + " header is required.",
		})
	}
	return cl, true, nil
}

func gameID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("game_id"))
	if err != nil {
		return uuid.Nil, ports.ErrNotFound
	}
	return id, nil
}

// Handlers holds all usecase dependencies.
type Handlers struct {
	creator *usecase.GameCreator
	getter  *usecase.GameGetter
	moves   *usecase.MoveSubmitter
	actions *usecase.GameActions
	hub     Subscriber
}

func NewHandlers(
	creator *usecase.GameCreator,
	getter *usecase.GameGetter,
	moves *usecase.MoveSubmitter,
	actions *usecase.GameActions,
	hub Subscriber,
) *Handlers {
	return &Handlers{creator: creator, getter: getter, moves: moves, actions: actions, hub: hub}
}

func (h *Handlers) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) handleCreateGame(c echo.Context) error {
	cl, ok, err := requirePlayer(c)
	if !ok {
		return err
	}

	var body struct {
		Size        int                `json:"size"`
		AllowSwap   bool               `json:"allow_swap"`
		TimeControl timecontrol.Config `json:"time_control"`
		Seats       [2]seatJSON        `json:"seats"`
		Start       bool               `json:"start"`
	}
	if err := c.Bind(&body); err != nil {
		return writeErr(c, err)
	}

	req := usecase.CreateGameRequest{
		Size:        body.Size,
		AllowSwap:   body.AllowSwap,
		TimeControl: body.TimeControl,
		Start:       body.Start,
	}
	for i, s := range body.Seats {
		req.Seats[i] = ports.Seat{PlayerID: s.PlayerID, Kind: ports.SeatKind(s.Bot)}
	}

	v, err := h.creator.CreateGame(c.Request().Context(), cl, req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, toGameJSON(v))
}

func (h *Handlers) handleGetGame(c echo.Context) error {
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	v, err := h.getter.GetGame(c.Request().Context(), client(c), id)
	if err != nil {
		return writeErr(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, toGameJSON(v))
}

func (h *Handlers) handleGetSGF(c echo.Context) error {
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	sgf, err := h.getter.SGF(c.Request().Context(), client(c), id)
	if err != nil {
		return writeErr(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+id.String()+`.sgf"`)
	return c.Blob(http.StatusOK, "application/x-go-sgf", []byte(sgf))
}

func (h *Handlers) handleSubmitMove(c echo.Context) error {
	cl, ok, err := requirePlayer(c)
	if !ok {
		return err
	}
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	var body struct {
		Move string `json:"move"`
		// Optimistic concurrency, optional.
		ExpectedVersion *int `json:"expected_version"`
	}
	if err := c.Bind(&body); err != nil {
		return writeErr(c, err)
	}

	v, err := h.moves.SubmitMove(c.Request().Context(), cl, id, usecase.SubmitMoveRequest{
		Move:            body.Move,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		return writeGameErr(c, err, gameOrNil(v))
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, map[string]any{
		"accepted": true,
		"game":     toGameJSON(v),
	})
}

func (h *Handlers) handleSetPremove(c echo.Context) error {
	cl, ok, err := requirePlayer(c)
	if !ok {
		return err
	}
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	var body struct {
		Move string `json:"move"`
	}
	if err := c.Bind(&body); err != nil {
		return writeErr(c, err)
	}

	pm, err := h.moves.SetPremove(c.Request().Context(), cl, id, body.Move)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"move":       pm.Move.String(),
		"move_index": pm.MoveIndex,
	})
}

func (h *Handlers) handleCancelPremove(c echo.Context) error {
	cl, ok, err := requirePlayer(c)
	if !ok {
		return err
	}
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	if err := h.moves.CancelPremove(c.Request().Context(), cl, id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// gameAction adapts a GameActions method to an echo handler.
func (h *Handlers) gameAction(
	act func(ctx context.Context, cl usecase.Client, id uuid.UUID) (session.View, error),
) echo.HandlerFunc {
	return func(c echo.Context) error {
		cl, ok, err := requirePlayer(c)
		if !ok {
			return err
		}
		id, err := gameID(c)
		if err != nil {
			return writeErr(c, err)
		}

		v, err := act(c.Request().Context(), cl, id)
		if err != nil {
			return writeGameErr(c, err, gameOrNil(v))
		}
		return c.JSON(http.StatusOK, toGameJSON(v))
	}
}

func (h *Handlers) handleAnswerTakeback(c echo.Context) error {
	cl, ok, err := requirePlayer(c)
	if !ok {
		return err
	}
	id, err := gameID(c)
	if err != nil {
		return writeErr(c, err)
	}

	var body struct {
		Accept bool `json:"accept"`
	}
	if err := c.Bind(&body); err != nil {
		return writeErr(c, err)
	}

	v, err := h.actions.AnswerTakeback(c.Request().Context(), cl, id, body.Accept)
	if err != nil {
		return writeGameErr(c, err, gameOrNil(v))
	}
	return c.JSON(http.StatusOK, toGameJSON(v))
}
