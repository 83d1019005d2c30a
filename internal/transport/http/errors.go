package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
	"github.com/randomtoy/hex-backend/internal/usecase"
)

const errBase = "https://errors.hex.randomtoy.dev"

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// GameProblem is returned when a game action is refused. Game carries the
// state the request was judged against.
type GameProblem struct {
	Problem
	Code string    `json:"code"`
	Game *gameJSON `json:"game,omitempty"`
}

// conflicts are refused actions that a client fixes by refreshing state.
var conflicts = []error{
	session.ErrNotYourTurn,
	session.ErrPremoveOnTurn,
	session.ErrNoPremove,
	session.ErrTakebackPending,
	session.ErrNoTakeback,
	session.ErrTakebackNotAllowed,
	session.ErrCancelNotAllowed,
	session.ErrUndoElapsed,
	game.ErrAlreadyStarted,
	timecontrol.ErrElapsed,
}

var badRequests = []error{
	usecase.ErrInvalidRequest,
	game.ErrInvalidConfig,
	timecontrol.ErrInvalidConfig,
	session.ErrInvalidSeats,
}

// writeErr maps a domain/usecase error to the correct HTTP response.
func writeErr(c echo.Context, err error) error {
	return writeGameErr(c, err, nil)
}

// writeGameErr is writeErr with the current game attached to refusals.
func writeGameErr(c echo.Context, err error, g *gameJSON) error {
	var httpErr *echo.HTTPError
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return c.JSON(http.StatusNotFound, Problem{
			Type:   errBase + "/not-found",
			Title:  "Not Found",
			Status: http.StatusNotFound,
			Detail: "Resource not found.",
		})
	case errors.Is(err, ports.ErrVersionConflict):
		return c.JSON(http.StatusConflict, GameProblem{
			Problem: Problem{
				Type:   errBase + "/conflict",
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: "Game state changed; refresh and retry with the new expected_version.",
			},
			Code: "version_conflict",
			Game: g,
		})
	case errors.Is(err, usecase.ErrRateLimited):
		c.Response().Header().Set("Retry-After", "2")
		return c.JSON(http.StatusTooManyRequests, Problem{
			Type:   errBase + "/rate-limited",
			Title:  "Too Many Requests",
			Status: http.StatusTooManyRequests,
			Detail: "Rate limit exceeded. Try again later.",
		})
	case errors.Is(err, session.ErrNotAPlayer):
		return c.JSON(http.StatusForbidden, Problem{
			Type:   errBase + "/not-a-player",
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Detail: "X-Player-Id does not hold a seat in this game.",
		})
	case errors.Is(err, move.ErrInvalidMoveFormat):
		return c.JSON(http.StatusUnprocessableEntity, GameProblem{
			Problem: Problem{
				Type:   errBase + "/illegal-move",
				Title:  "Unprocessable Entity",
				Status: http.StatusUnprocessableEntity,
				Detail: "Move must be a cell like c3, swap-pieces or pass.",
			},
			Code: "invalid_move_format",
			Game: g,
		})
	case errors.Is(err, game.ErrIllegalMove):
		return c.JSON(http.StatusUnprocessableEntity, GameProblem{
			Problem: Problem{
				Type:   errBase + "/illegal-move",
				Title:  "Unprocessable Entity",
				Status: http.StatusUnprocessableEntity,
				Detail: err.Error(),
			},
			Code: "illegal_move",
			Game: g,
		})
	case isAny(err, conflicts):
		return c.JSON(http.StatusConflict, GameProblem{
			Problem: Problem{
				Type:   errBase + "/refused",
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: err.Error(),
			},
			Code: codeOf(err, conflicts),
			Game: g,
		})
	case errors.Is(err, game.ErrGameNotPlaying):
		return c.JSON(http.StatusConflict, GameProblem{
			Problem: Problem{
				Type:   errBase + "/refused",
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: "Game is not being played.",
			},
			Code: game.ErrGameNotPlaying.Error(),
			Game: g,
		})
	case isAny(err, badRequests):
		return c.JSON(http.StatusBadRequest, Problem{
			Type:   errBase + "/bad-request",
			Title:  "Bad Request",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		})
	case errors.As(err, &httpErr) && httpErr.Code < http.StatusInternalServerError:
		return c.JSON(httpErr.Code, Problem{
			Type:   errBase + "/bad-request",
			Title:  http.StatusText(httpErr.Code),
			Status: httpErr.Code,
			Detail: "Malformed request body.",
		})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, Problem{
			Type:   errBase + "/internal",
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: "Unexpected error.",
		})
	}
}

func isAny(err error, targets []error) bool {
	return codeOf(err, targets) != ""
}

func codeOf(err error, targets []error) string {
	for _, t := range targets {
		if errors.Is(err, t) {
			return t.Error()
		}
	}
	return ""
}
