package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Subscriber attaches a websocket connection to a game's event stream.
type Subscriber interface {
	Serve(conn *websocket.Conn, gameID uuid.UUID, hello []byte)
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleWatch upgrades to a websocket that first receives the current game
// and then every event of it.
func (h *Handlers) handleWatch(upgrader websocket.Upgrader) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := gameID(c)
		if err != nil {
			return writeErr(c, err)
		}
		v, err := h.getter.GetGame(c.Request().Context(), client(c), id)
		if err != nil {
			return writeErr(c, err)
		}
		hello, err := json.Marshal(map[string]any{"type": "snapshot", "game": toGameJSON(v)})
		if err != nil {
			return writeErr(c, err)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade has already replied
			return nil
		}
		h.hub.Serve(conn, id, hello)
		return nil
	}
}
