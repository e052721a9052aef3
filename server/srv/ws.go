package srv

import (
	"net/http"

	"github.com/gorilla/websocket"

	"tidewar/server/auth"
	"tidewar/shared/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler authenticates the session token before upgrading.
func (h *Hub) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.tokens.ParseSession(auth.BearerToken(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error("websocket upgrade", err, logging.Fields{"user": id.UserID})
			return
		}
		h.HandleWS(conn, id)
	}
}
