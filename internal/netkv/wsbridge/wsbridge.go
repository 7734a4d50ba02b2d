// Package wsbridge exposes the same line protocol netkv serves over TCP as
// a WebSocket endpoint, so browser-based tooling can talk to the Actor
// without a raw TCP socket. Each inbound text message is treated as one
// command line; each reply is written back as one text message.
package wsbridge

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"kvs/internal/engine/actor"
	"kvs/internal/netkv"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler returns an http.Handler that upgrades connections to WebSocket
// and bridges them to a.
func Handler(a *actor.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		serve(a, conn)
	})
}

func serve(a *actor.Actor, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}

		reply := netkv.Dispatch(a, line)

		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}
