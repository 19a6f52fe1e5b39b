package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saviobatista/flightboard/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// serveObserver upgrades the connection and streams hub messages as
// {"event", "data"} text frames until either side goes away
func (s *Server) serveObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := s.hub.Subscribe()
	log := s.log.With("subscriber", sub.ID(), "remote", r.RemoteAddr)
	log.Info("observer connected")

	done := make(chan struct{})
	go s.writeObserver(conn, sub.C(), done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	sub.Close()
	<-done
	conn.Close()
	log.Info("observer disconnected")
}

func (s *Server) writeObserver(conn *websocket.Conn, msgs <-chan broadcast.Message, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
