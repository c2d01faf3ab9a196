package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"beltline.dev/internal/protocol"
	"beltline.dev/internal/sim/line"
)

// Server exposes the production line to read-only websocket observers.
// An observer handshakes with HELLO, receives WELCOME, then gets a STEP
// message per simulation step and a SUMMARY when the run ends.
type Server struct {
	line *line.Line
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(l *line.Line, logger *log.Logger) *Server {
	s := &Server{
		line: l,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		observerID, out := s.handshake(conn)
		if observerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: observers send nothing after HELLO; drain until the
		// connection drops so pings and close frames are processed.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				break
			}
		}

		// Cleanup.
		s.line.ObserverLeaveCh() <- observerID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (observerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "protocol version mismatch"), time.Now().Add(time.Second))
		return "", nil
	}

	out = make(chan []byte, 64)
	resp := make(chan protocol.WelcomeMsg, 1)
	s.line.ObserverJoinCh() <- line.ObserverJoin{Name: hello.ObserverName, Out: out, Resp: resp}

	select {
	case welcome := <-resp:
		b, err := json.Marshal(welcome)
		if err != nil {
			return "", nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.line.ObserverLeaveCh() <- welcome.ObserverID
			return "", nil
		}
		return welcome.ObserverID, out
	case <-time.After(10 * time.Second):
		if s.log != nil {
			s.log.Printf("observer handshake timed out waiting for the run loop")
		}
		return "", nil
	}
}
