package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carevoice/companion/pkg/audio"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 1 << 20 // 1 MiB per message
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The companion runs on a trusted local network; browsers on other
	// origins are still allowed to connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection, creates a session and runs the read
// and write pumps until either side closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess, err := s.manager.Create(s.baseCtx)
	if err != nil {
		s.log.Error("session create failed", "error", err)
		conn.WriteJSON(Outbound{Type: "error", Message: "could not start session"})
		return
	}
	defer s.manager.Destroy(sess.ID())

	log := s.log.With(slog.String("session", sess.ID()))
	log.Info("websocket client connected", "remote", r.RemoteAddr)

	if err := conn.WriteJSON(Outbound{Type: "session", SessionID: sess.ID()}); err != nil {
		return
	}

	// Writer pump: single goroutine owns all writes to the socket.
	pongs := make(chan struct{}, 4)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case out, ok := <-sess.Outputs():
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(encode(out)); err != nil {
					log.Debug("websocket write failed", "error", err)
					return
				}
			case <-pongs:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(pong); err != nil {
					return
				}
			case <-sess.Done():
				return
			}
		}
	}()

	// Read pump on this goroutine.
	conn.SetReadLimit(readLimit)
	var seq uint64
readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read failed", "error", err)
			}
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			pcm := audio.DecodePCM16(data)
			if len(pcm) == 0 {
				continue
			}
			f, err := audio.NewFrame(seq, pcm, s.sampleRate, time.Now())
			if err != nil {
				continue
			}
			seq++
			if err := sess.PushFrame(f); err != nil {
				log.Debug("session closed mid-stream")
				break readLoop
			}
		case websocket.TextMessage:
			var in Inbound
			if err := json.Unmarshal(data, &in); err != nil {
				log.Debug("bad control message", "error", err)
				continue
			}
			switch in.Type {
			case inEndOfUtterance:
				sess.EndOfUtterance()
			case inPlaybackDone:
				sess.PlaybackFinished()
			case inStop:
				sess.Interrupt()
			case inPing:
				select {
				case pongs <- struct{}{}:
				default:
				}
			default:
				log.Debug("unknown control message", "type", in.Type)
			}
		}
	}

	s.manager.Destroy(sess.ID())
	<-writerDone
	log.Info("websocket client disconnected")
}
