package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/goliatone/go-formengine/internal/session"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/navigation"
)

// eventBuffer bounds the events queued for one slow websocket client.
const eventBuffer = 64

// message is one websocket frame. The first frame carries the session view,
// later frames carry events.
type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// events streams page and field events of a session over a websocket.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("server: websocket accept", "session", sess.ID, "error", err)
		return
	}
	defer conn.CloseNow()

	// the stream is write-only; CloseRead handles control frames
	ctx := conn.CloseRead(r.Context())

	queue := make(chan session.Event, eventBuffer)
	unsubscribe := sess.Subscribe(func(ev session.Event) {
		select {
		case queue <- ev:
		default:
			s.logger.Warn("server: dropping session event", "session", sess.ID, "type", ev.Type)
		}
	})
	defer unsubscribe()

	var view sessionView
	_ = sess.Do(func(e *engine.Engine, nav *navigation.Navigator) error {
		view = s.view(sess, e, nav)
		return nil
	})
	if err := wsjson.Write(ctx, conn, message{Type: "session", Data: view}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-queue:
			if err := wsjson.Write(ctx, conn, message{Type: "event", Data: ev}); err != nil {
				s.logger.Debug("server: websocket write", "session", sess.ID, "error", err)
				return
			}
		}
	}
}
