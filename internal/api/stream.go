package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/session"
	"github.com/MrWong99/closepath/pkg/provider/stt"
)

// streamError is sent to the client when an inbound frame is rejected. The
// connection stays open.
type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// stream upgrades to a websocket. The server pushes a snapshot after every
// change to the call, starting with the current state. Text frames from the
// client carry [stt.RecognitionEvent] JSON and binary frames carry raw audio
// for the call's recognizer. The socket closes normally when the call ends.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("api: websocket accept", "call_id", c.ID(), "err", err)
		return
	}
	defer conn.CloseNow()

	log := observe.Logger(r.Context()).With("call_id", c.ID())
	log.Debug("api: websocket connected")

	snaps, unsubscribe := c.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rejects := make(chan streamError, 4)
	go func() {
		defer cancel()
		s.readFrames(ctx, conn, c, rejects)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug("api: websocket disconnected")
			return
		case e := <-rejects:
			if err := wsjson.Write(ctx, conn, e); err != nil {
				return
			}
		case snap, ok := <-snaps:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "call ended")
				return
			}
			if err := wsjson.Write(ctx, conn, snap); err != nil {
				log.Debug("api: websocket write", "err", err)
				return
			}
		}
	}
}

// readFrames forwards client frames to c until the connection fails or ctx
// ends. Rejected frames are reported on rejects without blocking.
func (s *Server) readFrames(ctx context.Context, conn *websocket.Conn, c *session.Call, rejects chan<- streamError) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		switch typ {
		case websocket.MessageBinary:
			err = c.SendAudio(data)
		default:
			var ev stt.RecognitionEvent
			if jerr := json.Unmarshal(data, &ev); jerr != nil {
				err = errors.New("invalid recognition event")
			} else {
				err = c.FeedRecognition(ev)
			}
		}
		if err == nil {
			continue
		}

		msg := err.Error()
		if status, m := statusFor(err); status != http.StatusInternalServerError {
			msg = m
		}
		select {
		case rejects <- streamError{Type: "error", Error: msg}:
		default:
		}
	}
}
