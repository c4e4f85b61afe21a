package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amanullahtanweer/deepgram-relay/internal/relay"
	"github.com/amanullahtanweer/deepgram-relay/internal/store"
)

// handleTranscribeWS accepts a browser WebSocket and runs a relay session on
// it. The handler goroutine drives the inbound loop; the session spawns its
// own outbound loop.
func (s *Server) handleTranscribeWS(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("new connection to /ws/transcribe/deepgram")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("websocket upgrade failed")
		return
	}
	s.logger.Info("browser WebSocket accepted")

	s.wg.Add(1)
	defer s.wg.Done()

	id := uuid.New()
	sess := relay.NewSession(id, newWSConn(conn), s.factory, s.opts, s.logger, s.metrics, "websocket")

	ctx := context.Background()
	if err := s.store.SessionStarted(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to record session start in redis")
	}

	sess.Run(ctx)

	s.persistTranscript(sess)

	if err := s.store.SessionEnded(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to record session end in redis")
	}
}

// persistTranscript saves the accumulated final transcript to disk and Redis
// when either is configured.
func (s *Server) persistTranscript(sess *relay.Session) {
	transcript := sess.FinalTranscript()
	if transcript == "" {
		return
	}

	logger := s.logger.WithField("session", sess.ID)

	if s.config.SaveTranscripts && s.config.OutputDir != "" {
		path, err := store.WriteTranscriptFile(s.config.OutputDir, "websocket", sess.ID.String(), sess.StartTime(), transcript)
		if err != nil {
			logger.WithError(err).Error("failed to save transcript")
		} else {
			logger.Infof("transcript saved to %s", path)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.SaveTranscript(ctx, sess.ID.String(), transcript); err != nil {
		logger.WithError(err).Warn("failed to save transcript to redis")
	}
}

// wsConn adapts a gorilla WebSocket to the relay.ClientConn contract.
// Gorilla allows one concurrent writer, so writes are serialized here: the
// outbound loop and setup-failure reporting both go through WriteEvent.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// ReadFrame returns the next binary audio frame. Text and control frames are
// skipped. A client-initiated close maps to io.EOF.
func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				return nil, io.EOF
			}
			return nil, err
		}

		if messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteEvent(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
