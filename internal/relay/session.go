package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amanullahtanweer/deepgram-relay/internal/metrics"
	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

// ClientConn is the client side of a relay session: a browser WebSocket or
// an AudioSocket call leg. ReadFrame blocks until the next audio frame and
// returns io.EOF on a clean disconnect. WriteEvent sends one structured
// message back to the client.
type ClientConn interface {
	ReadFrame() ([]byte, error)
	WriteEvent(v any) error
	Close() error
}

// Session relays audio from one client connection to a live transcription
// session and forwards transcript and error events back. It owns the client
// connection and the transcriber for its whole lifetime; teardown is
// guaranteed no matter how streaming ends.
type Session struct {
	ID uuid.UUID

	conn    ClientConn
	factory transcriber.Factory
	opts    transcriber.Options
	logger  *logrus.Entry
	metrics *metrics.Metrics
	ingress string

	transcripts *eventQueue[transcriber.TranscriptEvent]
	errs        *eventQueue[string]

	tr      transcriber.LiveTranscriber
	cancel  context.CancelFunc
	outDone chan struct{}

	chunksSent int64
	startTime  time.Time

	fullText strings.Builder
	textMu   sync.Mutex

	teardownOnce sync.Once
}

// NewSession creates a session for one client connection.
func NewSession(id uuid.UUID, conn ClientConn, factory transcriber.Factory, opts transcriber.Options,
	logger *logrus.Logger, m *metrics.Metrics, ingress string) *Session {

	return &Session{
		ID:          id,
		conn:        conn,
		factory:     factory,
		opts:        opts,
		logger:      logger.WithFields(logrus.Fields{"session": id, "ingress": ingress}),
		metrics:     m,
		ingress:     ingress,
		transcripts: newEventQueue[transcriber.TranscriptEvent](),
		errs:        newEventQueue[string](),
		outDone:     make(chan struct{}),
	}
}

// Run drives the session from setup to teardown. It returns when the client
// disconnects or a fatal error occurs; by then the transcriber is finished
// and the client connection is closed.
func (s *Session) Run(ctx context.Context) {
	s.startTime = time.Now()
	s.metrics.RecordSessionStart(s.ingress)
	defer func() {
		duration := time.Since(s.startTime)
		s.metrics.RecordSessionEnd(duration.Seconds())
		s.logger.Infof("session ended (duration: %v, chunks: %d)", duration, s.chunksSent)
	}()

	tr, err := s.factory()
	if err != nil {
		s.failSetup(fmt.Sprintf("Failed to initialize Deepgram client: %v", err))
		return
	}
	s.tr = tr
	s.logger.Info("Deepgram client initialized")

	// Handlers run on the transcriber's reader goroutine; they only enqueue.
	tr.OnTranscript(func(ev transcriber.TranscriptEvent) {
		s.transcripts.Push(ev)
	})
	tr.OnError(func(msg string) {
		s.logger.Error(msg)
		s.errs.Push(msg)
	})

	if err := tr.Start(s.opts); err != nil {
		s.failSetup(fmt.Sprintf("Error starting Deepgram connection: %v", err))
		return
	}
	s.logger.Info("Deepgram connection started successfully")

	outCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer close(s.outDone)
		s.outboundLoop(outCtx)
	}()

	defer s.teardown()

	s.inboundLoop()
}

// inboundLoop reads audio frames from the client and forwards them to the
// transcriber until disconnect or a read error. A failed send drops the
// frame and keeps going; connection-level errors end the loop through the
// read side.
func (s *Session) inboundLoop() {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.WithError(err).Error("error in audio forwarding")
			}
			return
		}

		if len(frame) == 0 {
			continue
		}

		if err := s.tr.Send(frame); err != nil {
			s.metrics.RecordChunkSendFailure()
			s.logger.WithError(err).Warn("failed to forward audio chunk")
			continue
		}

		s.chunksSent++
		s.metrics.RecordChunk()
		if s.chunksSent%50 == 0 {
			s.logger.Debugf("sent %d audio chunks to Deepgram", s.chunksSent)
		}
	}
}

// failSetup reports a setup failure to the client once and closes the
// connection. No further activity happens on the session afterwards.
func (s *Session) failSetup(msg string) {
	s.metrics.RecordSetupFailure()
	s.logger.Error(msg)

	if err := s.conn.WriteEvent(ErrorMessage{Error: msg}); err != nil {
		s.logger.WithError(err).Debug("failed to report setup error to client")
	}
	if err := s.conn.Close(); err != nil {
		s.logger.WithError(err).Debug("failed to close client connection")
	}
}

// teardown cancels the outbound loop, waits for it to stop writing, finishes
// the transcriber and closes the client connection. Every step runs even if
// an earlier one fails, and repeat calls are no-ops.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()
		<-s.outDone

		if err := s.tr.Finish(); err != nil {
			s.logger.WithError(err).Error("error finishing Deepgram connection")
		} else {
			s.logger.Info("Deepgram connection finished")
		}

		if err := s.conn.Close(); err != nil {
			s.logger.WithError(err).Debug("error closing client connection")
		}
	})
}

// FinalTranscript returns the accumulated final transcript text. Callers use
// it for persistence after Run returns.
func (s *Session) FinalTranscript() string {
	s.textMu.Lock()
	defer s.textMu.Unlock()
	return s.fullText.String()
}

// StartTime returns when the session began streaming.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

func (s *Session) appendFinal(text string) {
	s.textMu.Lock()
	defer s.textMu.Unlock()
	if s.fullText.Len() > 0 {
		s.fullText.WriteString(" ")
	}
	s.fullText.WriteString(text)
}
