package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amanullahtanweer/deepgram-relay/internal/metrics"
	"github.com/amanullahtanweer/deepgram-relay/internal/relay"
	"github.com/amanullahtanweer/deepgram-relay/internal/store"
	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

// Config contains the AudioSocket listener settings.
type Config struct {
	Host            string
	Port            int
	OutputDir       string
	SaveTranscripts bool
}

// Ingress accepts Asterisk AudioSocket connections and runs each call
// through the same relay pipeline as browser sessions. Calls have no JSON
// back-channel, so transcript and error events are logged instead.
type Ingress struct {
	config   Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	store    *store.SessionStore
	factory  transcriber.Factory
	opts     transcriber.Options
	wg       sync.WaitGroup
	shutdown chan struct{}

	mu       sync.Mutex
	listener net.Listener
}

// New creates the AudioSocket ingress.
func New(config Config, logger *logrus.Logger, m *metrics.Metrics, st *store.SessionStore,
	factory transcriber.Factory, opts transcriber.Options) *Ingress {

	return &Ingress{
		config:   config,
		logger:   logger,
		metrics:  m,
		store:    st,
		factory:  factory,
		opts:     opts,
		shutdown: make(chan struct{}),
	}
}

// Start listens for AudioSocket connections until Stop is called. It blocks.
func (i *Ingress) Start() error {
	addr := fmt.Sprintf("%s:%d", i.config.Host, i.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	i.mu.Lock()
	i.listener = listener
	i.mu.Unlock()

	i.logger.Infof("AudioSocket ingress listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-i.shutdown:
				return nil
			default:
				i.logger.WithError(err).Error("accept error")
				continue
			}
		}

		i.wg.Add(1)
		go i.handleConnection(conn)
	}
}

// Stop closes the listener and waits for active calls to drain.
func (i *Ingress) Stop() {
	close(i.shutdown)
	i.mu.Lock()
	if i.listener != nil {
		i.listener.Close()
	}
	i.mu.Unlock()
	i.wg.Wait()
}

// Addr returns the bound listener address, or nil before Start.
func (i *Ingress) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.listener == nil {
		return nil
	}
	return i.listener.Addr()
}

func (i *Ingress) handleConnection(conn net.Conn) {
	defer i.wg.Done()

	i.logger.Infof("new AudioSocket connection from %s", conn.RemoteAddr())

	id, err := audiosocket.GetID(conn)
	if err != nil {
		i.logger.WithError(err).Error("failed to read AudioSocket ID")
		conn.Close()
		return
	}

	sessionLogger := i.logger.WithField("session", id)
	asc := &asConn{conn: conn, logger: sessionLogger}

	sess := relay.NewSession(uuid.UUID(id), asc, i.factory, i.opts, i.logger, i.metrics, "audiosocket")

	ctx := context.Background()
	if err := i.store.SessionStarted(ctx); err != nil {
		sessionLogger.WithError(err).Warn("failed to record session start in redis")
	}

	sess.Run(ctx)

	i.persistTranscript(sess, sessionLogger)

	if err := i.store.SessionEnded(ctx); err != nil {
		sessionLogger.WithError(err).Warn("failed to record session end in redis")
	}
}

func (i *Ingress) persistTranscript(sess *relay.Session, logger *logrus.Entry) {
	transcript := sess.FinalTranscript()
	if transcript == "" {
		return
	}

	if i.config.SaveTranscripts && i.config.OutputDir != "" {
		path, err := store.WriteTranscriptFile(i.config.OutputDir, "audiosocket", sess.ID.String(), sess.StartTime(), transcript)
		if err != nil {
			logger.WithError(err).Error("failed to save transcript")
		} else {
			logger.Infof("transcript saved to %s", path)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := i.store.SaveTranscript(ctx, sess.ID.String(), transcript); err != nil {
		logger.WithError(err).Warn("failed to save transcript to redis")
	}
}

// asConn adapts an AudioSocket call leg to the relay.ClientConn contract.
// Asterisk delivers 8kHz signed linear audio; frames are upsampled to the
// 16kHz the transcription session is configured for.
type asConn struct {
	conn   net.Conn
	logger *logrus.Entry
}

// ReadFrame returns the next audio payload. Hangup and EOF map to io.EOF;
// non-audio frames are skipped.
func (c *asConn) ReadFrame() ([]byte, error) {
	for {
		msg, err := audiosocket.NextMessage(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}

		switch msg.Kind() {
		case audiosocket.KindSlin:
			if len(msg.Payload()) > 0 {
				return resample8to16(msg.Payload()), nil
			}

		case audiosocket.KindHangup:
			c.logger.Info("received hangup")
			return nil, io.EOF

		case audiosocket.KindError:
			return nil, fmt.Errorf("audiosocket error code: %d", msg.ErrorCode())
		}
	}
}

// WriteEvent logs the event; a phone call cannot receive JSON frames.
func (c *asConn) WriteEvent(v any) error {
	switch ev := v.(type) {
	case relay.TranscriptMessage:
		if ev.IsFinal {
			c.logger.Infof("final: %s", ev.Text)
		} else {
			c.logger.Debugf("partial: %s", ev.Text)
		}
	case relay.ErrorMessage:
		c.logger.Errorf("transcription error: %s", ev.Error)
	}
	return nil
}

func (c *asConn) Close() error {
	return c.conn.Close()
}
