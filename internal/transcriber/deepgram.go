package transcriber

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// Deepgram is a LiveTranscriber backed by Deepgram's live-transcription
// WebSocket API.
type Deepgram struct {
	apiKey string
	url    string
	logger *logrus.Entry

	onTranscript func(TranscriptEvent)
	onError      func(string)

	conn    *websocket.Conn
	writeMu sync.Mutex

	started    bool
	finishing  atomic.Bool
	finishOnce sync.Once
	finishErr  error
	done       chan struct{}
}

// deepgramMessage covers the live API frames the relay cares about:
// Results, Error and Metadata.
type deepgramMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// NewDeepgram creates an unstarted Deepgram session client.
func NewDeepgram(apiKey string, logger *logrus.Logger) (*Deepgram, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Deepgram API key is required")
	}

	return &Deepgram{
		apiKey: apiKey,
		url:    deepgramListenURL,
		logger: logger.WithField("component", "deepgram"),
		done:   make(chan struct{}),
	}, nil
}

// OnTranscript registers the transcript handler. Must be called before Start.
func (d *Deepgram) OnTranscript(fn func(TranscriptEvent)) {
	d.onTranscript = fn
}

// OnError registers the error handler. Must be called before Start.
func (d *Deepgram) OnError(fn func(string)) {
	d.onError = fn
}

// Start dials the live endpoint with the session options encoded as query
// parameters and starts the result reader.
func (d *Deepgram) Start(opts Options) error {
	if d.onTranscript == nil || d.onError == nil {
		return fmt.Errorf("transcript and error handlers must be registered before start")
	}

	u, err := url.Parse(d.url)
	if err != nil {
		return fmt.Errorf("invalid Deepgram URL: %w", err)
	}

	q := u.Query()
	q.Set("model", opts.Model)
	q.Set("language", opts.Language)
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("encoding", opts.Encoding)
	q.Set("channels", strconv.Itoa(opts.Channels))
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Add("Authorization", "Token "+d.apiKey)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	d.conn = conn
	d.started = true

	go d.handleResults()

	return nil
}

// Send forwards one audio frame to Deepgram.
func (d *Deepgram) Send(chunk []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if !d.started {
		return fmt.Errorf("session not started")
	}

	if err := d.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}

	return nil
}

// Finish closes the streaming session. It sends a CloseStream frame so
// Deepgram flushes pending results, closes the socket and waits for the
// reader to drain. Safe to call more than once.
func (d *Deepgram) Finish() error {
	d.finishOnce.Do(func() {
		d.finishing.Store(true)

		if !d.started {
			return
		}

		d.writeMu.Lock()
		if err := d.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
			d.logger.WithError(err).Debug("failed to send CloseStream")
		}
		d.writeMu.Unlock()

		d.finishErr = d.conn.Close()
		<-d.done
	})

	return d.finishErr
}

func (d *Deepgram) handleResults() {
	defer close(d.done)

	for {
		_, message, err := d.conn.ReadMessage()
		if err != nil {
			if d.finishing.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				d.logger.WithError(err).Error("Deepgram WebSocket error")
				d.onError(fmt.Sprintf("Deepgram error: %v", err))
			}
			return
		}

		d.handleMessage(message)
	}
}

func (d *Deepgram) handleMessage(message []byte) {
	var msg deepgramMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		d.logger.WithError(err).Error("failed to parse Deepgram message")
		return
	}

	switch msg.Type {
	case "Results":
		if len(msg.Channel.Alternatives) == 0 {
			d.logger.Debug("Results frame without alternatives")
			return
		}
		transcript := msg.Channel.Alternatives[0].Transcript
		if transcript == "" {
			return
		}
		d.onTranscript(TranscriptEvent{Text: transcript, IsFinal: msg.IsFinal})

	case "Error":
		detail := msg.Description
		if detail == "" {
			detail = msg.Message
		}
		d.onError(fmt.Sprintf("Deepgram error: %s", detail))

	case "Metadata":
		d.logger.Debug("received Deepgram metadata")
	}
}
