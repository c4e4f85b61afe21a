package ingress

import (
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	gofrsuuid "github.com/gofrs/uuid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amanullahtanweer/deepgram-relay/internal/metrics"
	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = metrics.New()

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// callTranscriber records the audio it receives and emits a fixed final
// transcript after the first chunk.
type callTranscriber struct {
	finalText string

	mu           sync.Mutex
	onTranscript func(transcriber.TranscriptEvent)
	onError      func(string)
	chunks       [][]byte
	finishCount  int
}

func (c *callTranscriber) OnTranscript(fn func(transcriber.TranscriptEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscript = fn
}

func (c *callTranscriber) OnError(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *callTranscriber) Start(transcriber.Options) error { return nil }

func (c *callTranscriber) Send(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
	if len(c.chunks) == 1 && c.finalText != "" {
		c.onTranscript(transcriber.TranscriptEvent{Text: c.finalText, IsFinal: true})
	}
	return nil
}

func (c *callTranscriber) Finish() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishCount++
	return nil
}

func (c *callTranscriber) sentChunks() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.chunks))
	copy(out, c.chunks)
	return out
}

func startIngress(t *testing.T, config Config, tr *callTranscriber) (*Ingress, net.Addr) {
	t.Helper()

	config.Host = "127.0.0.1"
	ing := New(config, testLogger(), testMetrics, nil,
		func() (transcriber.LiveTranscriber, error) { return tr, nil },
		transcriber.Options{})

	go func() {
		if err := ing.Start(); err != nil {
			t.Errorf("ingress start failed: %v", err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ing.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("ingress never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ing, ing.Addr()
}

func TestAudioSocketCallRoundTrip(t *testing.T) {
	outputDir := t.TempDir()
	tr := &callTranscriber{finalText: "hello from the call"}
	ing, addr := startIngress(t, Config{OutputDir: outputDir, SaveTranscripts: true}, tr)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	id := uuid.New()
	if _, err := conn.Write(audiosocket.IDMessage(gofrsuuid.UUID(id))); err != nil {
		t.Fatalf("failed to send ID: %v", err)
	}

	// One 8kHz frame of four samples.
	audio := samplesToBytes([]int16{10, 20, 30, 40})
	if _, err := conn.Write(audiosocket.SlinMessage(audio)); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}
	if _, err := conn.Write(audiosocket.HangupMessage()); err != nil {
		t.Fatalf("failed to send hangup: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(tr.sentChunks()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio never reached the transcriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ing.Stop()

	chunks := tr.sentChunks()
	if len(chunks) != 1 {
		t.Fatalf("expected one audio chunk, got %d", len(chunks))
	}
	if len(chunks[0]) != len(audio)*2 {
		t.Errorf("expected upsampled chunk of %d bytes, got %d", len(audio)*2, len(chunks[0]))
	}

	tr.mu.Lock()
	finishCount := tr.finishCount
	tr.mu.Unlock()
	if finishCount != 1 {
		t.Errorf("expected finish to be called once, got %d", finishCount)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		t.Fatalf("failed to read output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one transcript file, found %d", len(entries))
	}
	if !strings.Contains(entries[0].Name(), id.String()[:8]) {
		t.Errorf("transcript filename %q missing session id", entries[0].Name())
	}

	data, err := os.ReadFile(outputDir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("failed to read transcript: %v", err)
	}
	if !strings.Contains(string(data), "hello from the call") {
		t.Errorf("transcript file missing text: %q", string(data))
	}
}

func TestStopUnblocksStart(t *testing.T) {
	tr := &callTranscriber{}
	ing, _ := startIngress(t, Config{}, tr)

	done := make(chan struct{})
	go func() {
		ing.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
