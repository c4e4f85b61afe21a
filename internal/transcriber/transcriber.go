package transcriber

// TranscriptEvent is a single transcription result delivered by the live
// session. Partial results carry IsFinal=false and are superseded by later
// events for the same audio.
type TranscriptEvent struct {
	Text    string
	IsFinal bool
}

// Options configure a live transcription session. They are fixed at Start
// and never mutated afterwards.
type Options struct {
	Model          string
	Language       string
	SmartFormat    bool
	Encoding       string
	Channels       int
	SampleRate     int
	InterimResults bool
}

// LiveTranscriber is the common interface for streaming transcription
// sessions. Exactly one transcript handler and one error handler must be
// registered before Start. Handlers are invoked on the transport reader
// goroutine and must not block: hand the event off and return.
type LiveTranscriber interface {
	OnTranscript(func(TranscriptEvent))
	OnError(func(message string))

	// Start establishes the streaming session. Any error is fatal to the
	// session; the caller aborts and tears down.
	Start(opts Options) error

	// Send forwards one opaque audio frame. A send failure is transient:
	// the caller logs it and drops the frame.
	Send(chunk []byte) error

	// Finish closes the session. It is safe to call more than once and
	// returns the result of the first close.
	Finish() error
}

// Factory creates one live transcription session per client connection.
type Factory func() (LiveTranscriber, error)
