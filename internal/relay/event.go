package relay

// TranscriptMessage is the outbound JSON frame carrying one transcription
// result to the client.
type TranscriptMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// ErrorMessage is the outbound JSON frame reporting an error to the client.
type ErrorMessage struct {
	Error string `json:"error"`
}
