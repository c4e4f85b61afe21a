package relay

import (
	"context"
	"time"

	"github.com/amanullahtanweer/deepgram-relay/internal/transcriber"
)

// idleWait bounds how long the outbound loop sleeps when both queues are
// empty. The queue wakeup channels usually cut the wait short.
const idleWait = 10 * time.Millisecond

// outboundLoop drains the transcript and error queues and forwards each item
// to the client connection. Within a tick transcripts are checked before
// errors; both queues are checked every tick so nothing is skipped. The loop
// stops within one tick of cancellation, letting an in-flight forward finish
// first.
func (s *Session) outboundLoop(ctx context.Context) {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		forwarded := false

		if ev, ok := s.transcripts.TryPop(); ok {
			if !s.forwardTranscript(ev) {
				return
			}
			forwarded = true
		}

		if msg, ok := s.errs.TryPop(); ok {
			if !s.forwardError(msg) {
				return
			}
			forwarded = true
		}

		if forwarded {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idleWait)

		select {
		case <-ctx.Done():
			return
		case <-s.transcripts.Ready():
		case <-s.errs.Ready():
		case <-timer.C:
		}
	}
}

// forwardTranscript sends one transcript event to the client. It reports
// false when the connection write fails, which ends the outbound loop.
func (s *Session) forwardTranscript(ev transcriber.TranscriptEvent) bool {
	msg := TranscriptMessage{Text: ev.Text, IsFinal: ev.IsFinal}
	if err := s.conn.WriteEvent(msg); err != nil {
		s.logger.WithError(err).Error("error forwarding transcript to client")
		return false
	}

	s.metrics.RecordTranscript(ev.IsFinal)
	if ev.IsFinal {
		s.appendFinal(ev.Text)
	}
	return true
}

// forwardError sends one error event to the client.
func (s *Session) forwardError(message string) bool {
	if err := s.conn.WriteEvent(ErrorMessage{Error: message}); err != nil {
		s.logger.WithError(err).Error("error forwarding error to client")
		return false
	}

	s.metrics.RecordError()
	return true
}
