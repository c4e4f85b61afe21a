package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteTranscriptFile saves a session transcript to outputDir with a small
// metadata header. Returns the file path written.
func WriteTranscriptFile(outputDir, ingress, sessionID string, startTime time.Time, transcript string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	metadata := fmt.Sprintf("Session ID: %s\nIngress: %s\nStart Time: %s\nDuration: %v\n\n---TRANSCRIPT---\n\n",
		sessionID,
		ingress,
		startTime.Format("2006-01-02 15:04:05"),
		time.Since(startTime),
	)

	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	filename := filepath.Join(
		outputDir,
		fmt.Sprintf("%s_%s_%s.txt",
			startTime.Format("20060102_150405"),
			ingress,
			shortID,
		),
	)

	if err := os.WriteFile(filename, []byte(metadata+transcript), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	return filename, nil
}
