package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

// Transcript is the YAML form of a finished session.
type Transcript struct {
	Session string         `yaml:"session"`
	SavedAt time.Time      `yaml:"saved_at"`
	Entries []HistoryEntry `yaml:"entries"`
}

// WriteTranscript writes the session history as YAML.
func WriteTranscript(w io.Writer, s *Session) error {
	data, err := yaml.Marshal(Transcript{
		Session: s.ID,
		SavedAt: time.Now().UTC(),
		Entries: s.History(),
	})
	if err != nil {
		return fmt.Errorf("failed to format transcript: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// SaveTranscript writes the session history to path, creating parent
// directories.
func SaveTranscript(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer f.Close()
	return WriteTranscript(f, s)
}
