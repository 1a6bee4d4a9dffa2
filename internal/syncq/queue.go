// Package syncq holds chants recorded while offline until they can be
// replayed against the API.
package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type PendingChant struct {
	Confidence *float64  `json:"confidence,omitempty"`
	QueuedAt   time.Time `json:"queued_at"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".japa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]PendingChant, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []PendingChant{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []PendingChant{}, nil
	}
	var out []PendingChant
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(pending []PendingChant) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(pending, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(p PendingChant) error {
	pending, err := Load()
	if err != nil {
		return err
	}
	pending = append(pending, p)
	return Save(pending)
}
