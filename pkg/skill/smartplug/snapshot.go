package smartplug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// reading is one device's last known state.
type reading struct {
	State       string   `json:"state"`
	PowerW      *float64 `json:"power_w,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *int     `json:"humidity,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// snapshotFile is the in-memory readings map backed by a JSON file.
// Pollers write, request workers and the HTTP API read.
type snapshotFile struct {
	path string

	mu       sync.RWMutex
	readings map[string]reading
}

func newSnapshotFile(path string) *snapshotFile {
	s := &snapshotFile{
		path:     path,
		readings: make(map[string]reading),
	}
	s.load()
	return s
}

func (s *snapshotFile) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var readings map[string]reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return
	}
	s.readings = readings
}

func (s *snapshotFile) get(nick string) (reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[nick]
	return r, ok
}

func (s *snapshotFile) set(nick string, r reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[nick] = r
}

func (s *snapshotFile) setState(nick, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.readings[nick]
	r.State = state
	r.UpdatedAt = time.Now()
	s.readings[nick] = r
}

func (s *snapshotFile) all() map[string]reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]reading, len(s.readings))
	for k, v := range s.readings {
		out[k] = v
	}
	return out
}

// flush writes the readings to disk via temp file and rename, so a
// concurrent reader never sees a torn file.
func (s *snapshotFile) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.all(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".plugs-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// fetchReading asks a device for its current status.
func (s *Skill) fetchReading(ctx context.Context, base string) (reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/status", nil)
	if err != nil {
		return reading{}, fmt.Errorf("smartplug: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return reading{}, fmt.Errorf("smartplug: status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reading{}, fmt.Errorf("smartplug: status returned %d", resp.StatusCode)
	}

	var r reading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return reading{}, fmt.Errorf("smartplug: decode status: %w", err)
	}
	r.UpdatedAt = time.Now()
	return r, nil
}
