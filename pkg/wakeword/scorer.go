package wakeword

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfalcao/phantasma/internal/httpc"
	"github.com/mfalcao/phantasma/pkg/audioio"
)

// HTTPScorer scores frames against a wake-word model served over HTTP.
// The service holds the recurrent model state, so Reset is a remote call too.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPScorer creates a scorer against the given scoring service.
func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{
		baseURL: baseURL,
		client:  httpc.NewClient(2 * time.Second),
	}
}

// Score posts one PCM16 frame and returns the model's confidence.
func (s *HTTPScorer) Score(frame []int16) (float64, error) {
	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodPost, s.baseURL+"/score",
		bytes.NewReader(audioio.SamplesToBytes(frame)))
	if err != nil {
		return 0, fmt.Errorf("wakeword: build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wakeword: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wakeword: scorer returned status %d", resp.StatusCode)
	}

	var body struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("wakeword: decode score response: %w", err)
	}
	return body.Score, nil
}

// Reset clears the model's recurrent state on the scoring service.
// Failures are swallowed: a stale model state degrades detection briefly
// but must never break the capture loop.
func (s *HTTPScorer) Reset() {
	resp, err := s.client.Post(s.baseURL+"/reset", "application/json", nil)
	if err != nil {
		return
	}
	resp.Body.Close()
}

var _ Scorer = (*HTTPScorer)(nil)

// ScriptedScorer replays a fixed score sequence. Test use only.
type ScriptedScorer struct {
	Scores []float64
	pos    int
	resets int
}

// Score returns the next scripted score, repeating the last one when the
// script runs out.
func (s *ScriptedScorer) Score(_ []int16) (float64, error) {
	if len(s.Scores) == 0 {
		return 0, nil
	}
	if s.pos >= len(s.Scores) {
		return s.Scores[len(s.Scores)-1], nil
	}
	score := s.Scores[s.pos]
	s.pos++
	return score, nil
}

// Reset counts resets so tests can assert the model state is cleared.
func (s *ScriptedScorer) Reset() {
	s.resets++
}

// Resets returns how many times Reset was called.
func (s *ScriptedScorer) Resets() int {
	return s.resets
}

var _ Scorer = (*ScriptedScorer)(nil)
