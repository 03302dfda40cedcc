// Package speech voices responses through local synthesis and playback.
//
// Output is single-slot: starting new speech stops whatever was playing.
// Every utterance is gated on the session that requested it, so an answer
// for a superseded session dies silently instead of talking over the new
// one. Synthesized audio for recurring phrases is cached on disk keyed by
// the text's hash.
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfalcao/phantasma/internal/log"
)

// Synthesizer renders text to a WAV file at the given path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// Player plays an audio file, blocking until playback finishes or the
// context is canceled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Gate decides whether an utterance may still run and tracks whether
// the assistant is audible. The session manager implements it.
type Gate interface {
	IsCurrent(id string) bool
	SetSpeaking(v bool)
}

// Config holds speech output settings.
type Config struct {
	// CacheDir stores synthesized audio for recurring phrases.
	CacheDir string
	// CacheMaxAge is how long cached audio is kept. Zero disables cleanup.
	CacheMaxAge time.Duration
}

// DefaultConfig returns the speech defaults.
func DefaultConfig() Config {
	return Config{
		CacheDir:    "cache/tts",
		CacheMaxAge: 30 * 24 * time.Hour,
	}
}

// Output is the single speech output of the assistant.
type Output struct {
	cfg    Config
	synth  Synthesizer
	player Player
	gate   Gate
	logger *slog.Logger

	mu      sync.Mutex
	current *playHandle
	active  atomic.Int32
}

// playHandle tracks one playback so a preemptor can cancel it and wait
// for it to wind down.
type playHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutput creates the speech output.
func NewOutput(cfg Config, synth Synthesizer, player Player, gate Gate) *Output {
	return &Output{
		cfg:    cfg,
		synth:  synth,
		player: player,
		gate:   gate,
		logger: log.Component("speech"),
	}
}

// Speak voices text for a session, blocking until playback ends. It is a
// no-op when the session has been superseded. cacheAudio keeps the
// synthesized file for reuse.
func (o *Output) Speak(ctx context.Context, text, sessionID string, cacheAudio bool) {
	if text == "" {
		return
	}
	if o.gate != nil && !o.gate.IsCurrent(sessionID) {
		o.logger.Debug("utterance dropped, session superseded", "session", sessionID)
		return
	}

	path, cleanup, err := o.renderAudio(ctx, text, cacheAudio)
	if err != nil {
		o.logger.Warn("synthesis failed", "error", err)
		return
	}
	defer cleanup()

	// The session may have been superseded while we were synthesizing.
	if o.gate != nil && !o.gate.IsCurrent(sessionID) {
		o.logger.Debug("utterance dropped after synthesis", "session", sessionID)
		return
	}

	o.playBlocking(ctx, path, true)
}

// Announce voices a fixed phrase immediately, without session gating,
// blocking until it has been said. Skills use it to speak before taking
// over the output slot themselves.
func (o *Output) Announce(text string) {
	if text == "" {
		return
	}
	path, cleanup, err := o.renderAudio(context.Background(), text, true)
	if err != nil {
		o.logger.Warn("synthesis failed", "error", err)
		return
	}
	defer cleanup()
	o.playBlocking(context.Background(), path, true)
}

// PlayFile starts playback of an audio file through the output slot,
// preempting any current playback, and returns once it is under way.
// Used for music. Unlike speech, this playback does not raise the
// speaking flag: the wake word must stay detectable over a song so a
// voice command can stop it.
func (o *Output) PlayFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("speech: play file: %w", err)
	}
	go o.playBlocking(context.Background(), path, false)
	return nil
}

// Stop cuts whatever is playing and waits for it to wind down. Safe to
// call with nothing playing.
func (o *Output) Stop() {
	o.mu.Lock()
	h := o.current
	o.mu.Unlock()
	if h != nil {
		h.cancel()
		<-h.done
	}
}

// playBlocking plays one file through the single output slot. speech
// marks synthesized voice: only that raises the speaking flag, so music
// occupies the slot without muting wake detection.
func (o *Output) playBlocking(ctx context.Context, path string, speech bool) {
	playCtx, cancel := context.WithCancel(ctx)
	h := &playHandle{cancel: cancel, done: make(chan struct{})}
	defer close(h.done)

	o.mu.Lock()
	prev := o.current
	o.current = h
	o.mu.Unlock()

	// Speaking goes up before the predecessor winds down so suppression
	// never blips off between utterances.
	if speech && o.gate != nil && o.active.Add(1) == 1 {
		o.gate.SetSpeaking(true)
	}
	defer func() {
		if speech && o.gate != nil && o.active.Add(-1) == 0 {
			o.gate.SetSpeaking(false)
		}
		cancel()
		o.mu.Lock()
		if o.current == h {
			o.current = nil
		}
		o.mu.Unlock()
	}()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	if err := o.player.Play(playCtx, path); err != nil && playCtx.Err() == nil {
		o.logger.Warn("playback failed", "path", path, "error", err)
	}
}

// renderAudio synthesizes text to a file, reusing the on-disk cache for
// cacheable phrases. cleanup removes one-shot files.
func (o *Output) renderAudio(ctx context.Context, text string, cacheAudio bool) (string, func(), error) {
	noop := func() {}

	if cacheAudio && o.cfg.CacheDir != "" {
		if err := os.MkdirAll(o.cfg.CacheDir, 0o755); err != nil {
			return "", noop, fmt.Errorf("speech: cache dir: %w", err)
		}
		path := filepath.Join(o.cfg.CacheDir, hashText(text)+".wav")
		if _, err := os.Stat(path); err == nil {
			return path, noop, nil
		}
		if err := o.synth.Synthesize(ctx, text, path); err != nil {
			os.Remove(path)
			return "", noop, err
		}
		return path, noop, nil
	}

	tmp, err := os.CreateTemp("", "phantasma-tts-*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("speech: temp file: %w", err)
	}
	tmp.Close()
	path := tmp.Name()
	if err := o.synth.Synthesize(ctx, text, path); err != nil {
		os.Remove(path)
		return "", noop, err
	}
	return path, func() { os.Remove(path) }, nil
}

// CleanCache drops cached audio older than the configured max age.
func (o *Output) CleanCache() {
	if o.cfg.CacheDir == "" || o.cfg.CacheMaxAge <= 0 {
		return
	}
	entries, err := os.ReadDir(o.cfg.CacheDir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-o.cfg.CacheMaxAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(o.cfg.CacheDir, e.Name()))
		}
	}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
