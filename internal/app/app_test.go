package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfalcao/phantasma/internal/config"
	"github.com/mfalcao/phantasma/pkg/audioio"
	"github.com/mfalcao/phantasma/pkg/inference"
	"github.com/mfalcao/phantasma/pkg/speech"
	"github.com/mfalcao/phantasma/pkg/transcribe"
	"github.com/mfalcao/phantasma/pkg/wakeword"
	"github.com/mfalcao/phantasma/pkg/websearch"
)

type testRig struct {
	assistant *Assistant
	source    *audioio.MockSource
	stt       *transcribe.MockTranscriber
	synth     *speech.MockSynthesizer
	player    *speech.MockPlayer
	llm       *inference.MockClient
}

// silence returns n frames of mute detector-rate audio.
func silence(n int) []audioio.AudioChunk {
	chunks := make([]audioio.AudioChunk, n)
	for i := range chunks {
		chunks[i] = audioio.AudioChunk{
			Samples:    make([]int16, 1280),
			SampleRate: 16000,
		}
	}
	return chunks
}

func newTestRig(t *testing.T, scorer wakeword.Scorer, opts ...audioio.MockSourceOption) *testRig {
	t.Helper()
	return newTestRigAt(t, 16000, scorer, opts...)
}

func newTestRigAt(t *testing.T, sampleRate int, scorer wakeword.Scorer, opts ...audioio.MockSourceOption) *testRig {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Speech.AudioCacheDir = filepath.Join(t.TempDir(), "tts")
	cfg.Skills.MusicDir = t.TempDir()
	cfg.Skills.Weather.SnapshotPath = filepath.Join(t.TempDir(), "weather.json")
	cfg.Skills.Plugs.SnapshotPath = filepath.Join(t.TempDir(), "plugs.json")
	cfg.Audio.RecordSeconds = 1
	cfg.Wake.Cooldown = 0

	if scorer == nil {
		scorer = &wakeword.ScriptedScorer{}
	}

	rig := &testRig{
		source: audioio.NewMockSource(audioio.Config{
			SampleRate:   sampleRate,
			FrameSamples: 1280 * sampleRate / 16000,
		}, nil, opts...),
		stt:    &transcribe.MockTranscriber{},
		synth:  &speech.MockSynthesizer{},
		player: &speech.MockPlayer{},
		llm:    &inference.MockClient{},
	}

	a, err := New(cfg, Deps{
		Source:      rig.source,
		Scorer:      scorer,
		Transcriber: rig.stt,
		Synth:       rig.synth,
		Player:      rig.player,
		LLM:         rig.llm,
		Search:      &websearch.MockSearcher{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	rig.assistant = a
	return rig
}

func TestWakeAnsweredBySkill(t *testing.T) {
	// One second of recording is 13 frames. The interval paces emission so
	// the post-wake Drain only discards what is buffered, not the queue.
	rig := newTestRig(t, nil,
		audioio.WithChunks(silence(40)...),
		audioio.WithInterval(time.Millisecond),
	)
	rig.stt.Transcripts = []string{"quanto é 2 mais 2"}

	ctx := context.Background()
	require.NoError(t, rig.source.Start(ctx))

	rig.assistant.handleWake(ctx)
	rig.assistant.workers.Wait()

	texts := rig.synth.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Sim?", texts[0])
	assert.Equal(t, "O resultado é 4.", texts[1])
	assert.Len(t, rig.player.Played(), 2)
	assert.Empty(t, rig.llm.Prompts())
}

func TestWakeAnsweredByModelAfterThinking(t *testing.T) {
	rig := newTestRig(t, nil,
		audioio.WithChunks(silence(40)...),
		audioio.WithInterval(time.Millisecond),
	)
	rig.stt.Transcripts = []string{"conta-me uma curiosidade sobre polvos"}
	rig.llm.Answers = []string{"Os polvos têm três corações."}

	ctx := context.Background()
	require.NoError(t, rig.source.Start(ctx))

	rig.assistant.handleWake(ctx)
	rig.assistant.workers.Wait()

	texts := rig.synth.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "Sim?", texts[0])
	assert.Equal(t, "Deixa ver...", texts[1])
	assert.Equal(t, "Os polvos têm três corações.", texts[2])
}

func TestWakeWithEmptyTranscriptEndsQuietly(t *testing.T) {
	rig := newTestRig(t, nil,
		audioio.WithChunks(silence(40)...),
		audioio.WithInterval(time.Millisecond),
	)

	ctx := context.Background()
	require.NoError(t, rig.source.Start(ctx))

	rig.assistant.handleWake(ctx)
	rig.assistant.workers.Wait()

	// Only the acknowledgment was voiced.
	assert.Equal(t, []string{"Sim?"}, rig.synth.Texts())
	assert.Empty(t, rig.llm.Prompts())
}

func TestListenTriggersOnWakeWord(t *testing.T) {
	// Four frames above threshold fire the trigger; the rest cover the
	// command recording. The interval paces emission so Drain after the
	// wake does not swallow the whole recording.
	scorer := &wakeword.ScriptedScorer{Scores: []float64{0.9, 0.9, 0.9, 0.9, 0}}
	rig := newTestRig(t, scorer,
		audioio.WithChunks(silence(60)...),
		audioio.WithInterval(time.Millisecond),
	)
	rig.stt.Transcripts = []string{"quanto é 3 mais 3"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rig.assistant.listen(ctx) }()

	assert.Eventually(t, func() bool {
		for _, text := range rig.synth.Texts() {
			if text == "O resultado é 6." {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCaptureRateConversion(t *testing.T) {
	tests := []struct {
		rate string
		hz   int
		in   int
	}{
		{"native", 16000, 1280},
		{"decimated", 48000, 3840},
		{"resampled", 44100, 3528},
	}

	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			rig := newTestRigAt(t, tt.hz, nil)
			got := rig.assistant.toDetectorRate(make([]int16, tt.in))
			assert.InDelta(t, 1280, len(got), 1, "frame size at detector rate")
		})
	}
}

func TestCommandDoesNotSpeak(t *testing.T) {
	rig := newTestRig(t, nil)

	got := rig.assistant.Command(context.Background(), "quanto é 2 mais 2")
	assert.Equal(t, "O resultado é 4.", got)
	assert.Empty(t, rig.synth.Texts())
}

func TestCommandSpeaksWhenAskedTo(t *testing.T) {
	rig := newTestRig(t, nil)

	got := rig.assistant.Command(context.Background(), "diz olá a toda a gente")
	assert.Equal(t, "olá a toda a gente", got)

	assert.Eventually(t, func() bool {
		texts := rig.synth.Texts()
		return len(texts) == 1 && texts[0] == "olá a toda a gente"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCommandFallsBackWhenInferenceFails(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.llm.Err = context.DeadlineExceeded

	got := rig.assistant.Command(context.Background(), "qual é o sentido da vida")
	assert.Equal(t, "As minhas sombras de processamento estão inalcançáveis de momento.", got)
}

func TestSuppressionDuringCooldown(t *testing.T) {
	rig := newTestRig(t, nil)
	a := rig.assistant

	assert.False(t, a.suppressed())

	a.cooldownUntil.Store(time.Now().Add(time.Minute).UnixNano())
	assert.True(t, a.suppressed())

	a.cooldownUntil.Store(0)
	a.sess.SetSpeaking(true)
	assert.True(t, a.suppressed())
	a.sess.SetSpeaking(false)
	assert.False(t, a.suppressed())
}

func TestStatusSnapshot(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.assistant.Command(context.Background(), "quanto é 1 mais 1")
	st := rig.assistant.Status()
	assert.Equal(t, "api", st.CurrentSession)
	assert.False(t, st.Speaking)
}
