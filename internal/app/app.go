// Package app assembles the assistant: audio capture, wake-word
// detection, transcription, routing and speech, plus the API session
// entry point. One Assistant owns the whole pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mfalcao/phantasma/internal/config"
	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/api"
	"github.com/mfalcao/phantasma/pkg/audioio"
	"github.com/mfalcao/phantasma/pkg/cache"
	"github.com/mfalcao/phantasma/pkg/hub"
	"github.com/mfalcao/phantasma/pkg/inference"
	"github.com/mfalcao/phantasma/pkg/memory"
	"github.com/mfalcao/phantasma/pkg/router"
	"github.com/mfalcao/phantasma/pkg/session"
	"github.com/mfalcao/phantasma/pkg/skill"
	"github.com/mfalcao/phantasma/pkg/skill/calc"
	"github.com/mfalcao/phantasma/pkg/skill/music"
	"github.com/mfalcao/phantasma/pkg/skill/remember"
	"github.com/mfalcao/phantasma/pkg/skill/say"
	"github.com/mfalcao/phantasma/pkg/skill/smartplug"
	"github.com/mfalcao/phantasma/pkg/skill/sysstats"
	"github.com/mfalcao/phantasma/pkg/skill/weather"
	"github.com/mfalcao/phantasma/pkg/speech"
	"github.com/mfalcao/phantasma/pkg/store"
	"github.com/mfalcao/phantasma/pkg/transcribe"
	"github.com/mfalcao/phantasma/pkg/wakeword"
	"github.com/mfalcao/phantasma/pkg/websearch"
)

// Restart backoff bounds for the capture loop.
const (
	restartBackoffMin = time.Second
	restartBackoffMax = 30 * time.Second
)

// Deps are the swappable edges of the pipeline. Nil fields get the
// production implementation; tests inject mocks.
type Deps struct {
	Source      audioio.Source
	Scorer      wakeword.Scorer
	Transcriber transcribe.Transcriber
	Synth       speech.Synthesizer
	Player      speech.Player
	LLM         inference.Client
	Search      router.Searcher
}

// Assistant is the always-listening pipeline.
type Assistant struct {
	cfg    config.Config
	logger *slog.Logger

	db       *store.DB
	sess     *session.Manager
	source   audioio.Source
	detector *wakeword.Detector
	stt      transcribe.Transcriber
	routes   *router.Router
	output   *speech.Output
	registry *skill.Registry
	events   *hub.Hub
	memories *memory.Log

	// decimation brings capture frames down to the detector rate.
	decimation int

	// workers tracks in-flight wake responders.
	workers sync.WaitGroup

	// cooldownUntil is the unix-nano instant before which wake
	// detection stays suppressed after an interaction.
	cooldownUntil atomic.Int64
}

// New wires an Assistant from configuration. Nil Deps fields are filled
// with production implementations; anything injected is used as-is.
func New(cfg config.Config, deps Deps) (*Assistant, error) {
	a := &Assistant{
		cfg:    cfg,
		logger: log.Component("app"),
		sess:   session.NewManager(nil),
		events: hub.New(),
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	a.db = db
	a.memories = memory.New(db)
	responses := cache.New(db, cache.WithTTL(cfg.Cache.TTL))

	if err := a.wireAudio(deps); err != nil {
		db.Close()
		return nil, err
	}

	a.stt = deps.Transcriber
	if a.stt == nil {
		a.stt = transcribe.NewWhisper(transcribe.WhisperConfig{
			URL:           strings.TrimRight(cfg.Whisper.URL, "/") + "/inference",
			InitialPrompt: cfg.Whisper.InitialPrompt,
			Fixes:         cfg.Whisper.PhoneticFixes,
		})
	}

	synth := deps.Synth
	if synth == nil {
		synth = speech.NewPiper(cfg.Speech.PiperModel)
	}
	player := deps.Player
	if player == nil {
		player = speech.NewAplay(cfg.Speech.PlaybackDevice)
	}
	a.output = speech.NewOutput(speech.Config{
		CacheDir:    cfg.Speech.AudioCacheDir,
		CacheMaxAge: speech.DefaultConfig().CacheMaxAge,
	}, synth, player, a.sess)
	a.sess.SetStopper(a.output.Stop)

	a.registry = skill.NewRegistry(a.buildSkills()...)

	llm := deps.LLM
	if llm == nil {
		targets := make([]inference.Target, 0, len(cfg.Inference.Targets))
		for _, t := range cfg.Inference.Targets {
			targets = append(targets, inference.Target{Host: t.Host, Model: t.Model})
		}
		llm, err = inference.NewFailoverFromTargets(cfg.Inference.Timeout, targets...)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("app: inference: %w", err)
		}
	}

	search := deps.Search
	if search == nil && cfg.Search.SearxURL != "" {
		search = websearch.NewSearx(cfg.Search.SearxURL, cfg.Search.MaxResults)
	}

	a.routes = router.New(router.Config{
		Skills:       a.registry.All(),
		Cache:        responses,
		Memories:     a.memories,
		Search:       search,
		LLM:          llm,
		SystemPrompt: cfg.Inference.SystemPrompt,
		Fallback:     cfg.Inference.Fallback,
	})

	return a, nil
}

// wireAudio sets up the capture source and the wake-word detector.
func (a *Assistant) wireAudio(deps Deps) error {
	a.source = deps.Source
	if a.source == nil {
		rate, err := audioio.NegotiateSampleRate(a.cfg.Audio.Device, a.cfg.Audio.DetectorRate)
		if err != nil {
			return fmt.Errorf("app: negotiate sample rate: %w", err)
		}
		// Size hardware frames so they come out at FrameSamples after
		// rate conversion, for decimating and resampling rates alike.
		frame := a.cfg.Audio.FrameSamples * rate / a.cfg.Audio.DetectorRate
		src, err := audioio.NewPortAudioSource(audioio.Config{
			Device:       a.cfg.Audio.Device,
			SampleRate:   rate,
			FrameSamples: frame,
		}, nil)
		if err != nil {
			return fmt.Errorf("app: audio source: %w", err)
		}
		a.source = src
	}
	a.decimation = audioio.DecimationFactor(a.source.Config().SampleRate, a.cfg.Audio.DetectorRate)

	scorer := deps.Scorer
	if scorer == nil {
		scorer = wakeword.NewHTTPScorer(a.cfg.Wake.ScorerURL)
	}
	quiet := wakeword.QuietHours{Start: a.cfg.Wake.QuietStart, End: a.cfg.Wake.QuietEnd}
	a.detector = wakeword.NewDetector(wakeword.Config{
		Threshold:   a.cfg.Wake.Threshold,
		Persistence: a.cfg.Wake.Persistence,
		MaxPatience: a.cfg.Wake.Patience,
	}, scorer, nil,
		wakeword.WithSuppression(a.suppressed),
		wakeword.WithQuietPolicy(quiet.Active),
	)
	return nil
}

// buildSkills assembles the skill set in routing order.
func (a *Assistant) buildSkills() []skill.Skill {
	plugCfg := smartplug.DefaultConfig()
	plugCfg.Devices = a.cfg.Skills.Plugs.Devices
	plugCfg.Sensors = a.cfg.Skills.Plugs.Sensors
	if a.cfg.Skills.Plugs.PollInterval > 0 {
		plugCfg.PollInterval = a.cfg.Skills.Plugs.PollInterval
	}
	if a.cfg.Skills.Plugs.SnapshotPath != "" {
		plugCfg.SnapshotPath = a.cfg.Skills.Plugs.SnapshotPath
	}

	weatherCfg := weather.DefaultConfig()
	if a.cfg.Skills.Weather.CityID != 0 {
		weatherCfg.CityID = a.cfg.Skills.Weather.CityID
		weatherCfg.CityName = a.cfg.Skills.Weather.CityName
	}
	if a.cfg.Skills.Weather.PollInterval > 0 {
		weatherCfg.PollInterval = a.cfg.Skills.Weather.PollInterval
	}
	if a.cfg.Skills.Weather.SnapshotPath != "" {
		weatherCfg.SnapshotPath = a.cfg.Skills.Weather.SnapshotPath
	}

	return []skill.Skill{
		say.New(),
		calc.New(),
		remember.New(a.memories),
		smartplug.New(plugCfg),
		weather.New(weatherCfg, weather.NewIPMA()),
		sysstats.New(),
		music.New(a.cfg.Skills.MusicDir, a.output),
	}
}

// suppressed vetoes wake scoring while the assistant is audible or
// inside the post-interaction cooldown.
func (a *Assistant) suppressed() bool {
	if a.sess.Speaking() {
		return true
	}
	return time.Now().UnixNano() < a.cooldownUntil.Load()
}

// Registry exposes the skill set, for the API surface.
func (a *Assistant) Registry() *skill.Registry { return a.registry }

// Events exposes the event hub, for the API surface.
func (a *Assistant) Events() *hub.Hub { return a.events }

// Status snapshots the assistant state for /api/status.
func (a *Assistant) Status() api.Status {
	return api.Status{
		Speaking:       a.sess.Speaking(),
		CurrentSession: a.sess.CurrentID(),
		Listeners:      a.events.ClientCount(),
	}
}

// Run starts the hub, the skill daemons and the capture loop, and blocks
// until the context is canceled. The capture loop is restarted with
// exponential backoff when the audio stack fails.
func (a *Assistant) Run(ctx context.Context) error {
	go a.events.Run()
	a.registry.StartDaemons(ctx)
	a.output.CleanCache()

	backoff := restartBackoffMin
	for {
		err := a.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("capture loop ended, restarting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
	}
}

// listen runs one life of the capture loop: start the source, feed the
// detector frame by frame, handle wake events inline.
func (a *Assistant) listen(ctx context.Context) error {
	if err := a.source.Start(ctx); err != nil {
		return err
	}
	defer a.source.Stop()

	a.logger.Info("listening",
		"backend", a.source.Name(),
		"sample_rate", a.source.Config().SampleRate,
		"decimation", a.decimation,
	)

	for {
		chunk, err := a.source.Read(ctx)
		if err != nil {
			return err
		}

		frame := a.toDetectorRate(chunk.Samples)
		triggered, err := a.detector.Feed(frame)
		if err != nil {
			a.logger.Debug("scoring failed", "error", err)
			continue
		}
		if triggered {
			a.handleWake(ctx)
		}
	}
}

// handleWake acknowledges the wake, records the command utterance and
// hands the rest of the pipeline to a worker. Recording stays on the
// capture loop because it is the only consumer of the frame stream;
// everything after it runs detached so scoring resumes immediately and a
// newer wake supersedes the worker instead of waiting for it.
func (a *Assistant) handleWake(ctx context.Context) {
	sess := a.sess.Begin()
	a.events.Publish(hub.EventWake, sess.ID, "", "")

	if a.cfg.Speech.AckPhrase != "" {
		a.output.Speak(ctx, a.cfg.Speech.AckPhrase, sess.ID, true)
	}

	// Record from live audio, not from leftovers of the wake phrase.
	a.source.Drain()
	samples, rate, err := a.record(ctx)
	a.detector.Reset()
	if err != nil {
		a.logger.Warn("recording failed", "error", err)
		return
	}

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		a.respond(ctx, sess, samples, rate)
	}()
}

// respond finishes one interaction: transcribe, route, speak.
func (a *Assistant) respond(ctx context.Context, sess session.Session, samples []int16, rate int) {
	defer func() {
		a.cooldownUntil.Store(time.Now().Add(a.cfg.Wake.Cooldown).UnixNano())
	}()

	text, err := a.stt.Transcribe(ctx, samples, rate)
	if err != nil {
		a.logger.Warn("transcription failed", "error", err)
		return
	}
	if text == "" {
		a.logger.Debug("nothing transcribed, session ends")
		return
	}
	a.logger.Info("command transcribed", "session", sess.ID, "text", text)
	a.events.Publish(hub.EventTranscript, sess.ID, text, "voice")

	outcome := a.routes.Route(ctx, text, sess.Current, func() {
		a.output.Speak(ctx, a.cfg.Speech.ThinkingPhrase, sess.ID, true)
	})
	a.events.Publish(hub.EventResponse, sess.ID, outcome.Text, string(outcome.Source))

	// A final outcome already produced its own audio (music playback);
	// speaking the confirmation would cut it off.
	if outcome.Final {
		return
	}
	a.output.Speak(ctx, outcome.Text, sess.ID, outcome.CacheAudio)
}

// record captures the fixed command window and decimates it to the
// detector rate for transcription.
func (a *Assistant) record(ctx context.Context) ([]int16, int, error) {
	rate := a.source.Config().SampleRate
	want := rate * a.cfg.Audio.RecordSeconds
	samples := make([]int16, 0, want)

	for len(samples) < want {
		chunk, err := a.source.Read(ctx)
		if err != nil {
			return nil, 0, err
		}
		samples = append(samples, chunk.Samples...)
	}

	return a.toDetectorRate(samples), a.cfg.Audio.DetectorRate, nil
}

// toDetectorRate converts captured samples to the detector rate: plain
// decimation when the rates divide cleanly (48kHz), linear resampling
// otherwise (44.1kHz).
func (a *Assistant) toDetectorRate(samples []int16) []int16 {
	if a.decimation > 1 {
		return audioio.Decimate(samples, a.decimation)
	}
	rate := a.source.Config().SampleRate
	if rate != a.cfg.Audio.DetectorRate {
		return audioio.Resample(samples, rate, a.cfg.Audio.DetectorRate)
	}
	return samples
}

// Command runs a text command under the reserved API session and returns
// the response text. API responses are not spoken unless the outcome
// explicitly asks for speech.
func (a *Assistant) Command(ctx context.Context, prompt string) string {
	sess := a.sess.BeginAPI()
	a.events.Publish(hub.EventTranscript, sess.ID, prompt, "api")

	outcome := a.routes.Route(ctx, prompt, sess.Current, nil)
	a.events.Publish(hub.EventResponse, sess.ID, outcome.Text, string(outcome.Source))

	if outcome.ForceSpeak && !outcome.Final {
		go a.output.Speak(context.WithoutCancel(ctx), outcome.Text, sess.ID, false)
	}
	return outcome.Text
}

var _ api.Commander = (*Assistant)(nil)

// Close releases the pipeline's resources.
func (a *Assistant) Close() error {
	a.output.Stop()
	if err := a.source.Close(); err != nil {
		a.logger.Warn("closing audio source", "error", err)
	}
	return a.db.Close()
}
