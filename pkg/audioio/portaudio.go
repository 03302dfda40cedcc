package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Candidate rates tried during negotiation, preferred first. The wake-word
// model wants 16kHz; 48kHz and 32kHz decimate cleanly to it.
var negotiationRates = []int{16000, 48000, 44100, 32000}

// NegotiateSampleRate probes the capture device for a usable sample rate.
// Returns the first rate the hardware accepts, or the target rate if the
// probe itself fails (the open in Start will then surface the real error).
func NegotiateSampleRate(device string, target int) (int, error) {
	if err := portaudio.Initialize(); err != nil {
		return target, fmt.Errorf("audioio: initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	for _, rate := range negotiationRates {
		in := make([]int16, 64)
		stream, err := openInputStream(device, rate, len(in), in)
		if err != nil {
			continue
		}
		stream.Close()
		return rate, nil
	}
	return target, nil
}

func openInputStream(device string, rate, frames int, buf []int16) (*portaudio.Stream, error) {
	if device == "" {
		return portaudio.OpenDefaultStream(1, 0, float64(rate), frames, buf)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name != device || d.MaxInputChannels < 1 {
			continue
		}
		params := portaudio.LowLatencyParameters(d, nil)
		params.Input.Channels = 1
		params.SampleRate = float64(rate)
		params.FramesPerBuffer = frames
		return portaudio.OpenStream(params, buf)
	}
	return nil, fmt.Errorf("audioio: capture device %q not found", device)
}

// PortAudioSource captures microphone audio via PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stream   *portaudio.Stream
	streamCh chan AudioChunk
	stopCh   chan struct{}
	wg       sync.WaitGroup

	chunksRead atomic.Int64
	overruns   atomic.Int64
}

// NewPortAudioSource creates a PortAudio-backed source.
func NewPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioSource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the capture stream and begins delivering chunks.
func (p *PortAudioSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audioio: initialize portaudio: %w", err)
	}

	in := make([]int16, p.cfg.FrameSamples)
	stream, err := openInputStream(p.cfg.Device, p.cfg.SampleRate, len(in), in)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audioio: open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audioio: start capture stream: %w", err)
	}

	p.stream = stream
	p.running = true
	p.streamCh = make(chan AudioChunk, 16)
	p.stopCh = make(chan struct{})

	p.wg.Add(1)
	go p.captureLoop(ctx, stream, in, p.streamCh, p.stopCh)

	p.logger.Info("capture started",
		"device", p.cfg.Device,
		"sample_rate", p.cfg.SampleRate,
		"frame_samples", p.cfg.FrameSamples,
	)
	return nil
}

func (p *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, in []int16, out chan AudioChunk, stop chan struct{}) {
	defer p.wg.Done()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Input overflow is transient: some audio was dropped but the
			// stream keeps running. Anything else ends the loop and the
			// caller restarts the source.
			if errors.Is(err, portaudio.InputOverflowed) {
				p.overruns.Add(1)
				p.logger.Debug("input overflow, audio dropped")
				continue
			}
			p.logger.Error("capture read failed", "error", err)
			return
		}

		chunk := AudioChunk{
			Samples:    append([]int16(nil), in...),
			SampleRate: p.cfg.SampleRate,
		}

		select {
		case out <- chunk:
			p.chunksRead.Add(1)
		default:
			// Consumer is behind; drop rather than block the device.
			p.overruns.Add(1)
		}
	}
}

// Stop halts capture.
func (p *PortAudioSource) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)

	if p.stream != nil {
		p.stream.Abort()
		p.stream.Close()
		p.stream = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
	portaudio.Terminate()
	p.logger.Info("capture stopped")
	return nil
}

// Read reads the next audio chunk.
func (p *PortAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-p.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (p *PortAudioSource) Stream() <-chan AudioChunk {
	return p.streamCh
}

// Drain discards buffered chunks. Called after a wake event so the command
// recording starts from live audio, not from the wake phrase itself.
func (p *PortAudioSource) Drain() {
	for {
		select {
		case <-p.streamCh:
		default:
			return
		}
	}
}

// Config returns the audio configuration.
func (p *PortAudioSource) Config() Config {
	return p.cfg
}

// Name returns "portaudio".
func (p *PortAudioSource) Name() string {
	return "portaudio"
}

// Close releases resources.
func (p *PortAudioSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.Stop()
}

// Stats returns source statistics.
func (p *PortAudioSource) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SourceStats{
		ChunksRead: p.chunksRead.Load(),
		Overruns:   p.overruns.Load(),
		Running:    running,
		Backend:    "portaudio",
	}
}

var _ SourceWithStats = (*PortAudioSource)(nil)
