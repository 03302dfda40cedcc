package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Piper synthesizes speech with a local piper binary and voice model.
type Piper struct {
	binary string
	model  string
}

var _ Synthesizer = (*Piper)(nil)

// NewPiper creates a piper synthesizer for the given voice model file.
func NewPiper(model string) *Piper {
	return &Piper{
		binary: "piper",
		model:  model,
	}
}

// Synthesize renders text to a WAV file.
func (p *Piper) Synthesize(ctx context.Context, text, outPath string) error {
	cmd := exec.CommandContext(ctx, p.binary,
		"--model", p.model,
		"--output_file", outPath,
	)
	cmd.Stdin = strings.NewReader(text)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speech: piper: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Aplay plays WAV files through ALSA. Non-WAV files go through mpv so
// music in other formats still plays.
type Aplay struct {
	device string
}

var _ Player = (*Aplay)(nil)

// NewAplay creates a player on the given ALSA device. Empty device
// means the system default.
func NewAplay(device string) *Aplay {
	return &Aplay{device: device}
}

// Play blocks until the file finishes or ctx is canceled.
func (a *Aplay) Play(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		args := []string{"-q"}
		if a.device != "" {
			args = append(args, "-D", a.device)
		}
		cmd = exec.CommandContext(ctx, "aplay", append(args, path)...)
	} else {
		args := []string{"--no-video", "--really-quiet"}
		if a.device != "" {
			args = append(args, "--audio-device=alsa/"+a.device)
		}
		cmd = exec.CommandContext(ctx, "mpv", append(args, path)...)
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech: play %s: %w", path, err)
	}
	return nil
}
