package audioio

import "fmt"

// Config holds audio capture configuration.
type Config struct {
	// Device is the capture device name. Empty selects the system default.
	Device string `yaml:"device" json:"device"`

	// SampleRate is the rate frames are delivered at, in Hz.
	// For a hardware source this is the negotiated rate, which may be a
	// multiple of the detector rate (see DecimationFactor).
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameSamples is the number of samples per chunk at SampleRate.
	FrameSamples int `yaml:"frame_samples" json:"frame_samples"`
}

// DefaultConfig returns a Config sized for the wake-word model:
// 80ms frames of 16kHz mono PCM16.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		FrameSamples: 1280,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSamples <= 0 {
		return fmt.Errorf("audioio: frame_samples must be positive, got %d", c.FrameSamples)
	}
	return nil
}

// DecimationFactor returns the integer factor needed to bring rate down to
// target, or 1 if the rates already match or are not an integer multiple.
// 48kHz capture decimates by 3 for a 16kHz detector; 44.1kHz stays as-is
// and the caller must resample instead.
func DecimationFactor(rate, target int) int {
	if target <= 0 || rate <= target || rate%target != 0 {
		return 1
	}
	return rate / target
}
