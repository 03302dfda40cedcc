// Package config loads phantasma configuration from a YAML file with
// environment overrides. A .env file next to the binary is honoured so
// secrets stay out of the YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// InferenceTarget is one (endpoint, model) pair tried by the failover chain.
type InferenceTarget struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// Config holds all tunable parameters for the assistant.
type Config struct {
	LogLevel   string `yaml:"log_level"`
	ListenAddr string `yaml:"listen_addr"`

	Audio struct {
		// Device is the capture device name; empty selects the default.
		Device string `yaml:"device"`
		// DetectorRate is the sample rate the wake-word model expects.
		DetectorRate int `yaml:"detector_rate"`
		// FrameSamples is the frame size fed to the model, at DetectorRate.
		FrameSamples int `yaml:"frame_samples"`
		// RecordSeconds is the fixed command-utterance capture window.
		RecordSeconds int `yaml:"record_seconds"`
	} `yaml:"audio"`

	Wake struct {
		// ScorerURL points at the wake-word scoring service.
		ScorerURL string `yaml:"scorer_url"`
		// Threshold is the per-frame confidence needed to extend a streak.
		Threshold float64 `yaml:"threshold"`
		// Persistence is the streak length that fires a trigger.
		Persistence int `yaml:"persistence"`
		// Patience is how many sub-threshold frames a streak survives.
		Patience int `yaml:"patience"`
		// Cooldown suppresses detection after an interaction.
		Cooldown time.Duration `yaml:"cooldown"`
		// QuietStart/QuietEnd define the quiet-hours window (local hour,
		// start may be greater than end to wrap midnight). -1 disables.
		QuietStart int `yaml:"quiet_start"`
		QuietEnd   int `yaml:"quiet_end"`
	} `yaml:"wake"`

	Whisper struct {
		URL           string            `yaml:"url"`
		InitialPrompt string            `yaml:"initial_prompt"`
		PhoneticFixes map[string]string `yaml:"phonetic_fixes"`
	} `yaml:"whisper"`

	Inference struct {
		Targets      []InferenceTarget `yaml:"targets"`
		Timeout      time.Duration     `yaml:"timeout"`
		SystemPrompt string            `yaml:"system_prompt"`
		Fallback     string            `yaml:"fallback"`
	} `yaml:"inference"`

	Cache struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Search struct {
		SearxURL   string `yaml:"searx_url"`
		MaxResults int    `yaml:"max_results"`
	} `yaml:"search"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Speech struct {
		PiperModel     string `yaml:"piper_model"`
		PlaybackDevice string `yaml:"playback_device"`
		AudioCacheDir  string `yaml:"audio_cache_dir"`
		AckPhrase      string `yaml:"ack_phrase"`
		ThinkingPhrase string `yaml:"thinking_phrase"`
	} `yaml:"speech"`

	Skills struct {
		Weather struct {
			CityID       int           `yaml:"city_id"`
			CityName     string        `yaml:"city_name"`
			PollInterval time.Duration `yaml:"poll_interval"`
			SnapshotPath string        `yaml:"snapshot_path"`
		} `yaml:"weather"`
		Plugs struct {
			// Devices maps a spoken nickname to the device relay address.
			Devices      map[string]string `yaml:"devices"`
			// Sensors are read-only nicknames exposed as status devices.
			Sensors      map[string]string `yaml:"sensors"`
			PollInterval time.Duration     `yaml:"poll_interval"`
			SnapshotPath string            `yaml:"snapshot_path"`
		} `yaml:"plugs"`
		MusicDir string `yaml:"music_dir"`
	} `yaml:"skills"`
}

// Default returns a Config with the defaults the assistant ships with.
func Default() Config {
	var c Config
	c.LogLevel = "info"
	c.ListenAddr = ":5000"

	c.Audio.DetectorRate = 16000
	c.Audio.FrameSamples = 1280 // 80ms at 16kHz
	c.Audio.RecordSeconds = 8

	c.Wake.Threshold = 0.7
	c.Wake.Persistence = 4
	c.Wake.Patience = 2
	c.Wake.Cooldown = 2 * time.Second
	c.Wake.QuietStart = -1
	c.Wake.QuietEnd = -1

	c.Whisper.URL = "http://127.0.0.1:8178"

	c.Inference.Timeout = 2 * time.Minute
	c.Inference.Fallback = "As minhas sombras de processamento estão inalcançáveis de momento."
	c.Inference.Targets = []InferenceTarget{
		{Host: "http://localhost:11434", Model: "llama3"},
	}

	c.Cache.TTL = 7 * 24 * time.Hour

	c.Search.MaxResults = 3

	c.Store.Path = "phantasma.db"

	c.Speech.AudioCacheDir = "cache/tts"
	c.Speech.AckPhrase = "Sim?"
	c.Speech.ThinkingPhrase = "Deixa ver..."

	c.Skills.Weather.CityID = 1131200
	c.Skills.Weather.CityName = "Porto"
	c.Skills.Weather.PollInterval = 30 * time.Minute
	c.Skills.Weather.SnapshotPath = "cache/weather.json"
	c.Skills.Plugs.PollInterval = time.Minute
	c.Skills.Plugs.SnapshotPath = "cache/plugs.json"
	c.Skills.MusicDir = "/home/media/music"

	return c
}

// Load reads the YAML config at path, layered over defaults, then applies
// environment overrides. A missing file is not an error: defaults apply.
func Load(path string) (Config, error) {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PHANTASMA_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PHANTASMA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PHANTASMA_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("WHISPER_URL"); v != "" {
		c.Whisper.URL = v
	}
	if v := os.Getenv("SEARXNG_URL"); v != "" {
		c.Search.SearxURL = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && len(c.Inference.Targets) > 0 {
		c.Inference.Targets[0].Host = v
	}
	if v := os.Getenv("WAKE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Wake.Threshold = f
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Audio.DetectorRate <= 0 {
		return fmt.Errorf("config: detector_rate must be positive, got %d", c.Audio.DetectorRate)
	}
	if c.Audio.FrameSamples <= 0 {
		return fmt.Errorf("config: frame_samples must be positive, got %d", c.Audio.FrameSamples)
	}
	if c.Audio.RecordSeconds <= 0 {
		return fmt.Errorf("config: record_seconds must be positive, got %d", c.Audio.RecordSeconds)
	}
	if c.Wake.Threshold < 0 || c.Wake.Threshold > 1 {
		return fmt.Errorf("config: wake threshold must be between 0 and 1, got %v", c.Wake.Threshold)
	}
	if c.Wake.Persistence < 1 {
		return fmt.Errorf("config: wake persistence must be at least 1, got %d", c.Wake.Persistence)
	}
	if c.Wake.Patience < 0 {
		return fmt.Errorf("config: wake patience must not be negative, got %d", c.Wake.Patience)
	}
	if len(c.Inference.Targets) == 0 {
		return fmt.Errorf("config: at least one inference target is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %v", c.Cache.TTL)
	}
	return nil
}
