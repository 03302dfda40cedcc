// Package weather answers forecast questions with IPMA open data.
//
// A background poller keeps a snapshot of the home city's forecast on
// disk, so questions get answered even when the API is briefly down.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/skill"
)

const unavailable = "As nuvens estão mudas. Não consegui aceder ao IPMA."

// Config holds the weather skill settings.
type Config struct {
	// CityID is the IPMA global id of the home city.
	CityID int
	// CityName is the spoken name of the home city.
	CityName string
	// PollInterval is how often the daemon refreshes the snapshot.
	PollInterval time.Duration
	// SnapshotPath is where the last good forecast is kept.
	SnapshotPath string
}

// DefaultConfig returns settings for Porto, refreshed every half hour.
func DefaultConfig() Config {
	return Config{
		CityID:       1131200,
		CityName:     "Porto",
		PollInterval: 30 * time.Minute,
		SnapshotPath: "cache/weather.json",
	}
}

// Skill answers weather questions.
type Skill struct {
	cfg      Config
	forecast Forecaster
	logger   interface {
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
	}

	// now allows tests to pin the hour for the night-time phrasing.
	now func() time.Time
}

var _ skill.Skill = (*Skill)(nil)
var _ skill.Daemon = (*Skill)(nil)

// Option configures the skill.
type Option func(*Skill)

// WithClock injects a clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(s *Skill) { s.now = now }
}

// New creates the weather skill.
func New(cfg Config, forecast Forecaster, opts ...Option) *Skill {
	s := &Skill{
		cfg:      cfg,
		forecast: forecast,
		logger:   log.Component("weather"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Name() string { return "meteorologia" }

func (s *Skill) Mode() skill.Mode { return skill.MatchSubstring }

func (s *Skill) Triggers() []string {
	return []string{
		"tempo", "clima", "meteorologia", "previsão",
		"vai chover", "vai estar", "frio", "calor",
	}
}

// cityPattern picks up "no Porto", "em Lisboa", "para Faro".
var cityPattern = regexp.MustCompile(`\b(?:no|na|em|para)\s+([a-zà-ú]+(?:\s+[a-zà-ú]+)*)`)

func (s *Skill) Handle(lower, _ string) skill.Result {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cityName, cityID := s.resolveCity(ctx, lower)

	dayIndex := 0
	dayName := "hoje"
	if strings.Contains(lower, "amanhã") {
		dayIndex = 1
		dayName = "amanhã"
	}

	days, err := s.forecast.Daily(ctx, cityID)
	if err != nil || len(days) <= dayIndex {
		if cityID == s.cfg.CityID {
			if snap, ok := s.loadSnapshot(); ok && len(snap.Days) > dayIndex {
				days = snap.Days
				err = nil
			}
		}
		if err != nil || len(days) <= dayIndex {
			s.logger.Warn("forecast unavailable", "city", cityName, "error", err)
			return skill.Respond(unavailable)
		}
	}
	day := days[dayIndex]

	desc := describeWeatherType(day.WeatherType)
	precip := int(day.PrecipProb)

	if wantsRain(lower) {
		var msg string
		switch {
		case precip >= 50:
			msg = fmt.Sprintf("Sim. A chuva está prevista para %s (%d%%).", cityName, precip)
		case precip >= 20:
			msg = fmt.Sprintf("Talvez. Há uma probabilidade de %d%% em %s.", precip, cityName)
		default:
			msg = fmt.Sprintf("Não. O céu em %s permanecerá seco.", cityName)
		}
		return skill.Respond(fmt.Sprintf("%s Espera-se %s.", msg, desc))
	}

	isNight := s.now().Hour() >= 19
	if dayIndex == 0 && isNight {
		return skill.Respond(fmt.Sprintf(
			"Nesta noite em %s: %s, %d°.", cityName, desc, int(day.TMin)))
	}
	return skill.Respond(fmt.Sprintf(
		"%s em %s: %s, entre %d° e %d°.",
		capitalize(dayName), cityName, desc, int(day.TMin), int(day.TMax)))
}

// StartDaemon refreshes the home city snapshot on a fixed interval.
func (s *Skill) StartDaemon(ctx context.Context) {
	if s.cfg.PollInterval <= 0 || s.cfg.SnapshotPath == "" {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.refreshSnapshot(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshSnapshot(ctx)
			}
		}
	}()
}

func (s *Skill) resolveCity(ctx context.Context, lower string) (string, int) {
	m := cityPattern.FindStringSubmatch(lower)
	if m == nil || m[1] == "" {
		return s.cfg.CityName, s.cfg.CityID
	}
	words := strings.Fields(m[1])
	if len(words) == 0 || words[0] == "hoje" || words[0] == "amanhã" {
		return s.cfg.CityName, s.cfg.CityID
	}

	locations, err := s.forecast.Locations(ctx)
	if err != nil {
		return s.cfg.CityName, s.cfg.CityID
	}
	// The capture is greedy, so trim trailing words until a known city
	// remains: "porto amanhã" -> "porto".
	for end := len(words); end > 0; end-- {
		asked := normalizeCity(strings.Join(words[:end], " "))
		if id, ok := locations[asked]; ok {
			return capitalize(asked), id
		}
	}
	return s.cfg.CityName, s.cfg.CityID
}

func wantsRain(lower string) bool {
	for _, w := range []string{"chover", "chuva", "molhar"} {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

type snapshot struct {
	CityID    int       `json:"city_id"`
	FetchedAt time.Time `json:"fetched_at"`
	Days      []Day     `json:"days"`
}

func (s *Skill) refreshSnapshot(ctx context.Context) {
	days, err := s.forecast.Daily(ctx, s.cfg.CityID)
	if err != nil {
		s.logger.Warn("snapshot refresh failed", "error", err)
		return
	}
	snap := snapshot{CityID: s.cfg.CityID, FetchedAt: s.now(), Days: days}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := writeFileAtomic(s.cfg.SnapshotPath, data); err != nil {
		s.logger.Warn("snapshot write failed", "error", err)
	}
}

func (s *Skill) loadSnapshot() (snapshot, bool) {
	var snap snapshot
	data, err := os.ReadFile(s.cfg.SnapshotPath)
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

// writeFileAtomic writes via a temp file and rename so a reader never
// sees a half-written snapshot.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
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
	return os.Rename(tmp.Name(), path)
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeCity(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	folded, _, err := transform.String(stripAccents, lower)
	if err != nil {
		return lower
	}
	return folded
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
