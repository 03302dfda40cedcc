// Package smartplug controls local smart plugs and reads their sensors.
//
// Devices speak a minimal HTTP contract: GET {base}/status returns the
// current reading, POST {base}/on and {base}/off switch the relay. A
// background poller keeps the last readings in an on-disk snapshot, so
// status questions and the HTTP API answer instantly and survive a
// device being briefly offline.
package smartplug

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mfalcao/phantasma/internal/httpc"
	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/skill"
)

// Config holds the smart plug skill settings.
type Config struct {
	// Devices maps spoken nicknames to switchable device base URLs.
	Devices map[string]string
	// Sensors maps spoken nicknames to read-only device base URLs.
	Sensors map[string]string
	// PollInterval is how often the daemon refreshes readings.
	PollInterval time.Duration
	// SnapshotPath is where the last readings are kept.
	SnapshotPath string
}

// DefaultConfig returns the poller defaults; devices come from the
// user's configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Minute,
		SnapshotPath: "cache/plugs.json",
	}
}

var (
	actionsOn      = []string{"liga", "ligar", "acende", "acender", "ativa"}
	actionsOff     = []string{"desliga", "desligar", "apaga", "apagar", "desativa"}
	statusTriggers = []string{"como está", "estado", "temperatura", "humidade", "leitura", "consumo", "gastar"}

	// Generic nouns that resolve to every matching device, so "desliga
	// as luzes" hits both "luz da sala" and "luz do quarto".
	baseNouns = []string{"sensor", "luz", "lâmpada", "desumidificador", "exaustor", "tomada", "ficha", "aquecedor"}
)

// Skill switches plugs and answers status questions.
type Skill struct {
	cfg    Config
	client *http.Client
	snaps  *snapshotFile
	logger interface {
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
	}
}

var (
	_ skill.Skill          = (*Skill)(nil)
	_ skill.StatusProvider = (*Skill)(nil)
	_ skill.DeviceLister   = (*Skill)(nil)
	_ skill.Daemon         = (*Skill)(nil)
	_ skill.RouteRegistrar = (*Skill)(nil)
)

// New creates the smart plug skill.
func New(cfg Config) *Skill {
	return &Skill{
		cfg:    cfg,
		client: httpc.NewClient(3 * time.Second),
		snaps:  newSnapshotFile(cfg.SnapshotPath),
		logger: log.Component("smartplug"),
	}
}

func (s *Skill) Name() string { return "tomadas" }

func (s *Skill) Mode() skill.Mode { return skill.MatchSubstring }

func (s *Skill) Triggers() []string {
	triggers := append([]string{}, baseNouns...)
	triggers = append(triggers, actionsOn...)
	triggers = append(triggers, actionsOff...)
	triggers = append(triggers, statusTriggers...)
	for nick := range s.cfg.Devices {
		triggers = append(triggers, strings.ToLower(nick))
	}
	for nick := range s.cfg.Sensors {
		triggers = append(triggers, strings.ToLower(nick))
	}
	return triggers
}

func (s *Skill) Handle(lower, _ string) skill.Result {
	action := s.detectAction(lower)
	if action == "" {
		return skill.None()
	}

	targets := s.resolveTargets(lower, action)
	if len(targets) == 0 {
		return skill.None()
	}

	if action == "status" {
		// Only the first target, a full tour would talk forever.
		return s.statusReply(targets[0])
	}
	return s.switchReply(targets, action)
}

func (s *Skill) detectAction(lower string) string {
	for _, w := range actionsOff {
		if strings.Contains(lower, w) {
			return "off"
		}
	}
	for _, w := range actionsOn {
		if strings.Contains(lower, w) {
			return "on"
		}
	}
	for _, w := range statusTriggers {
		if strings.Contains(lower, w) {
			return "status"
		}
	}
	return ""
}

// resolveTargets finds which devices the user means. An exact nickname
// wins; otherwise a generic noun selects every device carrying it.
func (s *Skill) resolveTargets(lower, action string) []string {
	pool := s.cfg.Devices
	if action == "status" {
		pool = make(map[string]string, len(s.cfg.Devices)+len(s.cfg.Sensors))
		for nick, url := range s.cfg.Devices {
			pool[nick] = url
		}
		for nick, url := range s.cfg.Sensors {
			pool[nick] = url
		}
	}

	for nick := range pool {
		if strings.Contains(lower, strings.ToLower(nick)) {
			return []string{nick}
		}
	}

	var targets []string
	for _, noun := range baseNouns {
		if !strings.Contains(lower, noun) {
			continue
		}
		for nick := range pool {
			if strings.Contains(strings.ToLower(nick), noun) {
				targets = append(targets, nick)
			}
		}
	}
	sort.Strings(targets)
	return targets
}

func (s *Skill) statusReply(nick string) skill.Result {
	st, ok := s.StatusFor(nick)
	if !ok || !st.Reachable {
		return skill.Respond(fmt.Sprintf("Não consigo aceder ao %s.", nick))
	}

	resp := fmt.Sprintf("O %s está %s", nick, translateState(st.State))
	if st.PowerW > 0 {
		resp += fmt.Sprintf(" a gastar %.1f Watts", st.PowerW)
	}
	if r, ok := s.snaps.get(nick); ok {
		if r.Temperature != nil {
			resp += fmt.Sprintf(", temperatura %.1f graus", *r.Temperature)
		}
		if r.Humidity != nil {
			resp += fmt.Sprintf(", humidade %d por cento", *r.Humidity)
		}
	}
	return skill.Respond(resp + ".")
}

func (s *Skill) switchReply(targets []string, action string) skill.Result {
	success, failed := 0, 0
	for _, nick := range targets {
		if err := s.Switch(nick, action == "on"); err != nil {
			s.logger.Warn("switch failed", "device", nick, "error", err)
			failed++
		} else {
			success++
		}
	}

	actionStr := "ligado"
	if action == "off" {
		actionStr = "desligado"
	}

	if len(targets) == 1 {
		if failed > 0 {
			return skill.Respond(fmt.Sprintf("Erro ao controlar %s.", targets[0]))
		}
		return skill.Respond(fmt.Sprintf("%s %s.", targets[0], actionStr))
	}
	if failed == 0 {
		return skill.Respond(fmt.Sprintf("Feito. %d dispositivos %ss.", len(targets), actionStr))
	}
	return skill.Respond(fmt.Sprintf(
		"Consegui controlar %d dispositivos, mas %d falharam.", success, failed))
}

// Switch turns a device on or off by nickname.
func (s *Skill) Switch(nick string, on bool) error {
	base, ok := s.cfg.Devices[nick]
	if !ok {
		return fmt.Errorf("smartplug: unknown device %q", nick)
	}
	path := "/off"
	if on {
		path = "/on"
	}

	resp, err := s.client.Post(base+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("smartplug: switch %s: %w", nick, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("smartplug: switch %s: status %d", nick, resp.StatusCode)
	}

	// Reflect the new state immediately instead of waiting for a poll.
	state := "off"
	if on {
		state = "on"
	}
	s.snaps.setState(nick, state)
	return nil
}

// StatusFor reports the last known reading for a device.
func (s *Skill) StatusFor(nick string) (skill.DeviceStatus, bool) {
	if _, known := s.cfg.Devices[nick]; !known {
		if _, known = s.cfg.Sensors[nick]; !known {
			return skill.DeviceStatus{}, false
		}
	}

	r, ok := s.snaps.get(nick)
	if !ok {
		return skill.DeviceStatus{Device: nick, State: "unreachable"}, true
	}
	st := skill.DeviceStatus{
		Device:    nick,
		State:     r.State,
		Reachable: true,
	}
	if r.PowerW != nil {
		st.PowerW = *r.PowerW
	}
	return st, true
}

// Toggles lists the switchable devices.
func (s *Skill) Toggles() []string {
	return sortedKeys(s.cfg.Devices)
}

// Sensors lists the read-only devices.
func (s *Skill) Sensors() []string {
	return sortedKeys(s.cfg.Sensors)
}

// RegisterRoutes exposes the raw readings snapshot.
func (s *Skill) RegisterRoutes(router fiber.Router) {
	router.Get("/plugs", func(c *fiber.Ctx) error {
		return c.JSON(s.snaps.all())
	})
}

// StartDaemon polls every configured device on a fixed interval.
func (s *Skill) StartDaemon(ctx context.Context) {
	if s.cfg.PollInterval <= 0 || len(s.cfg.Devices)+len(s.cfg.Sensors) == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.pollAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.pollAll(ctx)
			}
		}
	}()
}

func (s *Skill) pollAll(ctx context.Context) {
	poll := func(nick, base string) {
		r, err := s.fetchReading(ctx, base)
		if err != nil {
			s.logger.Warn("poll failed", "device", nick, "error", err)
			return
		}
		s.snaps.set(nick, r)
	}
	for nick, base := range s.cfg.Devices {
		poll(nick, base)
	}
	for nick, base := range s.cfg.Sensors {
		poll(nick, base)
	}
	if err := s.snaps.flush(); err != nil {
		s.logger.Warn("snapshot write failed", "error", err)
	}
}

func translateState(state string) string {
	switch state {
	case "on":
		return "ligado"
	case "off":
		return "desligado"
	default:
		return state
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
