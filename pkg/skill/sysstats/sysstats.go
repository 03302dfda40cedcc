// Package sysstats reports host load, CPU, memory and disk usage.
package sysstats

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/skill"
)

// Stats is one reading of the host's vitals, all in percent.
type Stats struct {
	Load   float64
	CPU    float64
	Memory float64
	Disk   float64
}

// Prober takes a reading. Swapped out in tests.
type Prober func() (Stats, error)

// Skill answers "como está o sistema" with live usage numbers.
type Skill struct {
	probe Prober
}

var _ skill.Skill = (*Skill)(nil)

// Option configures the skill.
type Option func(*Skill)

// WithProber injects a probe function. Test use only.
func WithProber(p Prober) Option {
	return func(s *Skill) { s.probe = p }
}

// New creates the system stats skill.
func New(opts ...Option) *Skill {
	s := &Skill{probe: probeHost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Name() string { return "sistema" }

func (s *Skill) Mode() skill.Mode { return skill.MatchSubstring }

func (s *Skill) Triggers() []string {
	return []string{"como está o sistema", "estado do sistema", "monitorização"}
}

func (s *Skill) Handle(_, _ string) skill.Result {
	stats, err := s.probe()
	if err != nil {
		log.Component("sysstats").Warn("probe failed", "error", err)
		return skill.Respond("Desculpa, não consegui verificar o estado do sistema.")
	}
	return skill.Respond(fmt.Sprintf(
		"O sistema está assim: Carga: %.1f%%. CPU: %.1f%%. Memória: %.1f%%. Disco: %.1f%%.",
		stats.Load, stats.CPU, stats.Memory, stats.Disk,
	))
}

func probeHost() (Stats, error) {
	var stats Stats

	avg, err := load.Avg()
	if err != nil {
		return stats, fmt.Errorf("sysstats: load: %w", err)
	}
	cores, err := cpu.Counts(true)
	if err != nil || cores == 0 {
		cores = 1
	}
	stats.Load = avg.Load1 / float64(cores) * 100

	// A short sampling window gives a usable reading without stalling
	// the response.
	usage, err := cpu.Percent(500*time.Millisecond, false)
	if err != nil || len(usage) == 0 {
		return stats, fmt.Errorf("sysstats: cpu: %w", err)
	}
	stats.CPU = usage[0]

	vm, err := mem.VirtualMemory()
	if err != nil {
		return stats, fmt.Errorf("sysstats: memory: %w", err)
	}
	stats.Memory = vm.UsedPercent

	du, err := disk.Usage("/")
	if err != nil {
		return stats, fmt.Errorf("sysstats: disk: %w", err)
	}
	stats.Disk = du.UsedPercent

	return stats, nil
}
