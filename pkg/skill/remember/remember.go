// Package remember stores dictated facts in the personal memory log.
package remember

import (
	"fmt"
	"strings"

	"github.com/mfalcao/phantasma/pkg/skill"
)

// Recorder persists a remembered fact.
type Recorder interface {
	Append(text string) error
}

// Skill captures "memoriza ..." style commands.
type Skill struct {
	rec Recorder
}

var _ skill.Skill = (*Skill)(nil)

// New creates the remember skill over the given recorder.
func New(rec Recorder) *Skill {
	return &Skill{rec: rec}
}

func (s *Skill) Name() string { return "memória" }

func (s *Skill) Mode() skill.Mode { return skill.MatchPrefix }

func (s *Skill) Triggers() []string {
	return []string{"memoriza", "lembra-te disto", "grava isto", "guarda isto", "anota"}
}

func (s *Skill) Handle(lower, original string) skill.Result {
	var text string
	for _, trig := range s.Triggers() {
		if strings.HasPrefix(lower, trig) {
			// Cut from the original so casing survives.
			text = strings.TrimSpace(original[len(trig):])
			break
		}
	}

	if text == "" {
		return skill.Respond("Não percebi o que era para memorizar. Repete lá isso!")
	}
	if err := s.rec.Append(text); err != nil {
		return skill.Respond("Não consegui guardar isso agora.")
	}
	return skill.Respond(fmt.Sprintf("Entendido, chefe! Memorizado: %s", text))
}
