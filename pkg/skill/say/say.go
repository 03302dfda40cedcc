// Package say repeats whatever follows the "diz" command through speech
// output, keeping the user's original casing and punctuation so the
// synthesis intonation stays natural.
package say

import (
	"strings"

	"github.com/mfalcao/phantasma/pkg/skill"
)

const trigger = "diz"

// Skill voices arbitrary text on request.
type Skill struct{}

var _ skill.Skill = (*Skill)(nil)

// New creates the say skill.
func New() *Skill {
	return &Skill{}
}

func (s *Skill) Name() string { return "diz" }

func (s *Skill) Mode() skill.Mode { return skill.MatchPrefix }

func (s *Skill) Triggers() []string { return []string{trigger} }

func (s *Skill) Handle(_, original string) skill.Result {
	message := ""
	if len(original) > len(trigger) {
		message = strings.TrimSpace(original[len(trigger):])
	}
	if message == "" {
		return skill.Respond("Não me disseste o que é para dizer.")
	}

	res := skill.Respond(message)
	// Spoken even while other output is playing.
	res.ForceSpeak = true
	return res
}
