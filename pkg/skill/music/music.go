// Package music starts random playback from the local music directory.
package music

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/skill"
)

// Player is the audio output the skill drives. Announce voices a short
// phrase and blocks until it has been said; PlayFile starts background
// playback of an audio file and returns once it is under way.
type Player interface {
	Announce(text string)
	PlayFile(path string) error
}

// Playable file extensions.
var extensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".flac": {}, ".ogg": {}, ".m4a": {},
}

// Verbs that signal intent to start playback, as opposed to merely
// mentioning music.
var actions = []string{"toca", "mete", "coloca", "põe"}

// Skill plays a random song when asked.
type Skill struct {
	dir    string
	player Player

	// pick selects a song from candidates. Swapped out in tests.
	pick func(candidates []string) string
}

var _ skill.Skill = (*Skill)(nil)

// New creates the music skill over the given directory and player.
func New(dir string, player Player) *Skill {
	return &Skill{
		dir:    dir,
		player: player,
		pick: func(candidates []string) string {
			return candidates[rand.Intn(len(candidates))]
		},
	}
}

func (s *Skill) Name() string { return "música" }

func (s *Skill) Mode() skill.Mode { return skill.MatchSubstring }

func (s *Skill) Triggers() []string { return []string{"música", "som"} }

func (s *Skill) Handle(lower, _ string) skill.Result {
	hasAction := false
	for _, a := range actions {
		if strings.Contains(lower, a) {
			hasAction = true
			break
		}
	}
	// "música" alone counts as a command; a longer sentence needs a verb
	// so chatter about music falls through to the model.
	if !hasAction && len(strings.Fields(lower)) > 2 {
		return skill.None()
	}

	songs := s.listSongs()
	if len(songs) == 0 {
		return skill.Respond(fmt.Sprintf("Desculpa, chefe, não encontrei nenhuma música em %s.", s.dir))
	}

	song := s.pick(songs)

	// The confirmation is voiced before the song takes the output slot;
	// once playback starts, anything spoken would cut it off.
	s.player.Announce("A postos! A tocar música.")
	if err := s.player.PlayFile(song); err != nil {
		log.Component("music").Warn("playback failed", "song", song, "error", err)
		return skill.Respond("Desculpa, chefe, não consegui tocar a música.")
	}

	log.Component("music").Info("playing", "song", filepath.Base(song))
	return skill.Final("A postos! A tocar música.")
}

func (s *Skill) listSongs() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var songs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			songs = append(songs, filepath.Join(s.dir, e.Name()))
		}
	}
	return songs
}
