package transcribe

import "strings"

// Whisper invents these on silence or background noise. A transcript that
// is nothing but one of them never came from the user.
var hallucinations = []string{
	".",
	"?",
	"Obrigado",
	"Obrigado.",
	"Legendas pela comunidade Amara.org",
	"Sous-titres réalisés para la communauté d'Amara.org",
}

// Fragments that mark a short transcript as noise. Only applied under
// minTranscriptLen: real short commands ("liga", "sobe") carry none of
// these, while silence-born scraps usually do.
var noiseMarkers = []string{".", "?", "Obrigado", "Sous-titres"}

// minTranscriptLen bounds the noise-marker check; longer transcripts are
// kept even when a marker appears in them.
const minTranscriptLen = 5

// IsHallucination reports whether a transcript should be discarded.
// A transcript is junk when it equals a known hallucination outright, or
// when it is short and carries a noise marker. Length alone never
// discards: short clean commands are valid.
func IsHallucination(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	for _, h := range hallucinations {
		if strings.EqualFold(text, h) {
			return true
		}
	}
	if len([]rune(text)) >= minTranscriptLen {
		return false
	}
	for _, m := range noiseMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// ApplyFixes rewrites known misrecognitions. Matching is case-insensitive
// on the misheard form; replacements keep the configured casing.
func ApplyFixes(text string, fixes map[string]string) string {
	if len(fixes) == 0 {
		return text
	}
	for wrong, right := range fixes {
		wrongLower := strings.ToLower(wrong)
		var b strings.Builder
		rest := text
		for {
			i := strings.Index(strings.ToLower(rest), wrongLower)
			if i < 0 {
				b.WriteString(rest)
				break
			}
			b.WriteString(rest[:i])
			b.WriteString(right)
			rest = rest[i+len(wrongLower):]
		}
		text = b.String()
	}
	return text
}
