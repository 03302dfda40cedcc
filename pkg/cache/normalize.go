package cache

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Portuguese stop words removed from cache keys. Short function words carry
// no meaning for lookup and removing them folds paraphrases together.
var stopWords = map[string]struct{}{
	"o": {}, "a": {}, "os": {}, "as": {},
	"um": {}, "uma": {}, "uns": {}, "umas": {},
	"de": {}, "do": {}, "da": {}, "dos": {}, "das": {},
	"no": {}, "na": {}, "nos": {}, "nas": {},
	"em": {}, "ao": {}, "aos": {}, "pelo": {}, "pela": {},
	"que": {}, "e": {}, "ou": {}, "se": {},
	"por": {}, "para": {}, "com": {}, "sem": {},
	// Accentless forms: keys are matched after diacritic stripping,
	// so "é" arrives as "e" and "está" as "esta".
	"foi": {}, "ser": {}, "esta": {},
	"me": {}, "te": {}, "lhe": {},
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize derives the cache key for a prompt: lower-case, accents and
// punctuation stripped, stop words dropped, whitespace collapsed.
// The key depends on the prompt text only, never on session state.
func Normalize(prompt string) string {
	lower := strings.ToLower(strings.TrimSpace(prompt))

	folded, _, err := transform.String(stripAccents, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
		// Punctuation and symbols are dropped entirely.
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, skip := stopWords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}

	return strings.Join(kept, " ")
}
