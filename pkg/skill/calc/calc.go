// Package calc answers arithmetic questions locally.
//
// Spoken Portuguese arrives as words ("dois mais dois", "a dividir por")
// and locale-formatted numbers (comma decimals, dot thousands). The skill
// rewrites the phrase into an infix expression and evaluates it; anything
// it cannot parse falls through to the model.
package calc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mfalcao/phantasma/pkg/skill"
)

// Skill evaluates arithmetic found anywhere in the transcript.
type Skill struct{}

var _ skill.Skill = (*Skill)(nil)

// New creates the calculator skill.
func New() *Skill {
	return &Skill{}
}

func (s *Skill) Name() string { return "calculadora" }

func (s *Skill) Mode() skill.Mode { return skill.MatchSubstring }

func (s *Skill) Triggers() []string {
	return []string{
		"quanto é", "quantos são", "calcula",
		"dividir", "a dividir", "dividido",
		"vezes", "multiplicado",
		"mais", "somado",
		"menos", "subtraído",
		"+", "-", "*", "x", "/",
	}
}

// Question prefixes stripped before parsing, longest first so "o que achas
// de" wins over "o que achas".
var prefixes = []string{
	"quanto é", "quantos são", "calcula", "diz-me", "sabes",
	"o que achas de", "o que achas", "o que te parece",
}

var numberWords = map[string]string{
	"zero": "0", "um": "1", "dois": "2", "três": "3", "quatro": "4",
	"cinco": "5", "seis": "6", "sete": "7", "oito": "8", "nove": "9",
	"dez": "10",
}

// Spoken operator forms, rewritten longest first so "a dividir por" is not
// mangled by the bare "dividir" rule.
var operatorWords = []struct{ from, to string }{
	{"multiplicado por", "*"},
	{"a dividir por", "/"},
	{"dividido por", "/"},
	{"dividir por", "/"},
	{"a dividir", "/"},
	{"dividido", "/"},
	{"dividir", "/"},
	{"somado a", "+"},
	{"subtraído de", "-"},
	{"vezes", "*"},
	{"mais", "+"},
	{"menos", "-"},
}

func (s *Skill) Handle(lower, _ string) skill.Result {
	expr := lower
	for _, p := range prefixes {
		if strings.HasPrefix(expr, p) {
			expr = strings.TrimSpace(expr[len(p):])
			break
		}
	}
	expr = strings.TrimRight(expr, ".?!")

	expr = rewriteNumbers(expr)
	expr = rewriteOperators(expr)
	expr = keepArithmetic(expr)

	if !strings.ContainsFunc(expr, unicode.IsDigit) {
		return skill.None()
	}

	result, err := evaluate(expr)
	if err != nil {
		if err == errDivideByZero {
			return skill.Respond("Não é possível dividir por zero.")
		}
		return skill.None()
	}

	return skill.Respond(fmt.Sprintf("O resultado é %s.", formatNumber(result)))
}

// rewriteNumbers normalizes Portuguese number formatting and spells out
// small number words: "1.108" -> "1108", "1,5" -> "1.5", "dois" -> "2".
func rewriteNumbers(expr string) string {
	words := strings.Fields(expr)
	for i, w := range words {
		if n, ok := numberWords[w]; ok {
			words[i] = n
		}
	}
	expr = strings.Join(words, " ")

	expr = stripThousandSeparators(expr)
	return strings.ReplaceAll(expr, ",", ".")
}

// stripThousandSeparators removes a dot between a digit and exactly three
// trailing digits, e.g. "1.108" -> "1108" but not "1.5".
func stripThousandSeparators(expr string) string {
	var b strings.Builder
	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' && i > 0 && unicode.IsDigit(runes[i-1]) {
			digits := 0
			for j := i + 1; j < len(runes) && unicode.IsDigit(runes[j]); j++ {
				digits++
			}
			if digits == 3 {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rewriteOperators(expr string) string {
	for _, op := range operatorWords {
		expr = strings.ReplaceAll(expr, op.from, op.to)
	}
	// "x" as multiplication only when it stands alone between terms.
	words := strings.Fields(expr)
	for i, w := range words {
		if w == "x" {
			words[i] = "*"
		}
	}
	return strings.Join(words, " ")
}

func keepArithmetic(expr string) string {
	var b strings.Builder
	for _, r := range expr {
		switch {
		case unicode.IsDigit(r), r == '.', r == '+', r == '-', r == '*', r == '/',
			r == '(', r == ')', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	rounded := strconv.FormatFloat(v, 'f', 2, 64)
	rounded = strings.TrimRight(rounded, "0")
	rounded = strings.TrimRight(rounded, ".")
	return strings.Replace(rounded, ".", ",", 1)
}
