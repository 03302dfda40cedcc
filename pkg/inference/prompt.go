package inference

import (
	"fmt"
	"regexp"
	"strings"
)

// Builder assembles the final model prompt from the persona, retrieved
// context and the user's question.
type Builder struct {
	// SystemPrompt is the persona text placed at the top.
	SystemPrompt string
}

// Build assembles the prompt. memories, web and skillFact are optional
// context blocks that were already sanitized.
func (b *Builder) Build(userPrompt, memories, web, skillFact string) string {
	var knowledge []string
	for _, block := range []string{memories, web, skillFact} {
		if block != "" {
			knowledge = append(knowledge, block)
		}
	}

	return fmt.Sprintf(
		"%s\n\n"+
			"### CONHECIMENTO DISPONÍVEL (Usa apenas para factos):\n%s\n\n"+
			"### INSTRUÇÃO DE RESPOSTA:\n"+
			"Responde de forma fluida e direta. NÃO uses cabeçalhos nem listas. "+
			"NÃO digas que a pergunta é irrelevante. Sê um assistente, não um juiz.\n\n"+
			"Utilizador: %s",
		b.SystemPrompt, strings.Join(knowledge, "\n"), userPrompt)
}

// Retrieved context picks up technical residue over time: retrieval
// headers, timestamps, and headings the model itself once generated and
// then re-learned. All of it gets stripped before prompt assembly.
var (
	memoryHeaderPattern = regexp.MustCompile(`(?is)MEMÓRIAS PESSOAIS.*?\n\n`)
	notePattern         = regexp.MustCompile(`(?i)NOTA: Se houver contradições[^\n]*\n?`)
	timestampPattern    = regexp.MustCompile(`\[\d{4}-\d{2}-\d{2}[^\]]*\]`)

	poisonTerms = []string{"Sombra", "Aquietação", "Fim", "Silêncio", "Fúria da Memória"}
	poisonPatterns = func() []*regexp.Regexp {
		var out []*regexp.Regexp
		for _, term := range poisonTerms {
			quoted := regexp.QuoteMeta(term)
			out = append(out,
				regexp.MustCompile(`(?i)\*\*`+quoted+`\*\*`),
				regexp.MustCompile(`(?i)`+quoted+`:`),
			)
		}
		return out
	}()
)

// Sanitize cleans a retrieved context block for prompt use.
func Sanitize(context string) string {
	if context == "" {
		return ""
	}
	context = memoryHeaderPattern.ReplaceAllString(context, "")
	context = notePattern.ReplaceAllString(context, "")
	context = timestampPattern.ReplaceAllString(context, "")
	for _, p := range poisonPatterns {
		context = p.ReplaceAllString(context, "")
	}
	return strings.TrimSpace(context)
}
