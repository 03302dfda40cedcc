package inference

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAssemblesSections(t *testing.T) {
	b := &Builder{SystemPrompt: "És o Phantasma, assistente local."}

	prompt := b.Build("qual é a capital de França?",
		"- o chefe gosta de Paris", "- Paris é a capital de França", "")

	assert.True(t, strings.HasPrefix(prompt, "És o Phantasma, assistente local."))
	assert.Contains(t, prompt, "### CONHECIMENTO DISPONÍVEL")
	assert.Contains(t, prompt, "- o chefe gosta de Paris\n- Paris é a capital de França")
	assert.Contains(t, prompt, "### INSTRUÇÃO DE RESPOSTA")
	assert.True(t, strings.HasSuffix(prompt, "Utilizador: qual é a capital de França?"))
}

func TestBuildSkipsEmptyBlocks(t *testing.T) {
	b := &Builder{SystemPrompt: "persona"}

	prompt := b.Build("pergunta", "", "", "Facto apurado localmente: 22 graus")
	assert.Contains(t, prompt, "### CONHECIMENTO DISPONÍVEL (Usa apenas para factos):\nFacto apurado localmente: 22 graus")
}

func TestSanitizeStripsResidue(t *testing.T) {
	raw := "MEMÓRIAS PESSOAIS relevantes abaixo.\n\n" +
		"[2024-03-01 12:00] o chefe gosta de fado\n" +
		"**Sombra** não é um cabeçalho\n" +
		"Silêncio: também não\n" +
		"NOTA: Se houver contradições ignora.\n" +
		"facto útil"

	got := Sanitize(raw)
	assert.NotContains(t, got, "MEMÓRIAS PESSOAIS")
	assert.NotContains(t, got, "[2024-03-01")
	assert.NotContains(t, got, "**Sombra**")
	assert.NotContains(t, got, "Silêncio:")
	assert.NotContains(t, got, "NOTA:")
	assert.Contains(t, got, "o chefe gosta de fado")
	assert.Contains(t, got, "facto útil")
}

func TestSanitizeEmpty(t *testing.T) {
	assert.Empty(t, Sanitize(""))
	assert.Empty(t, Sanitize("   \n  "))
}
