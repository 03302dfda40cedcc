package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfalcao/phantasma/pkg/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Qual é o tempo no Porto?", "qual tempo porto"},
		{"qual e o tempo no porto", "qual tempo porto"},
		{"  Quanto   é 2 mais 2?! ", "quanto 2 mais 2"},
		{"Memória, atenção e ação", "memoria atencao acao"},
		{"", ""},
		{"o a de", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeIsSessionIndependent(t *testing.T) {
	// Same text always yields the same key; the key is a pure function
	// of the prompt.
	a := Normalize("Liga a luz da sala")
	b := Normalize("liga a luz da sala")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(openTestDB(t))

	require.NoError(t, c.Put("Qual é a capital de França?", "É Paris."))

	got, ok := c.Get("qual a capital de frança")
	assert.True(t, ok)
	assert.Equal(t, "É Paris.", got)
}

func TestGetMiss(t *testing.T) {
	c := New(openTestDB(t))

	_, ok := c.Get("nunca perguntado")
	assert.False(t, ok)
}

func TestExpiredEntryIsMissButStaysInPlace(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	db := openTestDB(t)
	c := New(db, WithTTL(time.Hour), WithClock(clock))

	require.NoError(t, c.Put("pergunta", "resposta antiga"))

	// Inside the TTL: hit.
	now = now.Add(59 * time.Minute)
	got, ok := c.Get("pergunta")
	assert.True(t, ok)
	assert.Equal(t, "resposta antiga", got)

	// Past the TTL: miss, but the row still exists.
	now = now.Add(2 * time.Minute)
	_, ok = c.Get("pergunta")
	assert.False(t, ok)

	var count int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM responses").Scan(&count))
	assert.Equal(t, 1, count)

	// A fresh put overwrites the expired entry and revives the key.
	require.NoError(t, c.Put("pergunta", "resposta nova"))
	got, ok = c.Get("pergunta")
	assert.True(t, ok)
	assert.Equal(t, "resposta nova", got)

	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM responses").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPutUpsertsByKey(t *testing.T) {
	db := openTestDB(t)
	c := New(db)

	require.NoError(t, c.Put("Que horas são?", "dez horas"))
	require.NoError(t, c.Put("que horas sao", "onze horas"))

	got, ok := c.Get("Que horas são?")
	assert.True(t, ok)
	assert.Equal(t, "onze horas", got)

	var count int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM responses").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEmptyPromptOrResponseIgnored(t *testing.T) {
	c := New(openTestDB(t))

	require.NoError(t, c.Put("", "algo"))
	require.NoError(t, c.Put("algo", ""))

	_, ok := c.Get("")
	assert.False(t, ok)
	_, ok = c.Get("algo")
	assert.False(t, ok)
}
