package memory

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

func TestAppendAndRetrieve(t *testing.T) {
	l := New(openTestDB(t))

	require.NoError(t, l.Append("O aniversário da Maria é em julho"))
	require.NoError(t, l.Append("O carro está na oficina"))

	got := l.Retrieve("quando é o aniversário da maria?", 5)
	assert.Equal(t, "- O aniversário da Maria é em julho", got)
}

func TestRetrieveNewestFirstAndLimited(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(openTestDB(t), WithClock(func() time.Time {
		now = now.Add(time.Minute)
		return now
	}))

	require.NoError(t, l.Append("comprar pão amanhã"))
	require.NoError(t, l.Append("comprar leite amanhã"))
	require.NoError(t, l.Append("comprar café amanhã"))

	got := l.Retrieve("o que é para comprar?", 2)
	assert.Equal(t, "- comprar café amanhã\n- comprar leite amanhã", got)
}

func TestRetrieveNoMatch(t *testing.T) {
	l := New(openTestDB(t))

	require.NoError(t, l.Append("a chave está debaixo do tapete"))

	assert.Empty(t, l.Retrieve("qual tempo faz hoje?", 5))
}

func TestRetrieveIgnoresShortWords(t *testing.T) {
	l := New(openTestDB(t))

	require.NoError(t, l.Append("eu sou de Lisboa"))

	// Every word in the prompt is under the keyword threshold.
	assert.Empty(t, l.Retrieve("eu e tu", 5))
}

func TestAppendIgnoresEmptyText(t *testing.T) {
	db := openTestDB(t)
	l := New(db)

	require.NoError(t, l.Append("   "))

	var count int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM memories").Scan(&count))
	assert.Zero(t, count)
}
