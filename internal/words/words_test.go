package words

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"kissa", "KISSA"},
		{"  pöllö ", "PÖLLÖ"},
		{"jää-kiekko", "JÄÄ-KIEKKO"},
		{"ice   cream", "ICE CREAM"},
		{"r2d2", "RD"},
		{"123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsLetter(t *testing.T) {
	for _, r := range Alphabet {
		assert.True(t, IsLetter(r), string(r))
	}
	assert.False(t, IsLetter('a'))
	assert.False(t, IsLetter('-'))
	assert.False(t, IsLetter('Ü'))
}

func TestPick(t *testing.T) {
	assert.Empty(t, Pick(nil))
	list := []string{"A", "B", "C"}
	for i := 0; i < 20; i++ {
		assert.Contains(t, list, Pick(list))
	}
}

func TestReadWordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nkissa\n\n 42 \nmökki\n"), 0o644))

	got, err := readWordFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"KISSA", "MÖKKI"}, got)

	_, err = readWordFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestInitEmbedded(t *testing.T) {
	t.Setenv("HANGMAN_WORDS_FILE", "")
	require.NoError(t, Init())
	assert.Greater(t, Stats(), 0)
	assert.Contains(t, List(), RandomWord())
	for _, w := range List() {
		assert.Equal(t, w, Normalize(w), "embedded list is normalised")
	}
}
