package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pairs":[["kissa","cat"],{"front":"koira","back":"dog"}]}`), 0o644))

	out, err := runCmd(t, "", "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "memory: 2 pairs\n", out)
}

func TestValidateStdin(t *testing.T) {
	out, err := runCmd(t, `{"difficulty":"easy","levels":[{"question":"1+1","choices":["1","2"],"correct":1}]}`, "validate", "-")
	require.NoError(t, err)
	assert.Equal(t, "quiz: 1 questions (easy)\n", out)

	_, err = runCmd(t, `{"levels":[]}`, "validate", "-")
	assert.Error(t, err)
}
