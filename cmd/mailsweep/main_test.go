package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracyhatemice/mailsweep/internal/config"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"INBOX", "Sent Items"}, splitList(" INBOX, ,Sent Items "))
}

func TestOpenOutput(t *testing.T) {
	var export config.Export
	out, closeOut, err := openOutput(export.GetOutput())
	require.NoError(t, err)
	assert.Same(t, os.Stdout, out)
	assert.NoError(t, closeOut())

	export.Output = filepath.Join(t.TempDir(), "records.jsonl")
	for _, line := range []string{"one", "two"} {
		out, closeOut, err := openOutput(export.GetOutput())
		require.NoError(t, err)
		fmt.Fprintln(out, line)
		require.NoError(t, closeOut())
	}
	data, err := os.ReadFile(export.Output)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "default", sanitize(""))
	assert.Equal(t, "alice_example_com", sanitize("alice@example.com"))
}
