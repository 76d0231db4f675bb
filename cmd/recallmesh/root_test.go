package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/recallmesh"
	"github.com/hupe1980/recallmesh/internal/testutil"
	"github.com/hupe1980/recallmesh/window"
)

func offline(o *recallmesh.Options) {
	o.Model = testutil.MemoryAwareModel()
	o.Tokenizer = window.RuneTokenizer{}
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0")

	assert.Equal(t, "recallmesh", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)

	for _, name := range []string{"config", "log-level", "provider", "model"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"chat", "serve", "mcp"}, names)
}

func runChat(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCmd("test", offline)

	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"chat", "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestChat_RemembersWithinSession(t *testing.T) {
	input := "Remember that I prefer aisle seats.\n\nWhich seat do I like?\nexit\n"

	out, _, err := runChat(t, input, "--owner", "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "ai> Got it, I'll remember that.")
	assert.Contains(t, out, "ai> You prefer aisle seats.")
	assert.Equal(t, 4, strings.Count(out, "you> "))
}

func TestChat_EndOfInput(t *testing.T) {
	out, _, err := runChat(t, "hello", "--owner", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "ai> You said: hello")
}

func TestChat_Verbose(t *testing.T) {
	_, stderr, err := runChat(t, "Remember that I like tea.\nquit\n", "--owner", "u1", "--verbose")
	require.NoError(t, err)

	assert.Contains(t, stderr, "[load_memories]")
	assert.Contains(t, stderr, `call save_memory({"memory":"I like tea"})`)
	assert.Contains(t, stderr, "result save_memory=I like tea")
	assert.Contains(t, stderr, "[__end__]")
}

func TestChat_RequiresOwner(t *testing.T) {
	_, _, err := runChat(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}
