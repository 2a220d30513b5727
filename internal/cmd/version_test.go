package cmd

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-03-14")
	t.Cleanup(func() {
		extended = false
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)

	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, Execute())
	assert.Equal(t, "reviews-gateway 1.2.3\n", out.String())

	out.Reset()
	rootCmd.SetArgs([]string{"version", "--extended"})
	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "Commit: abc123\n")
	assert.Contains(t, out.String(), "Built: 2026-03-14\n")
	assert.Contains(t, out.String(), runtime.Version())
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "carrier-pigeon")
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"serve"})
	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rate limit backend")
}
