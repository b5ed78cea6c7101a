package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostDefault(t *testing.T) {
	t.Setenv("FORGE_HOST", "")
	u := Host()
	require.Equal(t, "http", u.Scheme)
	require.Equal(t, "127.0.0.1:8420", u.Host)
}

func TestHostCustom(t *testing.T) {
	t.Setenv("FORGE_HOST", "0.0.0.0:9000")
	u := Host()
	require.Equal(t, "0.0.0.0:9000", u.Host)
}

func TestIntVarFallsBackOnGarbage(t *testing.T) {
	t.Setenv("FORGE_SESSION_CAPACITY", "not-a-number")
	require.Equal(t, 256, IntVar("FORGE_SESSION_CAPACITY", 256))
}

func TestVarTrimsQuotesAndWhitespace(t *testing.T) {
	t.Setenv("FORGE_MODEL", "  \"/models/llama\"  ")
	require.Equal(t, "/models/llama", Var("FORGE_MODEL"))
}
