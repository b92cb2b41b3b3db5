package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir()) // no stray .env
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeyCmd(t *testing.T) {
	out, err := run(t, "key", "hello", "--encoding", "hashcode")
	require.NoError(t, err)
	assert.Equal(t, "hello\t99162322\n", out)

	out, err = run(t, "key", "abc", "--encoding", "sha1")
	require.NoError(t, err)
	assert.Equal(t, "abc\ta9993e364706816aba3e25717850c26c9cd0d89d\n", out)

	_, err = run(t, "key", "x", "--encoding", "md5")
	assert.Error(t, err)
}

func TestProbeCmd_Standalone(t *testing.T) {
	mr := miniredis.RunT(t)
	out, err := run(t, "probe", "--log-level", "error", "--master", mr.Addr(), "--replicas", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "state=standalone")
	assert.Contains(t, out, "standalone=true")
}

func TestProbeCmd_WatchCount(t *testing.T) {
	mr := miniredis.RunT(t)
	out, err := run(t, "probe", "--log-level", "error", "--master", mr.Addr(),
		"--watch", "10ms", "--count", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "state=standalone"))
}

func TestBenchCmd_Local(t *testing.T) {
	t.Setenv("CACHE_KIND", "local")
	out, err := run(t, "bench", "--log-level", "error", "--http", "", "--duration", "50ms",
		"--cap", "64", "--keys", "256", "--workers", "2", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "kind=local cap=64")
	assert.Contains(t, out, "hit-rate=")
}

func TestRoot_BadLogLevel(t *testing.T) {
	_, err := run(t, "probe", "--log-level", "loud", "--master", "127.0.0.1:1")
	assert.Error(t, err)
}
