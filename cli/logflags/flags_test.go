package logflags

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestFileLogging(t *testing.T) {
	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.SetFlags(fs)
	path := filepath.Join(t.TempDir(), "sift.log")
	require.NoError(t, fs.Parse([]string{"-log.encoding", "json", "-log.file", path}))
	require.NoError(t, f.Apply(Visited(fs), "debug", "console", "ignored.log"))
	assert.Equal(t, zapcore.DebugLevel, f.Level)
	assert.Equal(t, "json", f.Encoding)
	logger, err := f.Open()
	require.NoError(t, err)
	logger.Debug("hello")
	require.NoError(t, logger.Sync())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
}

func TestBadEncoding(t *testing.T) {
	f := Flags{Encoding: "xml"}
	_, err := f.Open()
	assert.EqualError(t, err, `unknown log encoding "xml"`)
}
