package queryflags

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.iql")
	require.NoError(t, os.WriteFile(path, []byte("FROM organic yesterday today"), 0644))
	var f Flags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f.SetFlags(fs)
	require.NoError(t, fs.Parse([]string{"-I", path, "-c", "GROUP BY tk", "-now", "2015-01-02 00:00:00", "-nocache"}))
	text, err := f.Text(fs.Args())
	require.NoError(t, err)
	assert.Equal(t, "FROM organic yesterday today\nGROUP BY tk", text)
	req, err := f.Request(text, "-06:00")
	require.NoError(t, err)
	assert.True(t, req.NoCache)
	assert.Equal(t, time.Date(2015, 1, 2, 6, 0, 0, 0, time.UTC), req.Now.UTC())
}

func TestNoQuery(t *testing.T) {
	var f Flags
	_, err := f.Text(nil)
	assert.Error(t, err)
}
