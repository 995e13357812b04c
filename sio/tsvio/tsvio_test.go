package tsvio_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/brimdata/sift/sio/tsvio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := tsvio.NewWriter(tsvio.NopCloser(&buf), tsvio.WriterOpts{Header: []string{"tk", "count()"}})
	require.NoError(t, w.Write([]string{"a", "4"}))
	require.NoError(t, w.Write([]string{"", "151"}))
	require.NoError(t, w.Close())
	assert.Equal(t, "tk\tcount()\na\t4\n\t151\n", buf.String())
	assert.Equal(t, 2, w.Rows())
}

func TestEscapes(t *testing.T) {
	rows := [][]string{
		{"tab\there", "1"},
		{"line\nbreak", `back\slash`},
		{"[2015-01-01 00:00:00, 2015-01-01 01:00:00)", "10"},
	}
	var buf bytes.Buffer
	w := tsvio.NewWriter(tsvio.NopCloser(&buf), tsvio.WriterOpts{})
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
	out, err := tsvio.ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestBadEscape(t *testing.T) {
	_, err := tsvio.ReadAll(strings.NewReader("a\\q\t1\n"))
	assert.EqualError(t, err, `line 1: unknown escape \q in "a\\q"`)
}
