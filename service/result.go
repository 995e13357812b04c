package service

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/brimdata/sift/runtime/exec"
	"github.com/brimdata/sift/sio/tsvio"
)

// resultTag starts the first line of a cached result.  The line also
// carries the truncation flag and is followed by the rows.  Column names
// are not stored since they are not part of the cache key.
const resultTag = "sift-result-v2"

func encodeResult(res *exec.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := tsvio.NewWriter(tsvio.NopCloser(&buf), tsvio.WriterOpts{})
	if err := w.Write([]string{resultTag, strconv.FormatBool(res.Truncated)}); err != nil {
		return nil, err
	}
	for _, row := range res.Strings() {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type decoded struct {
	rows      [][]string
	truncated bool
}

func decodeResult(r io.Reader) (*decoded, error) {
	lines, err := tsvio.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(lines) < 1 || len(lines[0]) != 2 || lines[0][0] != resultTag {
		return nil, fmt.Errorf("cached result has no %s header", resultTag)
	}
	truncated, err := strconv.ParseBool(lines[0][1])
	if err != nil {
		return nil, fmt.Errorf("cached result: %w", err)
	}
	return &decoded{
		rows:      lines[1:],
		truncated: truncated,
	}, nil
}
