// Package tsvio streams result rows as tab-separated lines.  Tabs,
// newlines, carriage returns, and backslashes inside a cell are escaped
// with a backslash so every row is exactly one line.
package tsvio

import (
	"bufio"
	"io"
	"strings"
)

var escaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

type Writer struct {
	writer io.WriteCloser
	buf    *bufio.Writer
	header []string
	rows   int
}

type WriterOpts struct {
	// Header, when not nil, is written before the first row.
	Header []string
}

func NewWriter(w io.WriteCloser, opts WriterOpts) *Writer {
	return &Writer{
		writer: w,
		buf:    bufio.NewWriter(w),
		header: opts.Header,
	}
}

func (w *Writer) Write(row []string) error {
	if w.header != nil {
		header := w.header
		w.header = nil
		if err := w.writeLine(header); err != nil {
			return err
		}
	}
	w.rows++
	return w.writeLine(row)
}

func (w *Writer) writeLine(cells []string) error {
	for k, c := range cells {
		if k > 0 {
			if err := w.buf.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := escaper.WriteString(w.buf, c); err != nil {
			return err
		}
	}
	return w.buf.WriteByte('\n')
}

// Rows returns the number of rows written, not counting the header.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Flush() error {
	return w.buf.Flush()
}

func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.writer.Close()
		return err
	}
	return w.writer.Close()
}

// NopCloser adapts a writer whose lifetime is managed elsewhere.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
