package tsvio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadAll reads every row written by a Writer.
func ReadAll(r io.Reader) ([][]string, error) {
	var rows [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		cells := strings.Split(scanner.Text(), "\t")
		for k, c := range cells {
			u, err := unescape(c)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			cells[k] = u
		}
		rows = append(rows, cells)
	}
	return rows, scanner.Err()
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for k := 0; k < len(s); k++ {
		if s[k] != '\\' {
			b.WriteByte(s[k])
			continue
		}
		k++
		if k == len(s) {
			return "", fmt.Errorf("trailing backslash in %q", s)
		}
		switch s[k] {
		case '\\':
			b.WriteByte('\\')
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			return "", fmt.Errorf("unknown escape \\%c in %q", s[k], s)
		}
	}
	return b.String(), nil
}
