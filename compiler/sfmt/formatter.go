package sfmt

import (
	"fmt"
	"strings"
)

type formatter struct {
	strings.Builder
	indent  int
	tab     int
	needRet bool
}

func (f *formatter) write(format string, args ...any) {
	if len(args) == 0 {
		f.WriteString(format)
		return
	}
	fmt.Fprintf(&f.Builder, format, args...)
}

func (f *formatter) writeTab() {
	for range f.indent {
		f.WriteByte(' ')
	}
}

func (f *formatter) open(args ...any) {
	if len(args) > 0 {
		f.write(args[0].(string), args[1:]...)
	}
	f.indent += f.tab
}

func (f *formatter) close() {
	f.indent -= f.tab
}

func (f *formatter) ret() {
	f.WriteByte('\n')
	f.writeTab()
	f.needRet = false
}

func (f *formatter) flush() {
	if f.needRet {
		f.WriteByte('\n')
		f.needRet = false
	}
}

func needsparens(parent, op string) bool {
	return precedence(parent)-precedence(op) < 0
}

func precedence(op string) int {
	switch op {
	case "not":
		return 1
	case "*", "/", "%":
		return 3
	case "+", "-":
		return 4
	case "<", "<=", ">", ">=", "=", "!=", "in":
		return 5
	case "and":
		return 6
	case "or":
		return 7
	default:
		return 100
	}
}
