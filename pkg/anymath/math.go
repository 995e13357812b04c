// Package anymath holds the arithmetic shared by constant folding, the
// memory index, and the executor so the three agree on every operator.
// Document metrics are int64 and division or modulus by zero yields zero.
// Aggregates are float64 and follow IEEE semantics.
package anymath

import "math"

type Int64 func(int64, int64) int64
type Float64 func(float64, float64) float64

type Function struct {
	Int64
	Float64
}

var Add = &Function{
	Int64:   func(a, b int64) int64 { return a + b },
	Float64: func(a, b float64) float64 { return a + b },
}

var Sub = &Function{
	Int64:   func(a, b int64) int64 { return a - b },
	Float64: func(a, b float64) float64 { return a - b },
}

var Mul = &Function{
	Int64:   func(a, b int64) int64 { return a * b },
	Float64: func(a, b float64) float64 { return a * b },
}

var Div = &Function{
	Int64: func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a / b
	},
	Float64: func(a, b float64) float64 { return a / b },
}

var Mod = &Function{
	Int64: func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a % b
	},
	Float64: math.Mod,
}

var Min = &Function{
	Int64:   func(a, b int64) int64 { return min(a, b) },
	Float64: func(a, b float64) float64 { return math.Min(a, b) },
}

var Max = &Function{
	Int64:   func(a, b int64) int64 { return max(a, b) },
	Float64: func(a, b float64) float64 { return math.Max(a, b) },
}

// Lookup returns the function for a binary operator or function name, or
// nil when there is none.
func Lookup(op string) *Function {
	switch op {
	case "+":
		return Add
	case "-":
		return Sub
	case "*":
		return Mul
	case "/":
		return Div
	case "%":
		return Mod
	case "min":
		return Min
	case "max":
		return Max
	}
	return nil
}

// Unary applies an aggregate unary operator.
func Unary(op string, v float64) (float64, bool) {
	switch op {
	case "-":
		return -v, true
	case "abs":
		return math.Abs(v), true
	case "log":
		return math.Log(v), true
	case "floor":
		return math.Floor(v), true
	case "ceil":
		return math.Ceil(v), true
	case "sqrt":
		return math.Sqrt(v), true
	}
	return 0, false
}

// UnaryInt64 applies a document unary operator.
func UnaryInt64(op string, v int64) (int64, bool) {
	switch op {
	case "-":
		return -v, true
	case "abs":
		if v < 0 {
			return -v, true
		}
		return v, true
	}
	return 0, false
}

type ordered interface {
	~int64 | ~float64
}

// Compare applies a comparison operator.  The second result is false for
// an unknown operator.
func Compare[T ordered](op string, a, b T) (bool, bool) {
	switch op {
	case "=":
		return a == b, true
	case "!=":
		return a != b, true
	case "<":
		return a < b, true
	case "<=":
		return a <= b, true
	case ">":
		return a > b, true
	case ">=":
		return a >= b, true
	}
	return false, false
}
