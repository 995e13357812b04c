package semantic

import (
	"regexp/syntax"
	"slices"
	"strconv"
	"strings"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

// aggregateFuncs are the functions that make an expression an aggregate.
var aggregateFuncs = map[string]bool{
	"count":      true,
	"sum":        true,
	"avg":        true,
	"variance":   true,
	"stddev":     true,
	"distinct":   true,
	"percentile": true,
	"field_min":  true,
	"field_max":  true,
	"parent":     true,
	"lag":        true,
	"window":     true,
	"running":    true,
	"sum_over":   true,
	"log":        true,
	"floor":      true,
	"ceil":       true,
	"sqrt":       true,
}

// filterFuncs are the functions that denote a document filter.
var filterFuncs = map[string]bool{
	"hasstr": true,
	"hasint": true,
	"sample": true,
}

func isArith(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}

func isComparison(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// isAggregate reports whether e must be evaluated per group, i.e., it
// calls an aggregate function or names a SELECT alias.
func (t *translator) isAggregate(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.ID:
		return t.isMetricAlias(e) && t.termField(e) == nil
	case *ast.Primitive:
		return false
	case *ast.UnaryExpr:
		return t.isAggregate(e.Operand)
	case *ast.BinaryExpr:
		return t.isAggregate(e.LHS) || t.isAggregate(e.RHS)
	case *ast.CallExpr:
		if aggregateFuncs[e.Name] {
			return true
		}
		return slices.ContainsFunc(e.Args, t.isAggregate)
	case *ast.BetweenExpr:
		return t.isAggregate(e.Expr) || t.isAggregate(e.Lower) || t.isAggregate(e.Upper)
	case *ast.InExpr:
		return t.isAggregate(e.Expr)
	case *ast.CondExpr:
		return t.isAggregate(e.Cond) || t.isAggregate(e.Then) || t.isAggregate(e.Else)
	case *ast.RegexpMatch:
		return t.isAggregate(e.Expr)
	}
	return false
}

// qualifiers returns the distinct dataset qualifiers written in e.
func qualifiers(e ast.Expr) []string {
	var quals []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.ID:
			if e.Qualifier != "" && !slices.Contains(quals, strings.ToLower(e.Qualifier)) {
				quals = append(quals, strings.ToLower(e.Qualifier))
			}
		case *ast.UnaryExpr:
			walk(e.Operand)
		case *ast.BinaryExpr:
			walk(e.LHS)
			walk(e.RHS)
		case *ast.CallExpr:
			for _, arg := range e.Args {
				walk(arg)
			}
		case *ast.BetweenExpr:
			walk(e.Expr)
		case *ast.InExpr:
			walk(e.Expr)
		case *ast.CondExpr:
			walk(e.Cond)
			walk(e.Then)
			walk(e.Else)
		case *ast.RegexpMatch:
			walk(e.Expr)
		}
	}
	walk(e)
	return quals
}

// aggMetric translates e in a context that yields one value per group.
// Document-level subexpressions become sums over the group's documents.
func (t *translator) aggMetric(e ast.Expr) sem.AggMetric {
	if isConstant(e) {
		return t.constMetric(e)
	}
	if !t.isAggregate(e) {
		// Arithmetic over fields of different datasets is split into
		// per-dataset sums.
		if len(qualifiers(e)) > 1 {
			switch e := e.(type) {
			case *ast.BinaryExpr:
				if isArith(e.Op) {
					return &sem.AggBinary{AST: e, Op: e.Op, LHS: t.aggMetric(e.LHS), RHS: t.aggMetric(e.RHS)}
				}
			case *ast.UnaryExpr:
				if e.Op == "-" {
					return &sem.AggUnary{AST: e, Op: "-", Operand: t.aggMetric(e.Operand)}
				}
			}
		}
		return t.docStats(e)
	}
	switch e := e.(type) {
	case *ast.ID:
		return &sem.Named{AST: e, Name: e.Name, Index: t.aliases[e.Name]}
	case *ast.UnaryExpr:
		if e.Op == "-" {
			return &sem.AggUnary{AST: e, Op: "-", Operand: t.aggMetric(e.Operand)}
		}
		return t.boolMetric(e)
	case *ast.BinaryExpr:
		if isArith(e.Op) {
			return &sem.AggBinary{AST: e, Op: e.Op, LHS: t.aggMetric(e.LHS), RHS: t.aggMetric(e.RHS)}
		}
		return t.boolMetric(e)
	case *ast.CondExpr:
		return &sem.AggCond{
			AST:  e,
			Cond: t.aggFilter(e.Cond),
			Then: t.aggMetric(e.Then),
			Else: t.aggMetric(e.Else),
		}
	case *ast.CallExpr:
		return t.aggCall(e)
	case *ast.BetweenExpr, *ast.InExpr, *ast.RegexpMatch:
		return t.boolMetric(e)
	}
	t.errorf(e, srcfiles.ValidationError, "Expected a metric")
	return &sem.BadAgg{}
}

// isConstant reports whether e is arithmetic over numeric literals.
func isConstant(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Primitive:
		return e.Type == "int" || e.Type == "float"
	case *ast.UnaryExpr:
		return e.Op == "-" && isConstant(e.Operand)
	case *ast.BinaryExpr:
		return isArith(e.Op) && isConstant(e.LHS) && isConstant(e.RHS)
	}
	return false
}

func (t *translator) constMetric(e ast.Expr) sem.AggMetric {
	switch e := e.(type) {
	case *ast.Primitive:
		if v, ok := t.numberLiteral(e); ok {
			return &sem.Number{AST: e, Value: v}
		}
	case *ast.UnaryExpr:
		return &sem.AggUnary{AST: e, Op: "-", Operand: t.constMetric(e.Operand)}
	case *ast.BinaryExpr:
		return &sem.AggBinary{AST: e, Op: e.Op, LHS: t.constMetric(e.LHS), RHS: t.constMetric(e.RHS)}
	}
	return &sem.BadAgg{}
}

// boolMetric is 1 for groups satisfying e and 0 otherwise.
func (t *translator) boolMetric(e ast.Expr) sem.AggMetric {
	return &sem.AggCond{
		AST:  e,
		Cond: t.aggFilter(e),
		Then: &sem.Number{AST: e, Value: 1},
		Else: &sem.Number{AST: e, Value: 0},
	}
}

func (t *translator) docStats(e ast.Expr) sem.AggMetric {
	return &sem.DocStats{AST: e, Metric: t.rootMetric(e, t.docMetric(e))}
}

// countFor counts the documents of the datasets e is qualified by.
func (t *translator) countFor(e ast.Expr) sem.AggMetric {
	var one sem.DocMetric = &sem.Constant{AST: e, Value: 1}
	if quals := qualifiers(e); len(quals) == 1 {
		if d := t.quietAlias(quals[0]); d != nil {
			one = &sem.QualifiedMetric{AST: e, Dataset: d.Alias, Metric: one}
		}
	}
	return &sem.DocStats{AST: e, Metric: one}
}

func (t *translator) nargs(call *ast.CallExpr, n int) bool {
	if len(call.Args) != n {
		t.errorf(call, srcfiles.ValidationError, "%s() takes %d argument(s) but %d were given", call.Name, n, len(call.Args))
		return false
	}
	if call.Having != nil && call.Name != "distinct" && call.Name != "sum_over" {
		t.errorf(call.Having, srcfiles.ValidationError, "%s() does not accept HAVING", call.Name)
		return false
	}
	return true
}

// docArg translates the argument of a sum-like aggregate, which must
// itself be document-level.
func (t *translator) docArg(call *ast.CallExpr, arg ast.Expr) sem.AggMetric {
	if t.isAggregate(arg) {
		t.errorf(arg, srcfiles.ValidationError, "The argument of %s() must be a document-level metric", call.Name)
		return &sem.BadAgg{}
	}
	if len(qualifiers(arg)) > 1 {
		return t.aggMetric(arg)
	}
	return t.docStats(arg)
}

func (t *translator) aggCall(call *ast.CallExpr) sem.AggMetric {
	switch call.Name {
	case "count":
		if !t.nargs(call, 0) {
			return &sem.BadAgg{}
		}
		return countAll(call)
	case "sum":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return t.docArg(call, call.Args[0])
	case "avg":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		arg := call.Args[0]
		if b, ok := arg.(*ast.BinaryExpr); ok && b.Op == "/" && !t.isAggregate(arg) {
			t.warn("avg() of a per-document division averages the ratios; use avg(a)/avg(b) for the ratio of totals")
		}
		return &sem.AggBinary{AST: call, Op: "/", LHS: t.docArg(call, arg), RHS: t.countFor(arg)}
	case "variance", "stddev":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		v := t.variance(call)
		if call.Name == "stddev" {
			return &sem.AggUnary{AST: call, Op: "sqrt", Operand: v}
		}
		return v
	case "min", "max":
		if len(call.Args) < 2 {
			t.errorf(call, srcfiles.ValidationError, "%s() takes at least 2 arguments", call.Name)
			return &sem.BadAgg{}
		}
		fn := &sem.AggFunc{AST: call, Name: call.Name}
		for _, arg := range call.Args {
			fn.Args = append(fn.Args, t.aggMetric(arg))
		}
		return fn
	case "abs", "log", "floor", "ceil", "sqrt":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return &sem.AggUnary{AST: call, Op: call.Name, Operand: t.aggMetric(call.Args[0])}
	case "distinct":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		d := &sem.Distinct{AST: call, Field: t.fieldArg(call.Args[0])}
		if call.Having != nil {
			d.Having = t.aggFilter(call.Having)
		}
		return d
	case "percentile":
		if !t.nargs(call, 2) {
			return &sem.BadAgg{}
		}
		p, ok := t.numberLiteral(call.Args[1])
		if ok && (p < 0 || p > 100) {
			t.errorf(call.Args[1], srcfiles.ValidationError, "Percentile must be between 0 and 100")
		}
		return &sem.Percentile{AST: call, Field: t.intField(call.Args[0]), P: p}
	case "field_min":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return &sem.FieldMin{AST: call, Field: t.intField(call.Args[0])}
	case "field_max":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return &sem.FieldMax{AST: call, Field: t.intField(call.Args[0])}
	case "parent":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return &sem.Parent{AST: call, Metric: t.aggMetric(call.Args[0])}
	case "lag", "window":
		if !t.nargs(call, 2) {
			return &sem.BadAgg{}
		}
		n, ok := t.intLiteral(call.Args[0])
		if ok && (n < 1 || n > MaxLimit) {
			t.errorf(call.Args[0], srcfiles.ValidationError, "%s() offset must be a positive integer", call.Name)
		}
		m := t.aggMetric(call.Args[1])
		if call.Name == "lag" {
			return &sem.Lag{AST: call, N: int(n), Metric: m}
		}
		return &sem.Window{AST: call, N: int(n), Metric: m}
	case "running":
		if !t.nargs(call, 1) {
			return &sem.BadAgg{}
		}
		return &sem.Running{AST: call, Metric: t.aggMetric(call.Args[0])}
	case "sum_over":
		if !t.nargs(call, 2) {
			return &sem.BadAgg{}
		}
		s := &sem.SumOver{
			AST:    call,
			Field:  t.fieldArg(call.Args[0]),
			Metric: t.aggMetric(call.Args[1]),
		}
		if call.Having != nil {
			s.Having = t.aggFilter(call.Having)
		}
		return s
	}
	if filterFuncs[call.Name] {
		return t.docStats(call)
	}
	t.errorf(call, srcfiles.ValidationError, "Unknown function %s()", call.Name)
	return &sem.BadAgg{}
}

// variance is E[m^2] - E[m]^2 over the documents of a group.
func (t *translator) variance(call *ast.CallExpr) sem.AggMetric {
	arg := call.Args[0]
	if t.isAggregate(arg) {
		t.errorf(arg, srcfiles.ValidationError, "The argument of %s() must be a document-level metric", call.Name)
		return &sem.BadAgg{}
	}
	m := t.rootMetric(arg, t.docMetric(arg))
	n := t.countFor(arg)
	sum := &sem.DocStats{AST: arg, Metric: m}
	sumsq := &sem.DocStats{AST: arg, Metric: &sem.DocBinary{AST: arg, Op: "*", LHS: m, RHS: m}}
	mean := &sem.AggBinary{AST: call, Op: "/", LHS: sum, RHS: n}
	return &sem.AggBinary{
		AST: call,
		Op:  "-",
		LHS: &sem.AggBinary{AST: call, Op: "/", LHS: sumsq, RHS: n},
		RHS: &sem.AggBinary{AST: call, Op: "*", LHS: mean, RHS: mean},
	}
}

func (t *translator) fieldArg(e ast.Expr) *sem.Field {
	id, ok := e.(*ast.ID)
	if !ok {
		t.errorf(e, srcfiles.ValidationError, "Expected a field name")
		return nil
	}
	return t.fieldRef(id)
}

func (t *translator) intField(e ast.Expr) *sem.Field {
	f := t.fieldArg(e)
	if f != nil && f.Type != catalog.Int {
		t.errorf(e, srcfiles.ValidationError, "Field %s must be an int field", f.Name)
	}
	return f
}

// docMetric translates e in a context that yields one integer per
// document.
func (t *translator) docMetric(e ast.Expr) sem.DocMetric {
	switch e := e.(type) {
	case *ast.Primitive:
		switch e.Type {
		case "int":
			n, err := strconv.ParseInt(e.Text, 10, 64)
			if err != nil {
				t.errorf(e, srcfiles.ValidationError, "Integer %s out of range", e.Text)
				return &sem.BadMetric{}
			}
			return &sem.Constant{AST: e, Value: n}
		case "bool":
			var n int64
			if e.Text == "true" {
				n = 1
			}
			return &sem.Constant{AST: e, Value: n}
		case "float":
			t.errorf(e, srcfiles.ValidationError, "Document-level metrics are integers; %s is not", e.Text)
		default:
			t.errorf(e, srcfiles.ValidationError, "String %q cannot be used as a metric", e.Text)
		}
		return &sem.BadMetric{}
	case *ast.ID:
		return t.metricRef(e)
	case *ast.UnaryExpr:
		if e.Op == "-" {
			return &sem.DocUnary{AST: e, Op: "-", Operand: t.docMetric(e.Operand)}
		}
	case *ast.BinaryExpr:
		if isArith(e.Op) {
			return &sem.DocBinary{AST: e, Op: e.Op, LHS: t.docMetric(e.LHS), RHS: t.docMetric(e.RHS)}
		}
	case *ast.CondExpr:
		return &sem.DocCond{
			AST:  e,
			Cond: t.docFilter(e.Cond),
			Then: t.docMetric(e.Then),
			Else: t.docMetric(e.Else),
		}
	case *ast.CallExpr:
		switch {
		case e.Name == "abs":
			if !t.nargs(e, 1) {
				return &sem.BadMetric{}
			}
			return &sem.DocUnary{AST: e, Op: "abs", Operand: t.docMetric(e.Args[0])}
		case e.Name == "min" || e.Name == "max":
			if len(e.Args) < 2 {
				t.errorf(e, srcfiles.ValidationError, "%s() takes at least 2 arguments", e.Name)
				return &sem.BadMetric{}
			}
			m := t.docMetric(e.Args[0])
			for _, arg := range e.Args[1:] {
				m = &sem.DocBinary{AST: e, Op: e.Name, LHS: m, RHS: t.docMetric(arg)}
			}
			return m
		case filterFuncs[e.Name]:
		case aggregateFuncs[e.Name]:
			t.errorf(e, srcfiles.ValidationError, "Aggregate %s() cannot be used in a document-level expression", e.Name)
			return &sem.BadMetric{}
		default:
			t.errorf(e, srcfiles.ValidationError, "Unknown function %s()", e.Name)
			return &sem.BadMetric{}
		}
	}
	return &sem.FilterMetric{AST: e, Filter: t.docFilter(e)}
}

// docFilter translates e in a context that selects documents.
func (t *translator) docFilter(e ast.Expr) sem.DocFilter {
	switch e := e.(type) {
	case *ast.Primitive:
		if e.Type == "bool" {
			return &sem.Literal{AST: e, Value: e.Text == "true"}
		}
	case *ast.UnaryExpr:
		if e.Op == "!" {
			return &sem.Not{AST: e, Filter: t.docFilter(e.Operand)}
		}
	case *ast.BinaryExpr:
		switch {
		case e.Op == "and":
			return &sem.And{AST: e, LHS: t.docFilter(e.LHS), RHS: t.docFilter(e.RHS)}
		case e.Op == "or":
			return &sem.Or{AST: e, LHS: t.docFilter(e.LHS), RHS: t.docFilter(e.RHS)}
		case isComparison(e.Op):
			return t.compare(e)
		}
	case *ast.InExpr:
		f := t.filterField(e.Expr)
		if f == nil {
			return &sem.BadFilter{}
		}
		in := &sem.TermIn{AST: e, Field: f}
		for _, elem := range e.Elems {
			if term, ok := t.term(f, elem); ok {
				in.Terms = append(in.Terms, term)
			}
		}
		in.Terms = sortTerms(in.Terms)
		if e.Not {
			return &sem.Not{AST: e, Filter: in}
		}
		return in
	case *ast.RegexpMatch:
		f := t.filterField(e.Expr)
		if f == nil {
			return &sem.BadFilter{}
		}
		t.checkRegexp(e)
		var filter sem.DocFilter = &sem.Regexp{AST: e, Field: f, Pattern: e.Pattern}
		if e.Not {
			filter = &sem.Not{AST: e, Filter: filter}
		}
		return filter
	case *ast.BetweenExpr:
		lower, ok1 := t.intLiteral(e.Lower)
		upper, ok2 := t.intLiteral(e.Upper)
		if !ok1 || !ok2 {
			return &sem.BadFilter{}
		}
		if e.Inclusive {
			upper++
		}
		return &sem.Between{AST: e, Metric: t.docMetric(e.Expr), Lower: lower, Upper: upper}
	case *ast.CallExpr:
		switch e.Name {
		case "hasstr", "hasint":
			return t.hasTerm(e)
		case "sample":
			return t.sample(e)
		}
		if aggregateFuncs[e.Name] {
			t.errorf(e, srcfiles.ValidationError, "Aggregate %s() cannot be used in a document filter", e.Name)
			return &sem.BadFilter{}
		}
	case *ast.ID:
		if t.isMetricAlias(e) {
			t.errorf(e, srcfiles.MetricAliasAsField, "Metric alias cannot be used as a field: %s", e.Name)
			return &sem.BadFilter{}
		}
	}
	t.errorf(e, srcfiles.ValidationError, "Expected a boolean expression")
	return &sem.BadFilter{}
}

var flipped = map[string]string{
	"=":  "=",
	"!=": "!=",
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}

func isLiteral(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Primitive:
		return true
	case *ast.UnaryExpr:
		p, ok := e.Operand.(*ast.Primitive)
		return ok && e.Op == "-" && p.Type == "int"
	}
	return false
}

func (t *translator) compare(e *ast.BinaryExpr) sem.DocFilter {
	lhs, rhs, op := e.LHS, e.RHS, e.Op
	if isLiteral(lhs) && !isLiteral(rhs) {
		lhs, rhs, op = rhs, lhs, flipped[op]
	}
	if id, ok := lhs.(*ast.ID); ok && isLiteral(rhs) {
		if f := t.termField(id); f != nil {
			if op == "=" || op == "!=" {
				term, ok := t.term(f, rhs)
				if !ok {
					return &sem.BadFilter{}
				}
				var filter sem.DocFilter = &sem.TermEquals{AST: e, Field: f, Term: term}
				if op == "!=" {
					filter = &sem.Not{AST: e, Filter: filter}
				}
				return filter
			}
			if f.Type == catalog.String {
				t.errorf(e, srcfiles.ValidationError, "String field %s cannot be compared with %s", f.Name, op)
				return &sem.BadFilter{}
			}
		}
	}
	return &sem.Compare{AST: e, Op: op, LHS: t.docMetric(lhs), RHS: t.docMetric(rhs)}
}

// filterField resolves the field operand of IN and regular expression
// matches.
func (t *translator) filterField(e ast.Expr) *sem.Field {
	id, ok := e.(*ast.ID)
	if !ok {
		t.errorf(e, srcfiles.ValidationError, "Expected a field name")
		return nil
	}
	return t.fieldRef(id)
}

// term converts a literal to a term of field f.  Type mismatches are
// warnings in lenient mode.
func (t *translator) term(f *sem.Field, e ast.Expr) (sem.Term, bool) {
	text, typ, ok := t.literalText(e)
	if !ok {
		return sem.Term{}, false
	}
	if f.Type == catalog.String {
		if typ != "string" {
			t.mismatch(e, "String field %s compared with non-string value %s", f.Name, text)
		}
		return sem.Term{Str: text}, true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		t.mismatch(e, "Int field %s compared with non-integer value %q", f.Name, text)
		return sem.Term{Str: text}, true
	}
	if typ != "int" {
		t.mismatch(e, "Int field %s compared with string value %q", f.Name, text)
	}
	return sem.Term{Int: n, IsInt: true}, true
}

func (t *translator) literalText(e ast.Expr) (string, string, bool) {
	switch e := e.(type) {
	case *ast.Primitive:
		return e.Text, e.Type, true
	case *ast.UnaryExpr:
		if p, ok := e.Operand.(*ast.Primitive); ok && e.Op == "-" && p.Type == "int" {
			return "-" + p.Text, "int", true
		}
	}
	t.errorf(e, srcfiles.ValidationError, "Expected a literal value")
	return "", "", false
}

func sortTerms(terms []sem.Term) []sem.Term {
	slices.SortFunc(terms, compareTerms)
	return slices.CompactFunc(terms, func(a, b sem.Term) bool { return compareTerms(a, b) == 0 })
}

func compareTerms(a, b sem.Term) int {
	switch {
	case a.IsInt && !b.IsInt:
		return -1
	case !a.IsInt && b.IsInt:
		return 1
	case a.IsInt:
		if a.Int < b.Int {
			return -1
		}
		if a.Int > b.Int {
			return 1
		}
		return 0
	}
	return strings.Compare(a.Str, b.Str)
}

// maxRegexpInsts bounds the compiled size of a regular expression.
const maxRegexpInsts = 10000

func (t *translator) checkRegexp(e *ast.RegexpMatch) {
	re, err := syntax.Parse(e.Pattern, syntax.Perl)
	if err != nil {
		t.errorf(e, srcfiles.ValidationError, "Invalid regular expression %q: %s", e.Pattern, err)
		return
	}
	prog, err := syntax.Compile(re.Simplify())
	if err != nil || len(prog.Inst) > maxRegexpInsts {
		t.errorf(e, srcfiles.ValidationError, "Regular expression %q is too complex", e.Pattern)
	}
}

func (t *translator) hasTerm(call *ast.CallExpr) sem.DocFilter {
	if !t.nargs(call, 2) {
		return &sem.BadFilter{}
	}
	f := t.filterField(call.Args[0])
	if f == nil {
		return &sem.BadFilter{}
	}
	want := catalog.String
	if call.Name == "hasint" {
		want = catalog.Int
	}
	if f.Type != want {
		t.mismatch(call, "%s() applied to %s field %s", call.Name, f.Type, f.Name)
	}
	term, ok := t.term(f, call.Args[1])
	if !ok {
		return &sem.BadFilter{}
	}
	return &sem.TermEquals{AST: call, Field: f, Term: term}
}

// hashField returns the string field named by e or nil.  random() and
// sample() hash the terms of a string field and the value of anything
// else, so an int field and any expression folding to it hash alike.
func (t *translator) hashField(e ast.Expr) *sem.Field {
	id, ok := e.(*ast.ID)
	if !ok {
		return nil
	}
	if f := t.termField(id); f != nil && f.Type == catalog.String {
		return f
	}
	return nil
}

// sample(arg, numerator[, denominator[, salt]]) keeps numerator out of
// every denominator documents.  The denominator defaults to 100.
func (t *translator) sample(call *ast.CallExpr) sem.DocFilter {
	if len(call.Args) < 2 || len(call.Args) > 4 {
		t.errorf(call, srcfiles.ValidationError, "sample() takes 2 to 4 arguments")
		return &sem.BadFilter{}
	}
	s := &sem.Sample{AST: call, Denominator: 100}
	if f := t.hashField(call.Args[0]); f != nil {
		s.Field = f
	} else {
		s.Metric = t.docMetric(call.Args[0])
	}
	var ok bool
	if s.Numerator, ok = t.intLiteral(call.Args[1]); !ok {
		return &sem.BadFilter{}
	}
	if len(call.Args) > 2 {
		if s.Denominator, ok = t.intLiteral(call.Args[2]); !ok {
			return &sem.BadFilter{}
		}
	}
	if len(call.Args) > 3 {
		salt, ok := call.Args[3].(*ast.Primitive)
		if !ok || salt.Type != "string" {
			t.errorf(call.Args[3], srcfiles.ValidationError, "sample() salt must be a string")
			return &sem.BadFilter{}
		}
		s.Salt = salt.Text
	}
	if s.Denominator < 1 || s.Numerator < 0 || s.Numerator > s.Denominator {
		t.errorf(call, srcfiles.ValidationError, "sample() requires 0 <= numerator <= denominator and a positive denominator")
		return &sem.BadFilter{}
	}
	return s
}

// aggFilter translates e in a context that selects groups.
func (t *translator) aggFilter(e ast.Expr) sem.AggFilter {
	switch e := e.(type) {
	case *ast.Primitive:
		if e.Type == "bool" {
			return &sem.AggLiteral{AST: e, Value: e.Text == "true"}
		}
	case *ast.UnaryExpr:
		if e.Op == "!" {
			return &sem.AggNot{AST: e, Filter: t.aggFilter(e.Operand)}
		}
	case *ast.BinaryExpr:
		switch {
		case e.Op == "and":
			return &sem.AggAnd{AST: e, LHS: t.aggFilter(e.LHS), RHS: t.aggFilter(e.RHS)}
		case e.Op == "or":
			return &sem.AggOr{AST: e, LHS: t.aggFilter(e.LHS), RHS: t.aggFilter(e.RHS)}
		case isComparison(e.Op):
			return &sem.AggCompare{AST: e, Op: e.Op, LHS: t.aggMetric(e.LHS), RHS: t.aggMetric(e.RHS)}
		}
	case *ast.BetweenExpr:
		m := t.aggMetric(e.Expr)
		upper := "<"
		if e.Inclusive {
			upper = "<="
		}
		return &sem.AggAnd{
			AST: e,
			LHS: &sem.AggCompare{AST: e, Op: ">=", LHS: m, RHS: t.aggMetric(e.Lower)},
			RHS: &sem.AggCompare{AST: e, Op: upper, LHS: m, RHS: t.aggMetric(e.Upper)},
		}
	}
	t.errorf(e, srcfiles.ValidationError, "Expected a condition on aggregate values")
	return &sem.AggLiteral{AST: e}
}

func (t *translator) intLiteral(e ast.Expr) (int64, bool) {
	text, typ, ok := t.literalText(e)
	if !ok {
		return 0, false
	}
	if typ != "int" {
		t.errorf(e, srcfiles.ValidationError, "Expected an integer but found %s", text)
		return 0, false
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		t.errorf(e, srcfiles.ValidationError, "Integer %s out of range", text)
		return 0, false
	}
	return n, true
}

func (t *translator) numberLiteral(e ast.Expr) (float64, bool) {
	text, typ, ok := t.literalText(e)
	if !ok {
		return 0, false
	}
	if typ != "int" && typ != "float" {
		t.errorf(e, srcfiles.ValidationError, "Expected a number but found %s", text)
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		t.errorf(e, srcfiles.ValidationError, "Bad number %s", text)
		return 0, false
	}
	return f, true
}
