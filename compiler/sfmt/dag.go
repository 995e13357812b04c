// Package sfmt renders compiled plans as text for people to read.  The
// cache key is computed from the JSON form of a plan, not from this one.
package sfmt

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brimdata/sift/compiler/dag"
)

// Plan renders p one command per line in execution order.
func Plan(p *dag.Plan) string {
	c := &canonDAG{
		formatter: formatter{tab: 2},
		head:      true,
		first:     true,
	}
	c.plan(p)
	c.flush()
	return c.String()
}

func AggExpr(e dag.AggExpr) string {
	c := &canonDAG{formatter: formatter{tab: 2}}
	c.agg(e, "")
	return c.String()
}

func DocFilter(f dag.DocFilter) string {
	c := &canonDAG{formatter: formatter{tab: 2}}
	c.filter(f, "")
	return c.String()
}

func DocMetric(m dag.DocMetric) string {
	c := &canonDAG{formatter: formatter{tab: 2}}
	c.metric(m, "")
	return c.String()
}

type canonDAG struct {
	formatter
	head  bool
	first bool
}

func (c *canonDAG) next() {
	if c.first {
		c.first = false
	} else {
		c.write("\n")
	}
	c.needRet = false
	c.writeTab()
	if c.head {
		c.head = false
	} else {
		c.write("| ")
	}
}

func (c *canonDAG) plan(p *dag.Plan) {
	for _, d := range p.Datasets {
		c.next()
		c.write("from %s", d.Name)
		if d.Alias != d.Name {
			c.write(" as %s", d.Alias)
		}
		c.write(" [%s, %s) time %s", unix(d.Start), unix(d.End), d.TimeField)
		c.head = true
	}
	c.seq(p.Commands)
	if p.Output != nil {
		c.output(p.Output)
	}
	c.needRet = true
}

func unix(secs int64) string {
	return time.Unix(secs, 0).UTC().Format(time.DateTime)
}

func (c *canonDAG) seq(seq dag.Seq) {
	for _, cmd := range seq {
		c.command(cmd)
	}
}

func (c *canonDAG) command(cmd dag.Command) {
	c.next()
	switch cmd := cmd.(type) {
	case *dag.Filter:
		c.write("filter ")
		c.filters(cmd.Filters)
	case *dag.FieldRegroup:
		c.write("regroup field ")
		c.fields(cmd.Fields)
		if cmd.Exclude {
			c.write(" not")
		}
		if len(cmd.Terms) > 0 {
			c.write(" in (")
			c.terms(cmd.Terms)
			c.write(")")
		}
		if cmd.Limit != nil {
			if cmd.Bottom {
				c.write(" bottom %d", *cmd.Limit)
			} else {
				c.write(" top %d", *cmd.Limit)
			}
			if cmd.By != nil {
				c.write(" by ")
				c.agg(cmd.By, "")
			}
		}
		if cmd.WithDefault {
			c.write(" with default")
		}
	case *dag.TimeRegroup:
		c.write("regroup time ")
		c.fields(cmd.Fields)
		if cmd.Seconds != 0 {
			c.write(" every %ds", cmd.Seconds)
		} else {
			c.write(" every %d months", cmd.Months)
		}
		c.write(" buckets %d", cmd.Buckets)
		var origins []string
		for _, alias := range sortedKeys(cmd.Origins) {
			origins = append(origins, alias+":"+unix(cmd.Origins[alias]))
		}
		c.write(" from %s tz %s", strings.Join(origins, " "), cmd.Location)
		if cmd.Format != "" {
			c.write(" format %q", cmd.Format)
		}
	case *dag.MetricRegroup:
		c.write("regroup bucket ")
		c.metrics(cmd.Metrics)
		c.write(" [%d, %d) interval %d", cmd.Min, cmd.Max, cmd.Interval)
		if cmd.WithDefault {
			c.write(" with default")
		}
	case *dag.RandomRegroup:
		c.write("regroup random ")
		if cmd.Fields != nil {
			c.fields(cmd.Fields)
		} else {
			c.metrics(cmd.Metrics)
		}
		c.write(" buckets %d salt %q", cmd.Buckets, cmd.Salt)
	case *dag.QuantileRegroup:
		c.write("regroup quantiles ")
		c.fields(cmd.Fields)
		c.write(" n %d", cmd.N)
	case *dag.ExplodeGroups:
		c.open("explode")
		for _, b := range cmd.Buckets {
			c.ret()
			c.write("%q: ", b.Label)
			c.filters(b.Filters)
		}
		c.close()
	case *dag.GetGroupStats:
		c.open("stats")
		for _, s := range cmd.Stats {
			c.ret()
			c.write("%s = sum(", s.Name)
			c.metrics(s.Metrics)
			c.write(")")
		}
		c.close()
	case *dag.FtgsIterate:
		c.write("ftgs %s = %s(", cmd.Name, cmd.Op)
		c.fields(cmd.Fields)
		if cmd.Op == "percentile" {
			c.write(", %s", number(cmd.Percentile))
		}
		c.write(")")
	case *dag.RegroupIntoParent:
		c.write("into parent %s = ", cmd.Name)
		c.agg(cmd.Expr, "")
		if cmd.Having != nil {
			c.write(" having ")
			c.aggFilter(cmd.Having, "")
		}
	case *dag.ComputeGroups:
		c.write("compute %s = ", cmd.Name)
		c.agg(cmd.Expr, "")
	case *dag.FilterGroups:
		c.write("having ")
		c.aggFilter(cmd.Filter, "")
	default:
		c.write("unknown command %T", cmd)
	}
}

func (c *canonDAG) output(o *dag.Output) {
	c.next()
	c.open("output")
	for k, e := range o.Selects {
		c.ret()
		c.write("$%d", k)
		if k < len(o.Names) && o.Names[k] != "" {
			c.write(" %s", o.Names[k])
		}
		c.write(" = ")
		c.agg(e, "")
	}
	if o.Having != nil {
		c.ret()
		c.write("having ")
		c.aggFilter(o.Having, "")
	}
	if o.Limit > 0 {
		c.ret()
		c.write("limit %d", o.Limit)
	}
	if o.Rounding >= 0 {
		c.ret()
		c.write("rounding %d", o.Rounding)
	}
	c.close()
}

func sortedKeys[V any](m map[string]V) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *canonDAG) fields(fields map[string]string) {
	for k, alias := range sortedKeys(fields) {
		if k > 0 {
			c.write(" ")
		}
		c.write("%s.%s", alias, fields[alias])
	}
}

func (c *canonDAG) metrics(metrics map[string]dag.DocMetric) {
	if len(metrics) == 0 {
		c.write("0")
		return
	}
	for k, alias := range sortedKeys(metrics) {
		if k > 0 {
			c.write(" ")
		}
		c.write("%s:", alias)
		c.metric(metrics[alias], "")
	}
}

func (c *canonDAG) filters(filters map[string]dag.DocFilter) {
	if len(filters) == 0 {
		c.write("false")
		return
	}
	for k, alias := range sortedKeys(filters) {
		if k > 0 {
			c.write(" ")
		}
		c.write("%s:", alias)
		c.filter(filters[alias], "")
	}
}

func (c *canonDAG) terms(terms []dag.Term) {
	for k, t := range terms {
		if k > 0 {
			c.write(",")
		}
		c.term(t)
	}
}

func (c *canonDAG) term(t dag.Term) {
	if t.IsInt {
		c.write("%d", t.Int)
	} else {
		c.write("%q", t.Str)
	}
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *canonDAG) maybewrite(s string, do bool) {
	if do {
		c.write("%s", s)
	}
}

func (c *canonDAG) metric(m dag.DocMetric, parent string) {
	switch m := m.(type) {
	case *dag.Field:
		c.write("%s", m.Name)
	case *dag.Const:
		c.write("%d", m.Value)
	case *dag.DocBinary:
		if m.Op == "min" || m.Op == "max" {
			c.write("%s(", m.Op)
			c.metric(m.LHS, "")
			c.write(", ")
			c.metric(m.RHS, "")
			c.write(")")
			return
		}
		parens := needsparens(parent, m.Op)
		c.maybewrite("(", parens)
		c.metric(m.LHS, m.Op)
		c.write("%s", m.Op)
		c.metric(m.RHS, m.Op)
		c.maybewrite(")", parens)
	case *dag.DocUnary:
		if m.Op == "-" {
			c.write("-")
			c.metric(m.Operand, "not")
			return
		}
		c.write("%s(", m.Op)
		c.metric(m.Operand, "")
		c.write(")")
	case *dag.DocCond:
		c.write("(if ")
		c.filter(m.Cond, "")
		c.write(" then ")
		c.metric(m.Then, "")
		c.write(" else ")
		c.metric(m.Else, "")
		c.write(")")
	case *dag.FilterMetric:
		c.write("[")
		c.filter(m.Filter, "")
		c.write("]")
	default:
		c.write("(unknown metric %T)", m)
	}
}

func (c *canonDAG) filter(f dag.DocFilter, parent string) {
	switch f := f.(type) {
	case *dag.Bool:
		c.write("%t", f.Value)
	case *dag.TermIs:
		c.write("%s=", f.Field)
		c.term(f.Term)
	case *dag.TermIn:
		c.write("%s in (", f.Field)
		c.terms(f.Terms)
		c.write(")")
	case *dag.Regexp:
		c.write("%s=~%q", f.Field, f.Pattern)
	case *dag.Compare:
		parens := needsparens(parent, f.Op)
		c.maybewrite("(", parens)
		c.metric(f.LHS, f.Op)
		c.write("%s", f.Op)
		c.metric(f.RHS, f.Op)
		c.maybewrite(")", parens)
	case *dag.Between:
		c.write("between(")
		c.metric(f.Metric, "")
		c.write(", %d, %d)", f.Lower, f.Upper)
	case *dag.Not:
		c.write("!")
		c.filter(f.Filter, "not")
	case *dag.And:
		c.junction(f.Exprs, "and", parent)
	case *dag.Or:
		c.junction(f.Exprs, "or", parent)
	case *dag.Sample:
		c.write("sample(")
		if f.Metric != nil {
			c.metric(f.Metric, "")
		} else {
			c.write("%s", f.Field)
		}
		c.write(", %d, %d, %q)", f.Numerator, f.Denominator, f.Salt)
	default:
		c.write("(unknown filter %T)", f)
	}
}

func (c *canonDAG) junction(exprs []dag.DocFilter, op, parent string) {
	parens := needsparens(parent, op)
	c.maybewrite("(", parens)
	for k, e := range exprs {
		if k > 0 {
			c.write(" %s ", op)
		}
		c.filter(e, op)
	}
	c.maybewrite(")", parens)
}

func (c *canonDAG) agg(e dag.AggExpr, parent string) {
	switch e := e.(type) {
	case *dag.Number:
		c.write("%s", number(e.Value))
	case *dag.DocStats:
		c.write("sum(")
		c.metrics(e.Metrics)
		c.write(")")
	case *dag.Lookup:
		c.write("%s@%d", e.Name, e.Depth)
	case *dag.Column:
		c.write("$%d", e.Index)
	case *dag.AggBinary:
		parens := needsparens(parent, e.Op)
		c.maybewrite("(", parens)
		c.agg(e.LHS, e.Op)
		c.write("%s", e.Op)
		c.agg(e.RHS, e.Op)
		c.maybewrite(")", parens)
	case *dag.AggUnary:
		if e.Op == "-" {
			c.write("-")
			c.agg(e.Operand, "not")
			return
		}
		c.write("%s(", e.Op)
		c.agg(e.Operand, "")
		c.write(")")
	case *dag.AggFunc:
		c.write("%s(", e.Name)
		for k, arg := range e.Args {
			if k > 0 {
				c.write(", ")
			}
			c.agg(arg, "")
		}
		c.write(")")
	case *dag.AggCond:
		c.write("(if ")
		c.aggFilter(e.Cond, "")
		c.write(" then ")
		c.agg(e.Then, "")
		c.write(" else ")
		c.agg(e.Else, "")
		c.write(")")
	case *dag.Window:
		c.write("window(%d, ", e.N)
		c.agg(e.Expr, "")
		c.write(")")
	case *dag.Lag:
		c.write("lag(%d, ", e.N)
		c.agg(e.Expr, "")
		c.write(")")
	case *dag.Running:
		c.write("running(")
		c.agg(e.Expr, "")
		c.write(")")
	default:
		c.write("(unknown aggregate %T)", e)
	}
}

func (c *canonDAG) aggFilter(f dag.AggFilter, parent string) {
	switch f := f.(type) {
	case *dag.AggBool:
		c.write("%t", f.Value)
	case *dag.AggCompare:
		parens := needsparens(parent, f.Op)
		c.maybewrite("(", parens)
		c.agg(f.LHS, f.Op)
		c.write("%s", f.Op)
		c.agg(f.RHS, f.Op)
		c.maybewrite(")", parens)
	case *dag.AggNot:
		c.write("!")
		c.aggFilter(f.Filter, "not")
	case *dag.AggAnd:
		parens := needsparens(parent, "and")
		c.maybewrite("(", parens)
		c.aggFilter(f.LHS, "and")
		c.write(" and ")
		c.aggFilter(f.RHS, "and")
		c.maybewrite(")", parens)
	case *dag.AggOr:
		parens := needsparens(parent, "or")
		c.maybewrite("(", parens)
		c.aggFilter(f.LHS, "or")
		c.write(" or ")
		c.aggFilter(f.RHS, "or")
		c.maybewrite(")", parens)
	default:
		c.write("(unknown aggregate filter %T)", f)
	}
}
