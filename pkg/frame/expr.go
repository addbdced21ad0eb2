package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dtnitsch/covid-agg/pkg/db"
)

// Expr is a column expression evaluated by the engine.
// Expressions are values; every combinator returns a new Expr.
type Expr struct {
	text  string   // rendered SQL
	alias string   // output column name when selected
	refs  []string // columns the expression reads
}

// Col references a column of the frame the expression is applied to.
func Col(name string) Expr {
	return Expr{text: db.QuoteIdent(name), alias: name, refs: []string{name}}
}

// Lit is a constant. Supported kinds: nil, string, bool, int, int64, float64.
func Lit(v any) Expr {
	return Expr{text: literal(v)}
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		switch {
		case math.IsNaN(x):
			return "NULL"
		case math.IsInf(x, 1):
			return "9e999"
		case math.IsInf(x, -1):
			return "-9e999"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

// As names the output column of the expression.
func (e Expr) As(name string) Expr {
	e.alias = name
	return e
}

// Name returns the output column name, falling back to the SQL text.
func (e Expr) Name() string {
	if e.alias != "" {
		return e.alias
	}
	return e.text
}

// String returns the rendered SQL of the expression.
func (e Expr) String() string {
	return e.text
}

func combine(text string, parts ...Expr) Expr {
	var refs []string
	for _, p := range parts {
		refs = append(refs, p.refs...)
	}
	return Expr{text: text, refs: refs}
}

func (e Expr) Eq(o Expr) Expr { return combine("("+e.text+" = "+o.text+")", e, o) }
func (e Expr) Ge(o Expr) Expr { return combine("("+e.text+" >= "+o.text+")", e, o) }
func (e Expr) Gt(o Expr) Expr { return combine("("+e.text+" > "+o.text+")", e, o) }

// And joins predicates; with no arguments it is always true.
func And(preds ...Expr) Expr {
	if len(preds) == 0 {
		return Expr{text: "1"}
	}
	texts := make([]string, len(preds))
	for i, p := range preds {
		texts[i] = p.text
	}
	return combine("("+strings.Join(texts, " AND ")+")", preds...)
}

// Sum adds the non-null values of e. A group with only nulls sums to null.
func Sum(e Expr) Expr {
	out := combine("SUM("+e.text+")", e)
	out.alias = e.alias
	return out
}

// Max is the largest non-null value of e.
func Max(e Expr) Expr {
	out := combine("MAX("+e.text+")", e)
	out.alias = e.alias
	return out
}

// Count counts rows in the group.
func Count() Expr {
	return Expr{text: "COUNT(*)", alias: "count"}
}

// Div divides as real numbers. The result is null when the divisor is zero or null.
func Div(num, den Expr) Expr {
	return combine("(CAST("+num.text+" AS REAL) / NULLIF("+den.text+", 0))", num, den)
}

// When yields val where cond holds and null elsewhere.
func When(cond, val Expr) Expr {
	out := combine("CASE WHEN "+cond.text+" THEN "+val.text+" END", cond, val)
	out.alias = val.alias
	return out
}
