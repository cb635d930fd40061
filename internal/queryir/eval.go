package queryir

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/docbridge/internal/ir"
)

// Truth is a SQL three-valued logic result.
type Truth int8

const (
	Unknown Truth = iota
	False
	True
)

// String implements fmt.Stringer.
func (t Truth) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

func truth(b bool) Truth {
	if b {
		return True
	}
	return False
}

func (t Truth) not() Truth {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Eval evaluates cond against one row. A column absent from row and an
// explicit ir.IRNull are both null. A row is selected only when the result
// is True.
//
// Values of different kinds never compare equal or ordered; such
// comparisons are Unknown. Numbers compare by value across integer,
// floating and decimal forms.
func Eval(cond Condition, row map[string]ir.IRValue) Truth {
	switch c := cond.(type) {
	case nil:
		return True
	case AndOr:
		l := Eval(c.Left, row)
		r := Eval(c.Right, row)
		if c.Op == OpAnd {
			switch {
			case l == False || r == False:
				return False
			case l == True && r == True:
				return True
			}
			return Unknown
		}
		switch {
		case l == True || r == True:
			return True
		case l == False && r == False:
			return False
		}
		return Unknown
	case Not:
		return Eval(c.Inner, row).not()
	case Comparison:
		return compareTruth(c.Op, value(c.Left, row), value(c.Right, row))
	case Like:
		s, ok := value(c.Left, row).(ir.IRString)
		if !ok {
			return Unknown
		}
		t := truth(MatchLike(string(s), c.Pattern, c.Escape))
		if c.Negated {
			return t.not()
		}
		return t
	case In:
		t := inTruth(value(c.Left, row), c.Values, row)
		if c.Negated {
			return t.not()
		}
		return t
	case IsNull:
		t := truth(isNull(value(c.Expr, row)))
		if c.Negated {
			return t.not()
		}
		return t
	default:
		return Unknown
	}
}

func value(e Expr, row map[string]ir.IRValue) ir.IRValue {
	switch x := e.(type) {
	case ColumnRef:
		v, ok := row[x.Name]
		if !ok {
			return ir.IRNull{}
		}
		return v
	case Literal:
		return x.Value
	default:
		return ir.IRNull{}
	}
}

func isNull(v ir.IRValue) bool {
	switch v.(type) {
	case nil, ir.IRNull:
		return true
	}
	return false
}

func inTruth(v ir.IRValue, values []Expr, row map[string]ir.IRValue) Truth {
	if isNull(v) {
		return Unknown
	}
	result := False
	for _, e := range values {
		switch compareTruth(OpEq, v, value(e, row)) {
		case True:
			return True
		case Unknown:
			result = Unknown
		}
	}
	return result
}

func compareTruth(op CompareOp, a, b ir.IRValue) Truth {
	cmp, ok := CompareValues(a, b)
	if !ok {
		return Unknown
	}
	switch op {
	case OpEq:
		return truth(cmp == 0)
	case OpNe:
		return truth(cmp != 0)
	case OpLt:
		return truth(cmp < 0)
	case OpLe:
		return truth(cmp <= 0)
	case OpGt:
		return truth(cmp > 0)
	case OpGe:
		return truth(cmp >= 0)
	default:
		return Unknown
	}
}

// CompareValues orders two scalar values. ok is false when either is null,
// when they are of different kinds, or when either is a container.
func CompareValues(a, b ir.IRValue) (cmp int, ok bool) {
	if da, isNum := numeric(a); isNum {
		db, isNum := numeric(b)
		if !isNum {
			return 0, false
		}
		return da.Cmp(db), true
	}
	switch x := a.(type) {
	case ir.IRString:
		y, isStr := b.(ir.IRString)
		if !isStr {
			return 0, false
		}
		return strings.Compare(string(x), string(y)), true
	case ir.IRBool:
		y, isBool := b.(ir.IRBool)
		if !isBool {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !bool(x):
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func numeric(v ir.IRValue) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case ir.IRInt:
		return decimal.NewFromInt(int64(n)), true
	case ir.IRFloat:
		return decimal.NewFromFloat(float64(n)), true
	case ir.IRBigInt:
		return decimal.NewFromBigInt(new(big.Int).Set(n.V), 0), true
	case ir.IRDecimal:
		return n.V, true
	}
	return decimal.Decimal{}, false
}

// MatchLike reports whether s matches a SQL LIKE pattern. Matching is
// case-sensitive and rune-based. escape 0 disables escaping.
func MatchLike(s, pattern string, escape rune) bool {
	p := []rune(pattern)
	type tok struct {
		r    rune
		kind byte // 'c' literal, '%' any run, '_' one rune
	}
	var toks []tok
	for i := 0; i < len(p); i++ {
		switch {
		case escape != 0 && p[i] == escape && i+1 < len(p):
			i++
			toks = append(toks, tok{r: p[i], kind: 'c'})
		case p[i] == '%':
			toks = append(toks, tok{kind: '%'})
		case p[i] == '_':
			toks = append(toks, tok{kind: '_'})
		default:
			toks = append(toks, tok{r: p[i], kind: 'c'})
		}
	}

	runes := []rune(s)

	// cur[i] is true when the first i runes of s match the tokens so far.
	cur := make([]bool, len(runes)+1)
	cur[0] = true
	for _, t := range toks {
		next := make([]bool, len(runes)+1)
		for i, ok := range cur {
			if !ok {
				continue
			}
			switch t.kind {
			case '%':
				for j := i; j <= len(runes); j++ {
					next[j] = true
				}
			case '_':
				if i < len(runes) {
					next[i+1] = true
				}
			default:
				if i < len(runes) && runes[i] == t.r {
					next[i+1] = true
				}
			}
		}
		cur = next
	}
	return cur[len(runes)]
}
