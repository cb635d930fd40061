package queryir

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/docbridge/internal/ir"
)

// ParseError reports a syntax error in condition text.
type ParseError struct {
	Pos     int // byte offset into the input
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse condition at offset %d: %s", e.Pos, e.Message)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokKeyword
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

var keywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "LIKE": true, "ESCAPE": true,
	"IN": true, "IS": true, "NULL": true, "TRUE": true, "FALSE": true,
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case strings.ContainsRune("=<>!", r):
			start := i
			i++
			if i < len(src) && (src[i] == '=' || (src[start] == '<' && src[i] == '>')) {
				i++
			}
			op := src[start:i]
			if op == "!" {
				return nil, &ParseError{Pos: start, Message: "unexpected '!'"}
			}
			toks = append(toks, token{tokOp, op, start})
		case r == '\'' || r == '"':
			text, end, err := lexQuoted(src, i, byte(r))
			if err != nil {
				return nil, err
			}
			kind := tokString
			if r == '"' {
				kind = tokIdent
			}
			toks = append(toks, token{kind, text, i})
			i = end
		case r == '-' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(src) && strings.ContainsRune("0123456789.eE+-", rune(src[i])) {
				if (src[i] == '+' || src[i] == '-') && src[i-1] != 'e' && src[i-1] != 'E' {
					break
				}
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			word := src[start:i]
			if keywords[strings.ToUpper(word)] {
				toks = append(toks, token{tokKeyword, strings.ToUpper(word), start})
			} else {
				toks = append(toks, token{tokIdent, word, start})
			}
		default:
			return nil, &ParseError{Pos: i, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

// lexQuoted reads a quoted token starting at src[start]. A doubled quote
// stands for one quote character.
func lexQuoted(src string, start int, quote byte) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		if src[i] == quote {
			if i+1 < len(src) && src[i+1] == quote {
				b.WriteByte(quote)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(src[i])
		i++
	}
	return "", 0, &ParseError{Pos: start, Message: "unterminated quoted text"}
}

type parser struct {
	toks []token
	pos  int
}

// Parse reads a condition in the text form written by Format.
//
// Grammar:
//
//	or        := and ("OR" and)*
//	and       := unary ("AND" unary)*
//	unary     := "NOT" unary | "(" or ")" | predicate
//	predicate := operand op operand
//	           | operand ["NOT"] "LIKE" string ["ESCAPE" string]
//	           | operand ["NOT"] "IN" "(" operand ("," operand)* ")"
//	           | operand "IS" ["NOT"] "NULL"
//	operand   := identifier | "quoted identifier" | 'string' | number
//	           | TRUE | FALSE | NULL
//
// AND binds tighter than OR; both associate to the left.
func Parse(text string) (Condition, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %q", tok.text)
	}
	return cond, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) keyword(word string) bool {
	if tok := p.peek(); tok.kind == tokKeyword && tok.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &ParseError{Pos: tok.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = AndOr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = AndOr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Condition, error) {
	if p.keyword("NOT") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.next(); tok.kind != tokRParen {
			return nil, p.errorf(tok, "expected ')'")
		}
		return cond, nil
	}
	return p.parsePredicate()
}

var compareOps = map[string]CompareOp{
	"=": OpEq, "<>": OpNe, "!=": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
}

func (p *parser) parsePredicate() (Condition, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.kind == tokOp {
		p.next()
		op, ok := compareOps[tok.text]
		if !ok {
			return nil, p.errorf(tok, "unknown operator %q", tok.text)
		}
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Comparison{Op: op, Left: left, Right: right}, nil
	}

	if p.keyword("IS") {
		negated := p.keyword("NOT")
		if !p.keyword("NULL") {
			return nil, p.errorf(p.peek(), "expected NULL")
		}
		return IsNull{Expr: left, Negated: negated}, nil
	}

	negated := p.keyword("NOT")
	switch {
	case p.keyword("LIKE"):
		return p.parseLike(left, negated)
	case p.keyword("IN"):
		return p.parseIn(left, negated)
	}
	return nil, p.errorf(p.peek(), "expected comparison, LIKE, IN or IS")
}

func (p *parser) parseLike(left Expr, negated bool) (Condition, error) {
	tok := p.next()
	if tok.kind != tokString {
		return nil, p.errorf(tok, "LIKE pattern must be a string")
	}
	like := Like{Left: left, Pattern: tok.text, Negated: negated}
	if p.keyword("ESCAPE") {
		esc := p.next()
		if esc.kind != tokString || utf8.RuneCountInString(esc.text) != 1 {
			return nil, p.errorf(esc, "ESCAPE must be a single character")
		}
		like.Escape, _ = utf8.DecodeRuneInString(esc.text)
	}
	return like, nil
}

func (p *parser) parseIn(left Expr, negated bool) (Condition, error) {
	if tok := p.next(); tok.kind != tokLParen {
		return nil, p.errorf(tok, "expected '(' after IN")
	}
	in := In{Left: left, Negated: negated}
	for {
		v, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		in.Values = append(in.Values, v)
		tok := p.next()
		if tok.kind == tokRParen {
			return in, nil
		}
		if tok.kind != tokComma {
			return nil, p.errorf(tok, "expected ',' or ')'")
		}
	}
}

func (p *parser) parseOperand() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokIdent:
		return ColumnRef{Name: tok.text}, nil
	case tokString:
		return Literal{Value: ir.IRString(tok.text)}, nil
	case tokNumber:
		v, err := ir.UnmarshalIRValue([]byte(tok.text))
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return Literal{Value: v}, nil
	case tokKeyword:
		switch tok.text {
		case "TRUE":
			return Literal{Value: ir.IRBool(true)}, nil
		case "FALSE":
			return Literal{Value: ir.IRBool(false)}, nil
		case "NULL":
			return Literal{Value: ir.IRNull{}}, nil
		}
	}
	return nil, p.errorf(tok, "expected column or literal, got %q", tok.text)
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Format renders cond in the text form accepted by Parse.
func Format(cond Condition) string {
	var b strings.Builder
	writeCondition(&b, cond)
	return b.String()
}

func writeCondition(b *strings.Builder, cond Condition) {
	switch c := cond.(type) {
	case AndOr:
		writeOperand(b, c.Op, c.Left, false)
		b.WriteString(" " + c.Op.String() + " ")
		writeOperand(b, c.Op, c.Right, true)
	case Not:
		b.WriteString("NOT (")
		writeCondition(b, c.Inner)
		b.WriteString(")")
	case Comparison:
		b.WriteString(FormatExpr(c.Left) + " " + c.Op.String() + " " + FormatExpr(c.Right))
	case Like:
		b.WriteString(FormatExpr(c.Left))
		if c.Negated {
			b.WriteString(" NOT")
		}
		b.WriteString(" LIKE " + quote(c.Pattern, '\''))
		if c.Escape != 0 {
			b.WriteString(" ESCAPE " + quote(string(c.Escape), '\''))
		}
	case In:
		b.WriteString(FormatExpr(c.Left))
		if c.Negated {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		for i, v := range c.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(FormatExpr(v))
		}
		b.WriteString(")")
	case IsNull:
		b.WriteString(FormatExpr(c.Expr))
		if c.Negated {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	default:
		fmt.Fprintf(b, "<%T>", cond)
	}
}

// writeOperand parenthesizes nested AndOr nodes where the text form would
// otherwise regroup them.
func writeOperand(b *strings.Builder, parent LogicalOp, cond Condition, right bool) {
	if n, ok := cond.(AndOr); ok && (right || n.Op != parent) {
		b.WriteString("(")
		writeCondition(b, cond)
		b.WriteString(")")
		return
	}
	writeCondition(b, cond)
}

// FormatExpr renders an operand.
func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case ColumnRef:
		if plainIdent.MatchString(x.Name) && !keywords[strings.ToUpper(x.Name)] {
			return x.Name
		}
		return quote(x.Name, '"')
	case Literal:
		return formatLiteral(x.Value)
	default:
		return fmt.Sprintf("<%T>", e)
	}
}

func formatLiteral(v ir.IRValue) string {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "NULL"
	case ir.IRString:
		return quote(string(val), '\'')
	case ir.IRBool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		data, err := ir.MarshalIRValue(v)
		if err != nil {
			return fmt.Sprintf("<%s>", ir.KindOf(v))
		}
		return string(data)
	}
}

func quote(s string, q rune) string {
	qs := string(q)
	return qs + strings.ReplaceAll(s, qs, qs+qs) + qs
}
