// Package formula parses column formulas into an expression tree.
//
// Formulas use spreadsheet syntax: column references in braces, function
// calls with upper-case names, arithmetic and comparison operators, and
// & for string concatenation:
//
//	IF({Amount} > 100, CONCAT({Name}, ' (large)'), {Name})
//
// Parsing is delegated to the Starlark expression grammar after braced
// references are replaced by placeholder identifiers and a single = is
// rewritten to ==.
package formula

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"go.starlark.net/syntax"
)

// Op is a unary or binary operator.
type Op string

// Operators.
const (
	OpAdd    Op = "+"
	OpSub    Op = "-"
	OpMul    Op = "*"
	OpDiv    Op = "/"
	OpMod    Op = "%"
	OpConcat Op = "&"
	OpEq     Op = "="
	OpNeq    Op = "!="
	OpLt     Op = "<"
	OpLte    Op = "<="
	OpGt     Op = ">"
	OpGte    Op = ">="
	OpAnd    Op = "and"
	OpOr     Op = "or"
	OpNot    Op = "not"
	OpNeg    Op = "neg"
)

// Node is a formula expression.
type Node interface {
	node()
}

// Literal is a string, int64, float64 or bool constant.
type Literal struct {
	Value any
}

// Ref references a column by id or title.
type Ref struct {
	Name string
}

// Call invokes a built-in function. Name is upper case.
type Call struct {
	Name string
	Args []Node
}

// Binary applies Op to X and Y.
type Binary struct {
	Op Op
	X  Node
	Y  Node
}

// Unary applies Op to X.
type Unary struct {
	Op Op
	X  Node
}

func (*Literal) node() {}
func (*Ref) node()     {}
func (*Call) node()    {}
func (*Binary) node()  {}
func (*Unary) node()   {}

// ParseError describes a formula that cannot be parsed.
type ParseError struct {
	Formula string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid formula %q: %s", e.Formula, e.Message)
}

type arity struct{ min, max int }

const variadic = -1

var functions = map[string]arity{
	"CONCAT":   {1, variadic},
	"UPPER":    {1, 1},
	"LOWER":    {1, 1},
	"TRIM":     {1, 1},
	"LEN":      {1, 1},
	"ROUND":    {1, 2},
	"ABS":      {1, 1},
	"IF":       {2, 3},
	"AND":      {1, variadic},
	"OR":       {1, variadic},
	"NOT":      {1, 1},
	"BLANK":    {1, 1},
	"NOW":      {0, 0},
	"COALESCE": {1, variadic},
}

// IsFunction reports whether name is a supported function.
func IsFunction(name string) bool {
	_, ok := functions[strings.ToUpper(name)]
	return ok
}

const refPrefix = "__ref_"

// Parse parses src into an expression tree.
func Parse(src string) (Node, error) {
	rewritten, refs, err := rewrite(src)
	if err != nil {
		return nil, &ParseError{Formula: src, Message: err.Error()}
	}
	expr, err := syntax.ParseExpr("formula", rewritten, 0)
	if err != nil {
		return nil, &ParseError{Formula: src, Message: err.Error()}
	}
	c := converter{refs: refs}
	n, err := c.convert(expr)
	if err != nil {
		return nil, &ParseError{Formula: src, Message: err.Error()}
	}
	return n, nil
}

// Refs returns the distinct references in n in order of appearance.
func Refs(n Node) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(n, func(n Node) {
		if r, ok := n.(*Ref); ok && !seen[r.Name] {
			seen[r.Name] = true
			out = append(out, r.Name)
		}
	})
	return out
}

// Walk calls fn for n and every node below it, parents first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch n := n.(type) {
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Binary:
		Walk(n.X, fn)
		Walk(n.Y, fn)
	case *Unary:
		Walk(n.X, fn)
	}
}

// rewrite replaces {refs} with placeholder identifiers and a lone = with ==.
// String literals are copied verbatim.
func rewrite(src string) (string, []string, error) {
	var b strings.Builder
	var refs []string

	for i := 0; i < len(src); {
		ch := src[i]
		switch ch {
		case '"', '\'':
			j := i + 1
			for j < len(src) && src[j] != ch {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return "", nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			b.WriteString(src[i : j+1])
			i = j + 1
		case '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated column reference at offset %d", i)
			}
			name := strings.TrimSpace(src[i+1 : i+1+end])
			if name == "" {
				return "", nil, fmt.Errorf("empty column reference at offset %d", i)
			}
			b.WriteString(refPrefix + strconv.Itoa(len(refs)))
			refs = append(refs, name)
			i += end + 2
		case '=':
			var prev, next byte
			if i > 0 {
				prev = src[i-1]
			}
			if i+1 < len(src) {
				next = src[i+1]
			}
			if strings.IndexByte("=!<>", prev) >= 0 || next == '=' {
				b.WriteByte('=')
			} else {
				b.WriteString("==")
			}
			i++
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String(), refs, nil
}

type converter struct {
	refs []string
}

var binaryOps = map[syntax.Token]Op{
	syntax.PLUS:    OpAdd,
	syntax.MINUS:   OpSub,
	syntax.STAR:    OpMul,
	syntax.SLASH:   OpDiv,
	syntax.PERCENT: OpMod,
	syntax.AMP:     OpConcat,
	syntax.EQL:     OpEq,
	syntax.NEQ:     OpNeq,
	syntax.LT:      OpLt,
	syntax.LE:      OpLte,
	syntax.GT:      OpGt,
	syntax.GE:      OpGte,
	syntax.AND:     OpAnd,
	syntax.OR:      OpOr,
}

func (c *converter) convert(expr syntax.Expr) (Node, error) {
	switch e := expr.(type) {
	case *syntax.Literal:
		return literal(e)
	case *syntax.Ident:
		return c.ident(e)
	case *syntax.ParenExpr:
		return c.convert(e.X)
	case *syntax.UnaryExpr:
		x, err := c.convert(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case syntax.MINUS:
			return &Unary{Op: OpNeg, X: x}, nil
		case syntax.PLUS:
			return x, nil
		case syntax.NOT:
			return &Unary{Op: OpNot, X: x}, nil
		}
		return nil, fmt.Errorf("unsupported operator %s", e.Op)
	case *syntax.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %s", e.Op)
		}
		x, err := c.convert(e.X)
		if err != nil {
			return nil, err
		}
		y, err := c.convert(e.Y)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, X: x, Y: y}, nil
	case *syntax.CallExpr:
		return c.call(e)
	}
	start, _ := expr.Span()
	return nil, fmt.Errorf("unsupported expression at column %d", start.Col)
}

func (c *converter) call(e *syntax.CallExpr) (Node, error) {
	fn, ok := e.Fn.(*syntax.Ident)
	if !ok {
		return nil, fmt.Errorf("function name expected")
	}
	name := strings.ToUpper(fn.Name)
	a, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %s", fn.Name)
	}
	if len(e.Args) < a.min || (a.max != variadic && len(e.Args) > a.max) {
		return nil, fmt.Errorf("%s expects %s arguments, got %d", name, a, len(e.Args))
	}

	call := &Call{Name: name, Args: make([]Node, len(e.Args))}
	for i, arg := range e.Args {
		n, err := c.convert(arg)
		if err != nil {
			return nil, err
		}
		call.Args[i] = n
	}
	return call, nil
}

func (a arity) String() string {
	switch {
	case a.max == variadic:
		return fmt.Sprintf("at least %d", a.min)
	case a.min == a.max:
		return strconv.Itoa(a.min)
	}
	return fmt.Sprintf("%d to %d", a.min, a.max)
}

func (c *converter) ident(e *syntax.Ident) (Node, error) {
	if idx, ok := strings.CutPrefix(e.Name, refPrefix); ok {
		i, err := strconv.Atoi(idx)
		if err == nil && i >= 0 && i < len(c.refs) {
			return &Ref{Name: c.refs[i]}, nil
		}
	}
	switch strings.ToUpper(e.Name) {
	case "TRUE":
		return &Literal{Value: true}, nil
	case "FALSE":
		return &Literal{Value: false}, nil
	}
	return nil, fmt.Errorf("unknown identifier %s (column references are written as {name})", e.Name)
}

func literal(e *syntax.Literal) (Node, error) {
	switch v := e.Value.(type) {
	case string:
		return &Literal{Value: v}, nil
	case int64:
		return &Literal{Value: v}, nil
	case float64:
		return &Literal{Value: v}, nil
	case *big.Int:
		return nil, fmt.Errorf("integer %s out of range", v)
	}
	return nil, fmt.Errorf("unsupported literal %s", e.Raw)
}
