package hostexpr

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dhamidi/ometa/grammar/codegen"
	"github.com/dhamidi/ometa/ometa"
)

type node interface{ hostNode() }

type (
	lit struct{ v any }
	ref struct{ name string }
	call struct {
		fn   string
		args []node
	}
	list  struct{ elems []node }
	unary struct {
		op string
		x  node
	}
	binary struct {
		op   string
		l, r node
	}
	cond  struct{ c, a, b node }
	index struct{ x, i node }
	field struct {
		x    node
		name string
	}
	assign struct {
		name string
		x    node
	}
	block struct{ stmts []node }
)

func (*lit) hostNode()    {}
func (*ref) hostNode()    {}
func (*call) hostNode()   {}
func (*list) hostNode()   {}
func (*unary) hostNode()  {}
func (*binary) hostNode() {}
func (*cond) hostNode()   {}
func (*index) hostNode()  {}
func (*field) hostNode()  {}
func (*assign) hostNode() {}
func (*block) hostNode()  {}

// ErrUnknownName is wrapped by compile errors for identifiers that are
// neither locals nor builtins.
var ErrUnknownName = errors.New("unknown name")

// Language compiles payloads written in this package's expression language.
type Language struct{}

// Compile implements codegen.Host.
func (Language) Compile(src string, scope []string) (codegen.Action, error) {
	return Compile(src, scope)
}

func parse(src string) (node, error) {
	v, err := Grammar.MatchAll(src, "program")
	if err != nil {
		return nil, fmt.Errorf("parse host expression %q: %w", src, err)
	}
	return v.(node), nil
}

// Compile parses src and resolves its identifiers against scope, the names
// of the frame slots in order.
func Compile(src string, scope []string) (codegen.Action, error) {
	n, err := parse(src)
	if err != nil {
		return nil, err
	}
	slots := make(map[string]int, len(scope))
	for i, name := range scope {
		slots[name] = i
	}
	c := &compiler{slots: slots}
	fn, err := c.compile(n)
	if err != nil {
		return nil, fmt.Errorf("compile host expression %q: %w", src, err)
	}
	return codegen.Action(fn), nil
}

// Constant reports the value of src when it is a literal, such as a quoted
// string, a number or a keyword.
func Constant(src string) (any, bool) {
	n, err := parse(src)
	if err != nil {
		return nil, false
	}
	switch x := n.(type) {
	case *lit:
		return x.v, true
	case *unary:
		l, ok := x.x.(*lit)
		if !ok || x.op != "-" {
			return nil, false
		}
		switch v := l.v.(type) {
		case int:
			return -v, true
		case float64:
			return -v, true
		}
	}
	return nil, false
}

type evalFn func(m *ometa.Matcher, frame []any) (any, error)

type compiler struct {
	slots map[string]int
}

func (c *compiler) compile(n node) (evalFn, error) {
	switch x := n.(type) {
	case *lit:
		v := x.v
		return func(*ometa.Matcher, []any) (any, error) { return v, nil }, nil
	case *ref:
		i, ok := c.slots[x.name]
		if !ok {
			return nil, fmt.Errorf("%q: %w", x.name, ErrUnknownName)
		}
		return func(_ *ometa.Matcher, frame []any) (any, error) {
			return normalize(frame[i]), nil
		}, nil
	case *list:
		elems, err := c.compileAll(x.elems)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			return evalAll(m, frame, elems)
		}, nil
	case *call:
		b, ok := builtins[x.fn]
		if !ok {
			return nil, fmt.Errorf("function %q: %w", x.fn, ErrUnknownName)
		}
		if len(x.args) < b.min || b.max >= 0 && len(x.args) > b.max {
			return nil, fmt.Errorf("%s: wrong number of arguments: %d", x.fn, len(x.args))
		}
		args, err := c.compileAll(x.args)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			vs, err := evalAll(m, frame, args)
			if err != nil {
				return nil, err
			}
			return b.fn(m, vs)
		}, nil
	case *unary:
		sub, err := c.compile(x.x)
		if err != nil {
			return nil, err
		}
		if x.op == "!" {
			return func(m *ometa.Matcher, frame []any) (any, error) {
				v, err := sub(m, frame)
				if err != nil {
					return nil, err
				}
				return !ometa.Truthy(v), nil
			}, nil
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			v, err := sub(m, frame)
			if err != nil {
				return nil, err
			}
			return negate(v)
		}, nil
	case *binary:
		return c.compileBinary(x)
	case *cond:
		fs, err := c.compileAll([]node{x.c, x.a, x.b})
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			v, err := fs[0](m, frame)
			if err != nil {
				return nil, err
			}
			if ometa.Truthy(v) {
				return fs[1](m, frame)
			}
			return fs[2](m, frame)
		}, nil
	case *index:
		fs, err := c.compileAll([]node{x.x, x.i})
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			vs, err := evalAll(m, frame, fs)
			if err != nil {
				return nil, err
			}
			return indexValue(vs[0], vs[1])
		}, nil
	case *field:
		sub, err := c.compile(x.x)
		if err != nil {
			return nil, err
		}
		name := x.name
		return func(m *ometa.Matcher, frame []any) (any, error) {
			v, err := sub(m, frame)
			if err != nil {
				return nil, err
			}
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field %s of %T", name, v)
			}
			return normalize(obj[name]), nil
		}, nil
	case *assign:
		i, ok := c.slots[x.name]
		if !ok {
			return nil, fmt.Errorf("assignment to %q: %w", x.name, ErrUnknownName)
		}
		sub, err := c.compile(x.x)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			v, err := sub(m, frame)
			if err != nil {
				return nil, err
			}
			frame[i] = v
			return v, nil
		}, nil
	case *block:
		stmts, err := c.compileAll(x.stmts)
		if err != nil {
			return nil, err
		}
		return func(m *ometa.Matcher, frame []any) (any, error) {
			var last any
			for _, s := range stmts {
				v, err := s(m, frame)
				if err != nil {
					return nil, err
				}
				last = v
			}
			return last, nil
		}, nil
	}
	return nil, fmt.Errorf("unexpected expression %T", n)
}

func (c *compiler) compileAll(ns []node) ([]evalFn, error) {
	out := make([]evalFn, len(ns))
	for i, n := range ns {
		fn, err := c.compile(n)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func evalAll(m *ometa.Matcher, frame []any, fs []evalFn) ([]any, error) {
	out := make([]any, len(fs))
	for i, f := range fs {
		v, err := f(m, frame)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *compiler) compileBinary(x *binary) (evalFn, error) {
	l, err := c.compile(x.l)
	if err != nil {
		return nil, err
	}
	r, err := c.compile(x.r)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case "or", "and":
		and := x.op == "and"
		return func(m *ometa.Matcher, frame []any) (any, error) {
			a, err := l(m, frame)
			if err != nil {
				return nil, err
			}
			if ometa.Truthy(a) != and {
				return a, nil
			}
			return r(m, frame)
		}, nil
	}
	op, ok := operators[x.op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", x.op)
	}
	return func(m *ometa.Matcher, frame []any) (any, error) {
		a, err := l(m, frame)
		if err != nil {
			return nil, err
		}
		b, err := r(m, frame)
		if err != nil {
			return nil, err
		}
		return op(normalize(a), normalize(b))
	}, nil
}

// normalize turns characters into one-character strings.
func normalize(v any) any {
	if r, ok := v.(rune); ok {
		return string(r)
	}
	return v
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if n, ok := asInt(v); ok {
		return float64(n), true
	}
	f, ok := v.(float64)
	return f, ok
}

func negate(v any) (any, error) {
	if n, ok := asInt(v); ok {
		return -n, nil
	}
	if f, ok := asFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

type operator func(a, b any) (any, error)

var operators = map[string]operator{
	"+":  add,
	"-":  arith("-", func(a, b int) (int, error) { return a - b, nil }, func(a, b float64) float64 { return a - b }),
	"*":  arith("*", func(a, b int) (int, error) { return a * b, nil }, func(a, b float64) float64 { return a * b }),
	"/":  arith("/", divInt, func(a, b float64) float64 { return a / b }),
	"%":  arith("%", modInt, math.Mod),
	"==": func(a, b any) (any, error) { return ometa.Equal(a, b), nil },
	"!=": func(a, b any) (any, error) { return !ometa.Equal(a, b), nil },
	"<":  compare(func(c int) bool { return c < 0 }),
	"<=": compare(func(c int) bool { return c <= 0 }),
	">":  compare(func(c int) bool { return c > 0 }),
	">=": compare(func(c int) bool { return c >= 0 }),
}

func add(a, b any) (any, error) {
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	switch {
	case aStr && bStr:
		return sa + sb, nil
	case aStr:
		return sa + toString(b), nil
	case bStr:
		return toString(a) + sb, nil
	}
	if xs, ok := a.([]any); ok {
		if ys, ok := b.([]any); ok {
			return append(append([]any{}, xs...), ys...), nil
		}
	}
	return arith("+", func(a, b int) (int, error) { return a + b, nil }, func(a, b float64) float64 { return a + b })(a, b)
}

func arith(name string, ints func(a, b int) (int, error), floats func(a, b float64) float64) operator {
	return func(a, b any) (any, error) {
		if x, ok := asInt(a); ok {
			if y, ok := asInt(b); ok {
				return ints(x, y)
			}
		}
		x, ok1 := asFloat(a)
		y, ok2 := asFloat(b)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("operator %s: unsupported operands %T and %T", name, a, b)
		}
		return floats(x, y), nil
	}
}

var errDivisionByZero = errors.New("division by zero")

func divInt(a, b int) (int, error) {
	if b == 0 {
		return 0, errDivisionByZero
	}
	return a / b, nil
}

func modInt(a, b int) (int, error) {
	if b == 0 {
		return 0, errDivisionByZero
	}
	return a % b, nil
}

func compare(test func(int) bool) operator {
	return func(a, b any) (any, error) {
		if x, ok := asFloat(a); ok {
			if y, ok := asFloat(b); ok {
				switch {
				case x < y:
					return test(-1), nil
				case x > y:
					return test(1), nil
				}
				return test(0), nil
			}
		}
		sa, ok1 := a.(string)
		sb, ok2 := b.(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("cannot compare %T and %T", a, b)
		}
		return test(strings.Compare(sa, sb)), nil
	}
}

func indexValue(v, i any) (any, error) {
	n, ok := asInt(i)
	if !ok {
		return nil, fmt.Errorf("index of type %T", i)
	}
	switch x := v.(type) {
	case []any:
		if n < 0 || n >= len(x) {
			return nil, fmt.Errorf("index %d out of range [0:%d]", n, len(x))
		}
		return normalize(x[n]), nil
	case string:
		rs := []rune(x)
		if n < 0 || n >= len(rs) {
			return nil, fmt.Errorf("index %d out of range [0:%d]", n, len(rs))
		}
		return string(rs[n]), nil
	}
	return nil, fmt.Errorf("cannot index %T", v)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	case []any:
		return ometa.Join(x, "")
	}
	return fmt.Sprint(v)
}

func length(v any) (int, error) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), nil
	case []any:
		return len(x), nil
	case map[string]any:
		return len(x), nil
	}
	return 0, fmt.Errorf("len of %T", v)
}
