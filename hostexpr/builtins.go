package hostexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dhamidi/ometa/ometa"
)

type builtin struct {
	min, max int // max < 0 means variadic
	fn       func(m *ometa.Matcher, args []any) (any, error)
}

var builtins = map[string]builtin{
	"int":    {1, 1, func(_ *ometa.Matcher, args []any) (any, error) { return toInt(args[0]) }},
	"float":  {1, 1, func(_ *ometa.Matcher, args []any) (any, error) { return toFloat(args[0]) }},
	"str":    {1, 1, func(_ *ometa.Matcher, args []any) (any, error) { return toString(args[0]), nil }},
	"len":    {1, 1, func(_ *ometa.Matcher, args []any) (any, error) { return length(args[0]) }},
	"join":   {1, 2, join},
	"append": {1, -1, appendValues},
	"concat": {0, -1, concat},
	"list":   {0, -1, func(_ *ometa.Matcher, args []any) (any, error) { return args, nil }},
	"pos":    {0, 0, func(m *ometa.Matcher, _ []any) (any, error) { return m.Pos(), nil }},
	"state":  {0, 0, func(m *ometa.Matcher, _ []any) (any, error) { return m.State(), nil }},
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("int: %w", err)
		}
		return n, nil
	case []any:
		return toInt(ometa.Join(x, ""))
	}
	return nil, fmt.Errorf("int: cannot convert %T", v)
}

func toFloat(v any) (any, error) {
	if f, ok := asFloat(v); ok {
		return f, nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []any:
		s = ometa.Join(x, "")
	default:
		return nil, fmt.Errorf("float: cannot convert %T", v)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, fmt.Errorf("float: %w", err)
	}
	return f, nil
}

func join(_ *ometa.Matcher, args []any) (any, error) {
	xs, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("join: expected a list, got %T", args[0])
	}
	sep := ""
	if len(args) == 2 {
		s, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("join: separator must be a string, got %T", args[1])
		}
		sep = s
	}
	return ometa.Join(xs, sep), nil
}

func appendValues(_ *ometa.Matcher, args []any) (any, error) {
	xs, ok := args[0].([]any)
	if !ok && args[0] != nil {
		return nil, fmt.Errorf("append: expected a list, got %T", args[0])
	}
	out := make([]any, 0, len(xs)+len(args)-1)
	out = append(out, xs...)
	return append(out, args[1:]...), nil
}

func concat(_ *ometa.Matcher, args []any) (any, error) {
	out := []any{}
	for _, a := range args {
		xs, ok := a.([]any)
		if !ok {
			return nil, fmt.Errorf("concat: expected lists, got %T", a)
		}
		out = append(out, xs...)
	}
	return out, nil
}
