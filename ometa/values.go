package ometa

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// IndexSpan is the result of IdxConsumedBy: the half-open range of input
// indices a pattern consumed.
type IndexSpan struct {
	From int
	To   int
}

func (s IndexSpan) String() string { return fmt.Sprintf("%d..%d", s.From, s.To) }

// Equal compares stream elements. A rune equals the one-character string
// holding it, and numbers compare by value across integer and float types.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case rune:
		switch y := b.(type) {
		case rune:
			return x == y
		case string:
			return isOneRune(y, x)
		}
		return false
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case rune:
			return isOneRune(x, y)
		}
		return false
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func isOneRune(s string, r rune) bool {
	c, size := utf8.DecodeRuneInString(s)
	return size > 0 && size == len(s) && c == r
}

// toFloat converts numeric values. rune is a character, not a number.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// IsNumber reports whether v is a number.
func IsNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// AsChar returns v as a character: a rune, or a string of exactly one rune.
func AsChar(v any) (rune, bool) {
	switch x := v.(type) {
	case rune:
		return x, true
	case string:
		r, size := utf8.DecodeRuneInString(x)
		if size > 0 && size == len(x) {
			return r, true
		}
	}
	return 0, false
}

// AsString returns v as text. Characters are text of length one.
func AsString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case rune:
		return string(x), true
	}
	return "", false
}

// Elements returns the elements of a sequence value as matched by Seq.
func Elements(v any) ([]any, bool) {
	switch xs := v.(type) {
	case string:
		out := make([]any, 0, len(xs))
		for _, r := range xs {
			out = append(out, r)
		}
		return out, true
	case []rune:
		out := make([]any, len(xs))
		for i, r := range xs {
			out[i] = r
		}
		return out, true
	case []any:
		return xs, true
	case []string:
		out := make([]any, len(xs))
		for i, s := range xs {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Join concatenates the textual values in xs.
func Join(xs []any, sep string) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		if s, ok := AsString(x); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, fmt.Sprint(x))
	}
	return strings.Join(parts, sep)
}

// Truthy reports whether v counts as true for predicates: nil, false, zero
// numbers and the empty string are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case rune:
		return true
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
