package ometa

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrConfig is wrapped by errors caused by misusing a matcher, such as
// enabling a one-time feature twice.
var ErrConfig = errors.New("configuration misuse")

// MatchError reports an ordinary match failure at the top level.
type MatchError struct {
	Rule string
	// Index is the offset of the furthest element that was read.
	Index int
	// Line and Column are 1-based and only set for text input.
	Line   int
	Column int
}

func (e *MatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("match failed: %s at line %d, column %d", e.Rule, e.Line, e.Column)
	}
	return fmt.Sprintf("match failed: %s at index %d", e.Rule, e.Index)
}

// XorError reports that more than one alternative of an exclusive choice
// matched.
type XorError struct {
	Grammar string
	Rule    string
	Index   int
}

func (e *XorError) Error() string {
	return fmt.Sprintf("more than one choice matched by exclusive-OR in %s.%s at index %d", e.Grammar, e.Rule, e.Index)
}

// UnknownRuleError reports the application of a rule that no grammar in the
// delegation chain defines.
type UnknownRuleError struct {
	Grammar string
	Rule    string
	Hints   []string
}

func (e *UnknownRuleError) Error() string {
	msg := fmt.Sprintf("rule %q is not defined in grammar %s", e.Rule, e.Grammar)
	if len(e.Hints) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Hints, ", "))
	}
	return msg
}

// ActionError wraps an error returned by a semantic action or predicate.
type ActionError struct {
	Rule  string
	Index int
	Err   error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action in %s at index %d: %v", e.Rule, e.Index, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// IsMatchFailure reports whether err is an ordinary match failure rather
// than a hard error.
func IsMatchFailure(err error) bool {
	var me *MatchError
	return errors.As(err, &me)
}

const maxHintDistance = 3

func closestRules(name string, candidates []string) []string {
	best := maxHintDistance + 1
	var out []string
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		switch {
		case d < best:
			best = d
			out = []string{c}
		case d == best:
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// lineColumn converts a rune offset into a 1-based line and column.
func lineColumn(text string, idx int) (int, int) {
	line, col, i := 1, 1, 0
	for _, r := range text {
		if i >= idx {
			break
		}
		i++
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
