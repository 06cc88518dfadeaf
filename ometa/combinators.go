package ometa

import (
	"github.com/dhamidi/ometa/stream"
)

// Anything consumes and returns one element.
func (m *Matcher) Anything() (any, bool) {
	if m.err != nil {
		return nil, false
	}
	return m.next()
}

// Exactly consumes one element and succeeds with want if it is Equal to it.
func (m *Matcher) Exactly(want any) (any, bool) {
	if m.err != nil {
		return nil, false
	}
	v, ok := m.next()
	if !ok || !Equal(v, want) {
		return nil, false
	}
	return want, true
}

// Seq matches each element of the sequence xs in order with the grammar's
// exactly rule and returns xs.
func (m *Matcher) Seq(xs any) (any, bool) {
	elems, ok := Elements(xs)
	if !ok {
		return nil, false
	}
	for _, e := range elems {
		if _, ok := m.ApplyWithArgs("exactly", e); !ok {
			return nil, false
		}
	}
	return xs, true
}

// Pred succeeds with true when b holds.
func (m *Matcher) Pred(b bool) (any, bool) {
	if !b || m.err != nil {
		return nil, false
	}
	return true, true
}

// Or tries each pattern from the same position and commits to the first that
// succeeds.
func (m *Matcher) Or(ps ...Pattern) (any, bool) {
	orig := m.input
	for _, p := range ps {
		m.input = orig
		v, ok := p()
		if m.err != nil {
			return nil, false
		}
		if ok {
			return v, true
		}
	}
	m.input = orig
	return nil, false
}

// XOr is like Or but requires exactly one pattern to succeed. More than one
// success is recorded as a *XorError, which no combinator recovers from.
func (m *Matcher) XOr(ps ...Pattern) (any, bool) {
	if m.noXOR {
		return m.Or(ps...)
	}
	orig := m.input
	var won stream.Node
	var ans any
	for _, p := range ps {
		m.input = orig
		v, ok := p()
		if m.err != nil {
			return nil, false
		}
		if !ok {
			continue
		}
		if won != nil {
			return m.xorError(orig)
		}
		won, ans = m.input, v
	}
	if won == nil {
		m.input = orig
		return nil, false
	}
	m.input = won
	return ans, true
}

// Not succeeds with true, consuming nothing, when p fails. Tokens and
// branches are not recorded while p runs.
func (m *Matcher) Not(p Pattern) (any, bool) {
	orig := m.input
	m.quiet++
	_, ok := p()
	m.quiet--
	m.input = orig
	if ok || m.err != nil {
		return nil, false
	}
	return true, true
}

// Lookahead runs p and restores the position whatever the outcome.
func (m *Matcher) Lookahead(p Pattern) (any, bool) {
	orig := m.input
	v, ok := p()
	m.input = orig
	if m.err != nil {
		return nil, false
	}
	return v, ok
}

// Opt returns the value of p, or nil without consuming when p fails.
func (m *Matcher) Opt(p Pattern) (any, bool) {
	orig := m.input
	v, ok := p()
	if m.err != nil {
		return nil, false
	}
	if !ok {
		m.input = orig
		return nil, true
	}
	return v, true
}

// Many applies p as often as it succeeds and returns the values as a []any.
// An iteration that succeeds without consuming ends the repetition.
func (m *Matcher) Many(p Pattern) (any, bool) {
	return m.many(p, []any{})
}

// Many1 is Many requiring at least one success.
func (m *Matcher) Many1(p Pattern) (any, bool) {
	orig := m.input
	v, ok := p()
	if !ok || m.err != nil {
		m.input = orig
		return nil, false
	}
	return m.many(p, []any{v})
}

func (m *Matcher) many(p Pattern, xs []any) (any, bool) {
	for {
		orig := m.input
		v, ok := p()
		if m.err != nil {
			return nil, false
		}
		if !ok {
			m.input = orig
			return xs, true
		}
		xs = append(xs, v)
		if m.input == orig {
			return xs, true
		}
	}
}

// Form consumes one element, matches p against its contents to the end and
// returns the element.
func (m *Matcher) Form(p Pattern) (any, bool) {
	v, ok := m.Apply("anything")
	if !ok {
		return nil, false
	}
	inner, ok := stream.From(v)
	if !ok {
		return nil, false
	}
	outer, reach, furthest := m.input, m.reach, m.furthest
	m.input = inner
	_, ok = p()
	if ok {
		_, ok = m.Apply("end")
	}
	m.input, m.reach, m.furthest = outer, reach, furthest
	if !ok || m.err != nil {
		return nil, false
	}
	return v, true
}

// ConsumedBy runs p and returns the consumed span instead of p's value: a
// string for text input, a []any otherwise.
func (m *Matcher) ConsumedBy(p Pattern) (any, bool) {
	orig := m.input
	if _, ok := p(); !ok || m.err != nil {
		return nil, false
	}
	return stream.UpTo(orig, m.input)
}

// IdxConsumedBy runs p and returns the consumed index range.
func (m *Matcher) IdxConsumedBy(p Pattern) (any, bool) {
	orig := m.input
	if _, ok := p(); !ok || m.err != nil {
		return nil, false
	}
	return IndexSpan{From: orig.Index(), To: m.input.Index()}, true
}

// Mode is the multiplicity of an interleaved part.
type Mode int

const (
	ExactlyOne Mode = iota
	ZeroOrMore
	OneOrMore
	ZeroOrOne
	done
)

func (md Mode) String() string {
	switch md {
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	case ZeroOrOne:
		return "?"
	default:
		return "1"
	}
}

// Part is one pattern of an interleaving.
type Part struct {
	Mode    Mode
	Pattern Pattern
}

// Interleave matches the parts in any order. Each round retries the parts
// in declaration order from the current position and takes the first that
// succeeds. It ends when no part succeeds, and then succeeds when every
// remaining part is optional. The result holds one value per part: a []any
// for repeated parts, the value or nil otherwise.
func (m *Matcher) Interleave(parts ...Part) (any, bool) {
	modes := make([]Mode, len(parts))
	ans := make([]any, len(parts))
	lists := make([][]any, len(parts))
	for i, pt := range parts {
		modes[i] = pt.Mode
		if pt.Mode == ZeroOrMore || pt.Mode == OneOrMore {
			lists[i] = []any{}
		}
	}
	orig, cur := m.input, m.input
	for {
		allDone, progressed := true, false
		for i, pt := range parts {
			if modes[i] == done {
				continue
			}
			m.input = cur
			v, ok := pt.Pattern()
			if m.err != nil {
				return nil, false
			}
			if !ok {
				allDone = allDone && (modes[i] == ZeroOrMore || modes[i] == ZeroOrOne)
				continue
			}
			switch modes[i] {
			case ZeroOrMore, OneOrMore:
				lists[i] = append(lists[i], v)
				modes[i] = ZeroOrMore
				if m.input == cur {
					modes[i] = done
				}
			default:
				ans[i] = v
				modes[i] = done
			}
			cur = m.input
			progressed = true
			break
		}
		if progressed {
			continue
		}
		if !allDone {
			m.input = orig
			return nil, false
		}
		m.input = cur
		for i, xs := range lists {
			if xs != nil {
				ans[i] = xs
			}
		}
		return ans, true
	}
}
