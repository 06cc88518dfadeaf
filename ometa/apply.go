package ometa

import (
	"fmt"

	"github.com/dhamidi/ometa/stream"
)

// Apply applies the rule name, resolved against the matcher's grammar, at
// the current position. Results are memoized per node, and direct left
// recursion is resolved by growing a seed.
func (m *Matcher) Apply(name string) (any, bool) {
	if m.err != nil {
		return nil, false
	}
	r, ok := m.grammar.Lookup(name)
	if !ok {
		return m.unknownRule(m.grammar, name)
	}
	return m.memoApply(r, stream.Key{Rule: name}, nil)
}

// ApplyWithArgs applies name with arguments. The first Arity arguments are
// passed to the rule directly; the rest are prepended onto the input in
// order, so the rule body can consume them as elements. Applications with
// arguments are memoized only under WithMemoizedParameters.
func (m *Matcher) ApplyWithArgs(name string, args ...any) (any, bool) {
	if m.err != nil {
		return nil, false
	}
	r, ok := m.grammar.Lookup(name)
	if !ok {
		return m.unknownRule(m.grammar, name)
	}
	if len(args) == 0 {
		return m.memoApply(r, stream.Key{Rule: name}, nil)
	}
	if m.memoParams {
		if key, ok := stream.ArgsKey(args); ok {
			return m.memoApply(r, stream.Key{Rule: name, Args: key}, args)
		}
	}
	return m.call(r, args)
}

// SuperApply applies name as defined by the parent of from, bypassing any
// override in from itself. It is never memoized.
func (m *Matcher) SuperApply(from *Grammar, name string, args ...any) (any, bool) {
	if m.err != nil {
		return nil, false
	}
	r, ok := from.Super(name)
	if !ok {
		return m.unknownRule(from, "^"+name)
	}
	return m.call(r, args)
}

// Foreign applies rule of grammar g against a proxy of the current position
// and resumes at the position the foreign match ended at.
func (m *Matcher) Foreign(g *Grammar, rule string, args ...any) (any, bool) {
	if m.err != nil {
		return nil, false
	}
	sub := m.fork(g, stream.NewProxy(m.input))
	var v any
	var ok bool
	if len(args) == 0 {
		v, ok = sub.Apply(rule)
	} else {
		v, ok = sub.ApplyWithArgs(rule, args...)
	}
	if sub.reach > m.reach {
		m.reach = sub.reach
	}
	if sub.furthest > m.furthest {
		m.furthest = sub.furthest
	}
	m.spans = append(m.spans, sub.spans...)
	if sub.err != nil {
		return m.Abort(sub.err)
	}
	if !ok {
		return nil, false
	}
	p, isProxy := sub.input.(*stream.Proxy)
	if !isProxy {
		return nil, false
	}
	m.input = p.Target()
	return v, true
}

func (m *Matcher) unknownRule(g *Grammar, name string) (any, bool) {
	return m.Abort(&UnknownRuleError{
		Grammar: g.Name,
		Rule:    name,
		Hints:   closestRules(name, g.AllRuleNames()),
	})
}

// call runs r without memoization and records the token span.
func (m *Matcher) call(r *Rule, args []any) (any, bool) {
	orig := m.input
	v, ok := m.invoke(r, args)
	if ok {
		m.addToken(orig, r.Name, args)
	}
	return v, ok
}

// invoke prepends the extra arguments and runs the rule body.
func (m *Matcher) invoke(r *Rule, args []any) (any, bool) {
	m.addBranch(r.Name, args)
	direct := args
	if len(args) > r.Arity {
		direct = args[:r.Arity]
		for i := len(args) - 1; i >= r.Arity; i-- {
			m.input = stream.Prepend(m.input, args[i], m.memoParams)
		}
	}
	if len(direct) < r.Arity {
		padded := make([]any, r.Arity)
		copy(padded, direct)
		direct = padded
	}
	outer := m.rule
	m.rule = r
	v, ok := r.Fn(m, direct)
	m.rule = outer
	if m.err != nil {
		return nil, false
	}
	return v, ok
}

func (m *Matcher) memoApply(r *Rule, key stream.Key, args []any) (any, bool) {
	orig := m.input
	memo := orig.Memo()
	if e, ok := memo[key]; ok {
		if e.Failed {
			m.touch(e.Reach, e.Furthest)
			return nil, false
		}
		if e.Pending {
			e.Recursed = true
			return nil, false
		}
		m.input = e.Next
		m.touch(e.Reach, e.Furthest)
		for _, sp := range e.Spans {
			m.record(sp)
		}
		m.addToken(orig, r.Name, args)
		return e.Value, true
	}

	e := &stream.Entry{Pending: true}
	memo[key] = e
	outerReach, outerFurthest := m.reach, m.furthest
	m.reach, m.furthest = -1, -1
	mark := len(m.spans)

	v, ok := m.invoke(r, args)
	if ok {
		e.Value, e.Next, e.Pending = v, m.input, false
		if e.Recursed {
			m.grow(r, e, orig, args)
		}
	}
	e.Reach, e.Furthest, e.Failed = m.reach, m.furthest, e.Pending
	if len(m.spans) > mark {
		e.Spans = append([]stream.Span(nil), m.spans[mark:]...)
	}
	m.reach, m.furthest = outerReach, outerFurthest
	m.touch(e.Reach, e.Furthest)

	if m.noMemo {
		delete(memo, key)
	}
	if m.err != nil || e.Pending {
		return nil, false
	}
	m.input = e.Next
	m.addToken(orig, r.Name, args)
	return e.Value, true
}

// grow re-runs a left-recursive rule from orig, using the memoized seed for
// the inner recursive application, for as long as every retry ends strictly
// further than the previous one.
func (m *Matcher) grow(r *Rule, e *stream.Entry, orig stream.Node, args []any) {
	for {
		m.input = orig
		v, ok := m.invoke(r, args)
		if !ok || m.err != nil {
			return
		}
		if m.input.Index() <= e.Next.Index() {
			return
		}
		e.Value, e.Next = v, m.input
	}
}

func (m *Matcher) touch(reach, furthest int) {
	if reach > m.reach {
		m.reach = reach
	}
	if furthest > m.furthest {
		m.furthest = furthest
	}
}

func (m *Matcher) addToken(start stream.Node, rule string, args []any) {
	if !m.tokensOn || !m.tokens[rule] {
		return
	}
	m.record(stream.Span{Start: start, End: m.input, Rule: rule, Args: args})
}

// record collects sp for the enclosing memo entries and attaches it to its
// start node unless recording is suppressed. Spans collected under a
// negation still reach the entries, so a later hit outside one attaches them.
func (m *Matcher) record(sp stream.Span) {
	m.spans = append(m.spans, sp)
	if m.quiet > 0 {
		return
	}
	stream.AddToken(sp.Start, sp.End, sp.Rule, sp.Args)
}

func (m *Matcher) addBranch(rule string, args []any) {
	if !m.branchesOn || m.quiet > 0 || !m.branchOf[rule] {
		return
	}
	idx := m.input.Index()
	if m.branches[idx] == nil {
		m.branches[idx] = make(map[string][]any)
	}
	if args == nil {
		args = []any{}
	}
	m.branches[idx][rule] = args
}

// RuleName returns the name of the rule currently executing.
func (m *Matcher) RuleName() string {
	if m.rule == nil {
		return ""
	}
	return m.rule.Name
}

func (m *Matcher) xorError(orig stream.Node) (any, bool) {
	grammar, rule := m.grammar.Name, "?"
	if m.rule != nil {
		grammar, rule = m.rule.Grammar.Name, m.rule.Name
	}
	return m.Abort(&XorError{Grammar: grammar, Rule: rule, Index: orig.Index()})
}

// ActionFailed records err returned by a semantic action as a hard error.
func (m *Matcher) ActionFailed(err error) (any, bool) {
	return m.Abort(&ActionError{Rule: m.RuleName(), Index: m.Pos(), Err: fmt.Errorf("%w", err)})
}
