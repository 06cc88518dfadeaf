package ometa

import (
	"fmt"

	"github.com/dhamidi/ometa/stream"
)

// Pattern is a sub-match run by a combinator. It reports false on ordinary
// failure; hard errors are recorded on the matcher with Abort.
type Pattern func() (any, bool)

// FailureHandler turns a top-level match failure into a result. It is not
// consulted for hard errors.
type FailureHandler func(m *Matcher, err *MatchError) (any, error)

// Option configures a Matcher.
type Option func(*Matcher) error

// WithTokens records token spans for the named rules. Without names the
// grammar's TokenRules are used.
func WithTokens(rules ...string) Option {
	return func(m *Matcher) error {
		return m.EnableTokens(rules...)
	}
}

// WithBranchTracking records, per input index, the arguments of every
// attempted application of the named rules.
func WithBranchTracking(rules ...string) Option {
	return func(m *Matcher) error {
		return m.EnableBranchTracking(rules...)
	}
}

// WithMemoReuse makes later MatchAll calls on text input reuse the memo
// entries of the previous call where the texts agree. Rules listed here, in
// addition to the grammar's SideEffects, are never reused.
func WithMemoReuse(sideEffecting ...string) Option {
	return func(m *Matcher) error {
		return m.EnableMemoReuse(sideEffecting...)
	}
}

// WithoutMemoization discards completed memo entries after each
// application. Left recursion still works.
func WithoutMemoization() Option {
	return func(m *Matcher) error {
		m.noMemo = true
		return nil
	}
}

// WithMemoizedParameters memoizes applications with arguments when every
// argument is an immutable scalar.
func WithMemoizedParameters() Option {
	return func(m *Matcher) error {
		m.memoParams = true
		return nil
	}
}

// WithoutXORs makes exclusive choice behave as ordered choice.
func WithoutXORs() Option {
	return func(m *Matcher) error {
		m.noXOR = true
		return nil
	}
}

// WithFailureHandler installs h for top-level failures.
func WithFailureHandler(h FailureHandler) Option {
	return func(m *Matcher) error {
		m.onFailure = h
		return nil
	}
}

// WithState attaches per-match state that rules can read through State.
func WithState(v any) Option {
	return func(m *Matcher) error {
		m.state = v
		return nil
	}
}

// Matcher is the cursor of one in-flight match. It is not safe for
// concurrent use; create one matcher per goroutine.
type Matcher struct {
	grammar *Grammar
	input   stream.Node
	head    *stream.Cell
	err     error

	// rule is the rule currently executing, for error reports.
	rule *Rule

	reach    int
	furthest int

	noMemo     bool
	memoParams bool
	noXOR      bool
	onFailure  FailureHandler
	state      any

	tokensOn bool
	tokens   map[string]bool
	// spans holds every span recorded during the current match, in order.
	spans []stream.Span

	branchesOn bool
	branchOf   map[string]bool
	branches   map[int]map[string][]any

	reuseOn       bool
	sideEffecting map[string]bool

	// quiet suppresses token and branch recording inside negations.
	quiet int
}

// NewMatcher returns a matcher for g configured by opts.
func (g *Grammar) NewMatcher(opts ...Option) (*Matcher, error) {
	m := &Matcher{grammar: g, reach: -1, furthest: -1}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MatchAll matches the elements of input against rule with args.
func (g *Grammar) MatchAll(input any, rule string, args ...any) (any, error) {
	m, err := g.NewMatcher()
	if err != nil {
		return nil, err
	}
	return m.MatchAll(input, rule, args...)
}

// Match matches the single value v against rule with args.
func (g *Grammar) Match(v any, rule string, args ...any) (any, error) {
	return g.MatchAll([]any{v}, rule, args...)
}

// EnableTokens turns on token span recording. It may be called once.
func (m *Matcher) EnableTokens(rules ...string) error {
	if m.tokensOn {
		return fmt.Errorf("tokens can only be enabled once: %w", ErrConfig)
	}
	if len(rules) == 0 {
		rules = m.grammar.TokenRules
	}
	m.tokensOn = true
	m.tokens = make(map[string]bool, len(rules))
	for _, r := range rules {
		m.tokens[r] = true
	}
	return nil
}

// EnableBranchTracking turns on branch recording. It may be called once.
func (m *Matcher) EnableBranchTracking(rules ...string) error {
	if m.branchesOn {
		return fmt.Errorf("branch tracking can only be enabled once: %w", ErrConfig)
	}
	m.branchesOn = true
	m.branchOf = make(map[string]bool, len(rules))
	for _, r := range rules {
		m.branchOf[r] = true
	}
	m.branches = make(map[int]map[string][]any)
	return nil
}

// EnableMemoReuse turns on incremental memo reuse. It may be called once.
func (m *Matcher) EnableMemoReuse(sideEffecting ...string) error {
	if m.reuseOn {
		return fmt.Errorf("memo reuse can only be enabled once: %w", ErrConfig)
	}
	m.reuseOn = true
	m.sideEffecting = make(map[string]bool)
	for cur := m.grammar; cur != nil; cur = cur.Parent {
		for _, r := range cur.SideEffects {
			m.sideEffecting[r] = true
		}
	}
	for _, r := range sideEffecting {
		m.sideEffecting[r] = true
	}
	return nil
}

// Grammar returns the grammar the matcher dispatches rules on.
func (m *Matcher) Grammar() *Grammar { return m.grammar }

// Input returns the current stream position.
func (m *Matcher) Input() stream.Node { return m.input }

// SetInput moves the cursor to n.
func (m *Matcher) SetInput(n stream.Node) { m.input = n }

// Head returns the first node of the current top-level input.
func (m *Matcher) Head() *stream.Cell { return m.head }

// Pos returns the index of the current position.
func (m *Matcher) Pos() int { return m.input.Index() }

// State returns the value installed with WithState. Foreign matches share
// the state of the matcher they were started from.
func (m *Matcher) State() any { return m.state }

// Err returns the hard error recorded on the matcher, if any.
func (m *Matcher) Err() error { return m.err }

// Branches returns the recorded branches by input index.
func (m *Matcher) Branches() map[int]map[string][]any { return m.branches }

// Fail signals ordinary failure.
func (m *Matcher) Fail() (any, bool) { return nil, false }

// Abort records a hard error. Every combinator fails immediately once an
// error is recorded and MatchAll returns it.
func (m *Matcher) Abort(err error) (any, bool) {
	if m.err == nil {
		m.err = err
	}
	return nil, false
}

// MatchAll matches the elements of input against rule with args. Input may
// be a string, a rune slice or a slice of values. Ordinary failure is
// reported as a *MatchError, or handed to the failure handler.
func (m *Matcher) MatchAll(input any, rule string, args ...any) (any, error) {
	if err := m.setInput(input); err != nil {
		return nil, err
	}
	m.err = nil
	m.reach, m.furthest = -1, -1
	m.spans = m.spans[:0]
	if m.branchesOn {
		m.branches = make(map[int]map[string][]any)
	}

	var v any
	var ok bool
	if len(args) == 0 {
		v, ok = m.Apply(rule)
	} else {
		v, ok = m.ApplyWithArgs(rule, args...)
	}
	if m.err != nil {
		return nil, m.err
	}
	if ok {
		return v, nil
	}
	merr := m.failure(rule)
	if m.onFailure != nil {
		return m.onFailure(m, merr)
	}
	return nil, merr
}

// Match matches the single value v against rule with args.
func (m *Matcher) Match(v any, rule string, args ...any) (any, error) {
	return m.MatchAll([]any{v}, rule, args...)
}

func (m *Matcher) setInput(input any) error {
	if m.reuseOn && m.head != nil {
		if text, ok := input.(string); ok {
			if head, ok := stream.Reuse(m.head, text, m.sideEffecting); ok {
				m.head = head
				m.input = head
				return nil
			}
		}
	}
	head, ok := stream.From(input)
	if !ok {
		return fmt.Errorf("input of type %T is not a sequence: %w", input, ErrConfig)
	}
	m.head = head
	m.input = head
	return nil
}

func (m *Matcher) failure(rule string) *MatchError {
	idx := m.furthest
	if idx < 0 {
		idx = 0
	}
	merr := &MatchError{Rule: rule, Index: idx}
	if text, ok := m.head.Text(); ok {
		merr.Line, merr.Column = lineColumn(text, idx)
	}
	return merr
}

// fork returns a matcher for a foreign grammar over input, sharing the
// configuration of m.
func (m *Matcher) fork(g *Grammar, input stream.Node) *Matcher {
	sub := &Matcher{
		grammar:    g,
		input:      input,
		head:       m.head,
		reach:      m.reach,
		furthest:   m.furthest,
		noMemo:     m.noMemo,
		memoParams: m.memoParams,
		noXOR:      m.noXOR,
		state:      m.state,
		quiet:      m.quiet,
	}
	if m.tokensOn && len(g.TokenRules) > 0 {
		sub.tokensOn = true
		sub.tokens = make(map[string]bool, len(g.TokenRules))
		for _, r := range g.TokenRules {
			sub.tokens[r] = true
		}
	}
	return sub
}

// next reads one element and advances. It is the only place heads are read.
// Reads of prepended arguments do not count towards the reach.
func (m *Matcher) next() (any, bool) {
	_, virtual := m.input.(*stream.Prepended)
	idx := m.input.Index()
	if !virtual && idx > m.reach {
		m.reach = idx
	}
	hd, ok := m.input.Head()
	if !ok {
		return nil, false
	}
	tl, ok := m.input.Tail()
	if !ok {
		return nil, false
	}
	if !virtual && idx > m.furthest {
		m.furthest = idx
	}
	m.input = tl
	return hd, true
}
