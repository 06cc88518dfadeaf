// Package highlight maps token spans recorded while matching a text to
// styled ranges, reparsing edited text with memo reuse so only the edited
// region is matched again.
package highlight

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/ometa/ometa"
	"github.com/dhamidi/ometa/stream"
)

var log = commonlog.GetLogger("ometa.highlight")

// Range is a token span in rune offsets of the highlighted text. End is
// exclusive.
type Range struct {
	Start int
	End   int
	Rule  string
	Args  []any
}

// Result is the outcome of one update.
type Result struct {
	Value any
	// Failure is set when the text did not match. The ranges recorded up to
	// the failure are still reported.
	Failure *ometa.MatchError
	Ranges  []Range
	// Reparsed is false when the text and visible region were unchanged and
	// the previous result was returned.
	Reparsed bool
}

type Option func(*Highlighter)

// WithTokenRules records spans for the named rules instead of the grammar's
// token rules.
func WithTokenRules(rules ...string) Option {
	return func(h *Highlighter) { h.tokenRules = rules }
}

// WithSideEffects adds rules whose memo entries are never reused.
func WithSideEffects(rules ...string) Option {
	return func(h *Highlighter) { h.sideEffects = append(h.sideEffects, rules...) }
}

// WithoutMemoReuse matches every update from scratch.
func WithoutMemoReuse() Option {
	return func(h *Highlighter) { h.noReuse = true }
}

// WithPrefix matches prefix in front of every text. Ranges inside the
// prefix are dropped and the others are shifted to offsets of the text.
func WithPrefix(prefix string) Option {
	return func(h *Highlighter) { h.prefix = prefix }
}

// Highlighter holds one matcher over successive versions of a text. It is
// safe for concurrent use; updates are serialized.
type Highlighter struct {
	mu sync.Mutex

	grammar     *ometa.Grammar
	rule        string
	tokenRules  []string
	sideEffects []string
	noReuse     bool
	prefix      string

	m        *ometa.Matcher
	failure  *ometa.MatchError
	text     string
	lastLine int
	last     *Result
}

// New returns a highlighter matching rule of g.
func New(g *ometa.Grammar, rule string, opts ...Option) (*Highlighter, error) {
	h := &Highlighter{grammar: g, rule: rule}
	for _, opt := range opts {
		opt(h)
	}
	m, err := h.newMatcher()
	if err != nil {
		return nil, err
	}
	h.m = m
	return h, nil
}

func (h *Highlighter) newMatcher() (*ometa.Matcher, error) {
	opts := []ometa.Option{
		ometa.WithTokens(h.tokenRules...),
		ometa.WithFailureHandler(func(_ *ometa.Matcher, err *ometa.MatchError) (any, error) {
			h.failure = err
			return nil, nil
		}),
	}
	if !h.noReuse {
		opts = append(opts, ometa.WithMemoReuse(h.sideEffects...))
	}
	return h.grammar.NewMatcher(opts...)
}

// Update matches the whole of text.
func (h *Highlighter) Update(text string) (*Result, error) {
	return h.UpdateVisible(text, -1)
}

// UpdateVisible matches text up to the end of the 0-based line lastLine, or
// all of it when lastLine is negative. Nothing is matched again when the text
// is unchanged and no further line became visible.
func (h *Highlighter) UpdateVisible(text string, lastLine int) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last != nil && text == h.text && covers(h.lastLine, lastLine) {
		cached := *h.last
		cached.Reparsed = false
		return &cached, nil
	}

	visible := text
	if lastLine >= 0 {
		visible = uptoLine(text, lastLine)
	}

	start := time.Now()
	h.failure = nil
	v, err := h.m.MatchAll(h.prefix+visible, h.rule)
	res := &Result{
		Value:    v,
		Failure:  h.failure,
		Ranges:   h.ranges(),
		Reparsed: true,
	}
	log.Debugf("matched %d runes in %s, %d ranges", utf8.RuneCountInString(visible), time.Since(start), len(res.Ranges))
	if err != nil {
		// A hard error leaves memo entries of an aborted match behind.
		h.last = nil
		if m, merr := h.newMatcher(); merr == nil {
			h.m = m
		} else {
			err = errors.Join(err, merr)
		}
		return res, err
	}

	h.text, h.lastLine, h.last = text, lastLine, res
	return res, nil
}

// covers reports whether a parse up to line prev includes line next.
func covers(prev, next int) bool {
	if prev < 0 {
		return true
	}
	return next >= 0 && next <= prev
}

// uptoLine returns text up to and including the newline that ends line.
func uptoLine(text string, line int) string {
	end := 0
	for i := 0; i <= line; i++ {
		j := strings.IndexByte(text[end:], '\n')
		if j < 0 {
			return text
		}
		end += j + 1
	}
	return text[:end]
}

// ranges collects the spans recorded on the stream, ordered by start and then
// by end.
func (h *Highlighter) ranges() []Range {
	shift := utf8.RuneCountInString(h.prefix)
	var out []Range
	stream.Walk(h.m.Head(), func(c *stream.Cell) bool {
		for _, t := range c.Tokens() {
			start, end := c.Index()-shift, t.End-shift
			if end <= 0 {
				continue
			}
			out = append(out, Range{Start: max(start, 0), End: end, Rule: t.Rule, Args: t.Args})
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

// Segments splits possibly nested ranges into disjoint ones. At every
// position the range ending first wins, and of those the one starting last.
// Whitespace is left unstyled.
func Segments(text string, ranges []Range) []Range {
	runes := []rune(text)
	var out []Range
	for pos := 0; pos < len(runes); pos++ {
		if unicode.IsSpace(runes[pos]) {
			continue
		}
		best := -1
		for i, r := range ranges {
			if r.Start > pos || r.End <= pos {
				continue
			}
			if best < 0 || r.End < ranges[best].End || (r.End == ranges[best].End && r.Start > ranges[best].Start) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		r := ranges[best]
		if n := len(out); n > 0 && out[n-1].End == pos && out[n-1].Rule == r.Rule && out[n-1].Start >= r.Start {
			out[n-1].End = pos + 1
			continue
		}
		out = append(out, Range{Start: pos, End: pos + 1, Rule: r.Rule, Args: r.Args})
	}
	return out
}
