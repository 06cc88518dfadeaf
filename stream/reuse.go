package stream

import (
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DivergencePoint returns the index from which memo entries computed over
// oldText can no longer be trusted for newText: one before the first
// differing rune, moved back over any whitespace preceding it. It returns
// len(newText)+1 in runes when the texts are equal.
func DivergencePoint(oldText, newText string) int {
	runes := []rune(newText)
	if oldText == newText {
		return len(runes) + 1
	}
	d := diffmatchpatch.New().DiffCommonPrefix(oldText, newText) - 1
	for d >= 0 && d < len(runes) && unicode.IsSpace(runes[d]) {
		d--
	}
	return d
}

// Reuse re-points the text stream starting at head to text, keeping the memo
// entries that were computed entirely before the divergence point. Entries
// are purged when they are failure markers, belong to a side-effecting rule,
// end at or after the divergence point or examined input at or after it.
// Token spans are dropped: kept entries replay theirs when they are hit, and
// a span recorded outside of one may come from an application the new text
// never makes.
//
// Reuse reports false when nothing can be kept; the caller must then build
// a fresh stream. It must not run while a match over head is in progress.
func Reuse(head *Cell, text string, sideEffecting map[string]bool) (*Cell, bool) {
	if head == nil || head.idx != 0 || head.src.kind != KindText {
		return nil, false
	}
	d := DivergencePoint(head.src.text, text)
	if d <= 0 {
		return nil, false
	}
	kept := 0
	for c := head; c != nil && c.idx < d; c = c.tail {
		for k, e := range c.memo {
			if e.Pending || sideEffecting[k.Rule] || e.Next.Index() >= d || e.Reach >= d {
				delete(c.memo, k)
				continue
			}
			kept++
		}
		c.tokens = nil
		c.prepended = nil
		if c.idx == d-1 {
			c.tail = nil
		}
	}
	if kept == 0 {
		return nil, false
	}
	head.src.text = text
	head.src.runes = []rune(text)
	return head, true
}
