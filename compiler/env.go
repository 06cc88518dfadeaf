package compiler

import (
	"slices"
	"sync"

	"github.com/dhamidi/ometa/ometa"
)

// Env maps grammar names to compiled grammars. Parent and foreign grammar
// references are resolved against it. The base grammar is always present as
// "OMeta".
type Env struct {
	mu       sync.RWMutex
	grammars map[string]*ometa.Grammar
}

// NewEnv returns an environment holding the base grammar and gs.
func NewEnv(gs ...*ometa.Grammar) *Env {
	e := &Env{grammars: map[string]*ometa.Grammar{ometa.Base.Name: ometa.Base}}
	for _, g := range gs {
		e.Define(g)
	}
	return e
}

// Define registers g under its name, replacing any previous grammar.
func (e *Env) Define(g *ometa.Grammar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grammars[g.Name] = g
}

// Lookup returns the grammar called name.
func (e *Env) Lookup(name string) (*ometa.Grammar, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.grammars[name]
	return g, ok
}

// Names returns the sorted names of all grammars.
func (e *Env) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.grammars))
	for n := range e.grammars {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// restore puts back the grammars in prev, removing the names mapped to nil.
func (e *Env) restore(prev map[string]*ometa.Grammar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, g := range prev {
		if g == nil {
			delete(e.grammars, name)
			continue
		}
		e.grammars[name] = g
	}
}
