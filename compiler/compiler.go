// Package compiler turns grammar sources into executable grammars: it parses
// them, optimizes every rule and generates matchers, registering each
// grammar in an environment so later grammars can extend or call it.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/ometa/grammar/ast"
	"github.com/dhamidi/ometa/grammar/codegen"
	"github.com/dhamidi/ometa/grammar/optimize"
	"github.com/dhamidi/ometa/grammar/syntax"
	"github.com/dhamidi/ometa/hostexpr"
	"github.com/dhamidi/ometa/ometa"
)

var log = commonlog.GetLogger("ometa.compiler")

// DefaultCacheSize is the number of compiled sources kept by default.
const DefaultCacheSize = 64

// Compiler compiles grammar sources against an environment.
type Compiler struct {
	env       *Env
	host      codegen.Host
	optimize  bool
	cacheSize int
	cache     *lru.Cache[uint64, compiled]
}

// compiled is a cache entry: the grammars of one source and every grammar
// resolved in the environment while generating them.
type compiled struct {
	grammars []*ometa.Grammar
	resolved map[string]*ometa.Grammar
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithEnv sets the environment grammars are resolved in and registered to.
func WithEnv(env *Env) Option {
	return func(c *Compiler) { c.env = env }
}

// WithoutOptimization generates grammars from the parsed trees as they are.
func WithoutOptimization() Option {
	return func(c *Compiler) { c.optimize = false }
}

// WithHost sets the compiler of action and predicate payloads. The default
// is the hostexpr language.
func WithHost(h codegen.Host) Option {
	return func(c *Compiler) { c.host = h }
}

// WithCacheSize sets how many compiled sources are cached. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(c *Compiler) { c.cacheSize = n }
}

// New returns a compiler configured by opts.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		host:      hostexpr.Language{},
		optimize:  true,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = NewEnv()
	}
	if c.cacheSize > 0 {
		cache, err := lru.New[uint64, compiled](c.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create grammar cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Env returns the environment of c.
func (c *Compiler) Env() *Env { return c.env }

// Translate parses src and, unless optimization is disabled, optimizes
// every grammar in it.
func (c *Compiler) Translate(src string) ([]*ast.Grammar, error) {
	gs, err := syntax.ParseAll(src)
	if err != nil {
		return nil, err
	}
	if !c.optimize {
		return gs, nil
	}
	for i, g := range gs {
		gs[i] = c.optimizeGrammar(g)
	}
	return gs, nil
}

// Compile compiles every grammar in src in order and registers it in the
// environment. Each grammar can refer to the ones before it. When one fails
// the environment is left as it was before the call.
func (c *Compiler) Compile(src string) ([]*ometa.Grammar, error) {
	key := c.key(src)
	if c.cache != nil {
		if entry, ok := c.cache.Get(key); ok && c.current(entry) {
			log.Debugf("cache hit for %d grammars", len(entry.grammars))
			for _, g := range entry.grammars {
				c.env.Define(g)
			}
			return entry.grammars, nil
		}
	}
	trees, err := syntax.ParseAll(src)
	if err != nil {
		return nil, err
	}
	entry := compiled{
		grammars: make([]*ometa.Grammar, 0, len(trees)),
		resolved: make(map[string]*ometa.Grammar),
	}
	// replaced holds the grammars the source redefines, nil when absent.
	replaced := make(map[string]*ometa.Grammar, len(trees))
	for _, tree := range trees {
		if _, seen := replaced[tree.Name]; !seen {
			replaced[tree.Name], _ = c.env.Lookup(tree.Name)
		}
		g, err := c.compileGrammar(tree, entry.resolved)
		if err != nil {
			c.env.restore(replaced)
			return nil, err
		}
		entry.grammars = append(entry.grammars, g)
	}
	if c.cache != nil {
		c.cache.Add(key, entry)
	}
	return entry.grammars, nil
}

// MustCompile is Compile for sources known to be valid: it panics on error.
func (c *Compiler) MustCompile(src string) []*ometa.Grammar {
	gs, err := c.Compile(src)
	if err != nil {
		panic(err)
	}
	return gs
}

// CompileGrammar generates the grammar for g and registers it.
func (c *Compiler) CompileGrammar(g *ast.Grammar) (*ometa.Grammar, error) {
	return c.compileGrammar(g, nil)
}

// compileGrammar is CompileGrammar recording every grammar looked up in the
// environment into resolved, unless it is nil.
func (c *Compiler) compileGrammar(g *ast.Grammar, resolved map[string]*ometa.Grammar) (*ometa.Grammar, error) {
	if c.optimize {
		g = c.optimizeGrammar(g)
	}
	lookup := func(name string) (*ometa.Grammar, bool) {
		found, ok := c.env.Lookup(name)
		if ok && resolved != nil {
			resolved[name] = found
		}
		return found, ok
	}
	out, err := codegen.Generate(g, codegen.WithHost(c.host), codegen.WithGrammars(lookup))
	if err != nil {
		return nil, err
	}
	out.TokenRules = tokenRules(out)
	c.env.Define(out)
	log.Infof("compiled grammar %s with %d rules", out.Name, len(g.Rules))
	return out, nil
}

func (c *Compiler) optimizeGrammar(g *ast.Grammar) *ast.Grammar {
	opts := []optimize.Option{optimize.WithTrace(func(rule, pass string) {
		log.Debugf("%s.%s: %s helped", g.Name, rule, pass)
	})}
	if c.overridesExactly(g) {
		log.Debugf("%s overrides exactly, jump tables disabled", g.Name)
		opts = append(opts, optimize.WithoutJumpTables())
	}
	return optimize.Grammar(g, opts...)
}

// overridesExactly reports whether g or one of its ancestors redefines the
// exactly rule of the base grammar.
func (c *Compiler) overridesExactly(g *ast.Grammar) bool {
	if _, ok := g.Rule("exactly"); ok {
		return true
	}
	if g.Parent == "" || g.Parent == g.Name {
		return false
	}
	parent, ok := c.env.Lookup(g.Parent)
	if !ok {
		return false
	}
	r, ok := parent.Lookup("exactly")
	return ok && r.Grammar != ometa.Base
}

// current reports whether the parent and foreign grammars the cached
// grammars were built against are still the ones in the environment.
func (c *Compiler) current(entry compiled) bool {
	own := make(map[*ometa.Grammar]bool, len(entry.grammars))
	for _, g := range entry.grammars {
		own[g] = true
	}
	for name, g := range entry.resolved {
		if own[g] {
			continue
		}
		if found, ok := c.env.Lookup(name); !ok || found != g {
			return false
		}
	}
	return true
}

func (c *Compiler) key(src string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatBool(c.optimize))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(src)
	return d.Sum64()
}

// tokenRules returns the rules of g recorded as tokens: the declared ones,
// or every rule g defines itself.
func tokenRules(g *ometa.Grammar) []string {
	if len(g.TokenRules) > 0 {
		return g.TokenRules
	}
	return g.RuleNames()
}
