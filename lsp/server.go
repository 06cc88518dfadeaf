// Package lsp serves highlighting of a grammar's language over the language
// server protocol: semantic tokens for open documents and a diagnostic for
// the position at which matching failed.
package lsp

import (
	"slices"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/ometa/grammar/syntax"
	"github.com/dhamidi/ometa/highlight"
	"github.com/dhamidi/ometa/ometa"
)

const lsName = "ometa"

var log = commonlog.GetLogger("ometa.lsp")

type Option func(*Server)

// WithGrammar highlights documents by matching them against rule of g. The
// default is the meta grammar, so grammar sources are highlighted.
func WithGrammar(g *ometa.Grammar, rule string) Option {
	return func(s *Server) {
		s.grammar, s.rule = g, rule
	}
}

// WithTokenRules selects the rules whose spans become semantic tokens.
func WithTokenRules(rules ...string) Option {
	return func(s *Server) { s.tokenRules = rules }
}

// WithSideEffects names rules whose memo entries are never reused between
// edits.
func WithSideEffects(rules ...string) Option {
	return func(s *Server) { s.sideEffects = rules }
}

// WithStyles maps token rules to semantic token types. Rules without a style
// are reported as their own name when that is a known type, or as variables.
func WithStyles(styles map[string]string) Option {
	return func(s *Server) { s.styles = styles }
}

type Server struct {
	handler protocol.Handler
	server  *server.Server
	version string

	grammar     *ometa.Grammar
	rule        string
	tokenRules  []string
	sideEffects []string
	styles      map[string]string

	mu   sync.Mutex
	docs map[string]*document
}

func NewServer(version string, opts ...Option) *Server {
	ls := &Server{
		version: version,
		grammar: syntax.Grammar,
		rule:    "topLevel",
		styles:  DefaultStyles,
		docs:    make(map[string]*document),
	}
	for _, opt := range opts {
		opt(ls)
	}

	ls.handler = protocol.Handler{
		Initialize:                     ls.initialize,
		Initialized:                    ls.initialized,
		Shutdown:                       ls.shutdown,
		SetTrace:                       ls.setTrace,
		TextDocumentDidOpen:            ls.textDocumentDidOpen,
		TextDocumentDidChange:          ls.textDocumentDidChange,
		TextDocumentDidClose:           ls.textDocumentDidClose,
		TextDocumentDidSave:            ls.textDocumentDidSave,
		TextDocumentSemanticTokensFull: ls.textDocumentSemanticTokensFull,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}
	capabilities.SemanticTokensProvider = &protocol.SemanticTokensOptions{
		Legend: protocol.SemanticTokensLegend{
			TokenTypes:     TokenTypes,
			TokenModifiers: []string{},
		},
		Full: true,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Infof("serving grammar %s, rule %s", ls.grammar.Name, ls.rule)
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Infof("open %s", params.TextDocument.URI)
	d, err := ls.open(params.TextDocument.URI, params.TextDocument.Version, params.TextDocument.Text)
	if err != nil {
		return err
	}
	ls.publish(ctx, d)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	d, err := ls.change(params.TextDocument.URI, params.TextDocument.Version, textChange.Text)
	if err != nil {
		return err
	}
	ls.publish(ctx, d)
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Infof("close %s", params.TextDocument.URI)
	ls.mu.Lock()
	delete(ls.docs, params.TextDocument.URI)
	ls.mu.Unlock()
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text == nil {
		return nil
	}
	d, err := ls.change(params.TextDocument.URI, 0, *params.Text)
	if err != nil {
		return err
	}
	ls.publish(ctx, d)
	return nil
}

func (ls *Server) textDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	data, ok := ls.SemanticTokens(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

func (ls *Server) open(uri string, version protocol.Integer, text string) (*document, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.openLocked(uri, version, text)
}

func (ls *Server) openLocked(uri string, version protocol.Integer, text string) (*document, error) {
	h, err := highlight.New(ls.grammar, ls.rule,
		highlight.WithTokenRules(ls.tokenRules...),
		highlight.WithSideEffects(ls.sideEffects...),
	)
	if err != nil {
		return nil, err
	}
	d := &document{uri: uri, version: version, h: h}
	d.update(text)
	ls.docs[uri] = d
	return d, nil
}

func (ls *Server) change(uri string, version protocol.Integer, text string) (*document, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	d, ok := ls.docs[uri]
	if !ok {
		return ls.openLocked(uri, version, text)
	}
	if version != 0 {
		d.version = version
	}
	d.update(text)
	return d, nil
}

// SemanticTokens returns the encoded semantic tokens of the open document
// uri.
func (ls *Server) SemanticTokens(uri string) ([]protocol.UInteger, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	d, ok := ls.docs[uri]
	if !ok || d.result == nil {
		return nil, false
	}
	segs := highlight.Segments(d.text, d.result.Ranges)
	return encodeTokens(d.lines, segs, ls.tokenType), true
}

// Diagnostics returns the diagnostics of the open document uri.
func (ls *Server) Diagnostics(uri string) ([]protocol.Diagnostic, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	d, ok := ls.docs[uri]
	if !ok {
		return nil, false
	}
	return diagnostics(d.lines, d.result, d.err), true
}

func (ls *Server) publish(ctx *glsp.Context, d *document) {
	ls.mu.Lock()
	diags := diagnostics(d.lines, d.result, d.err)
	ls.mu.Unlock()
	if len(diags) > 0 {
		log.Debugf("%s: %s", d.uri, diags[0].Message)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         d.uri,
		Diagnostics: diags,
	})
}

func (ls *Server) tokenType(rule string) (int, bool) {
	name, ok := ls.styles[rule]
	if !ok {
		name = rule
	}
	if i := slices.Index(TokenTypes, name); i >= 0 {
		return i, true
	}
	return slices.Index(TokenTypes, fallbackType), true
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
