// Package grammar resolves language flags to highlighting grammars.
//
// A flag is whatever the driving process puts on a declaration line: a
// language name ("python"), an alias ("py"), a file extension ("rs") or a
// file name ("Makefile"). Resolution goes through configured aliases first and
// then through chroma's lexer registry.
package grammar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/zjrosen/hlpipe/internal/log"
)

// ErrUnknownLanguage is returned when no grammar matches a flag.
var ErrUnknownLanguage = errors.New("unknown language")

// ResolveError reports the flag that failed to resolve.
type ResolveError struct {
	Language string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownLanguage, e.Language)
}

func (e *ResolveError) Unwrap() error {
	return ErrUnknownLanguage
}

// Scope is a resolved grammar. Name is the canonical grammar name and is
// stable across aliases, so "py" and "python" resolve to equal scopes.
type Scope struct {
	Name  string
	Lexer chroma.Lexer
}

// Language describes one registered grammar for listings.
type Language struct {
	Name      string   `json:"name" yaml:"name"`
	Aliases   []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Filenames []string `json:"filenames,omitempty" yaml:"filenames,omitempty"`
	MimeTypes []string `json:"mime_types,omitempty" yaml:"mime_types,omitempty"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithLexers replaces the global chroma registry, mainly for tests.
func WithLexers(r *chroma.LexerRegistry) Option {
	return func(reg *Registry) {
		reg.lexers = r
	}
}

// Registry maps flags to scopes. Safe for concurrent use; aliases may be
// swapped while requests are being resolved.
type Registry struct {
	lexers *chroma.LexerRegistry

	mu      sync.RWMutex
	aliases map[string]string
	scopes  map[string]Scope
	// generation counts alias swaps; a scope is memoized only if no swap
	// happened while it was being looked up.
	generation uint64

	// afterLookup runs between the lexer lookup and memoization. Tests only.
	afterLookup func()
}

// NewRegistry creates a registry over chroma's full grammar set.
func NewRegistry(aliases map[string]string, opts ...Option) *Registry {
	r := &Registry{
		lexers: lexers.GlobalLexerRegistry,
		scopes: make(map[string]Scope),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.aliases = copyAliases(aliases)
	return r
}

// Resolve maps a flag to exactly one scope, or returns a *ResolveError.
func (r *Registry) Resolve(flag string) (Scope, error) {
	r.mu.RLock()
	scope, ok := r.scopes[flag]
	target := r.target(flag)
	gen := r.generation
	r.mu.RUnlock()
	if ok {
		return scope, nil
	}

	lexer := r.lexers.Get(target)
	if lexer == nil {
		log.Warn(log.CatGrammar, "No grammar for flag", "flag", flag, "target", target)
		return Scope{}, &ResolveError{Language: flag}
	}

	scope = Scope{
		Name:  lexer.Config().Name,
		Lexer: chroma.Coalesce(lexer),
	}
	if r.afterLookup != nil {
		r.afterLookup()
	}

	r.mu.Lock()
	if r.generation == gen {
		r.scopes[flag] = scope
	}
	r.mu.Unlock()

	log.Debug(log.CatGrammar, "Resolved flag", "flag", flag, "target", target, "scope", scope.Name)
	return scope, nil
}

// target applies the alias table. Callers hold r.mu.
func (r *Registry) target(flag string) string {
	if to, ok := r.aliases[flag]; ok {
		return to
	}
	if to, ok := r.aliases[strings.ToLower(flag)]; ok {
		return to
	}
	return flag
}

// SetAliases replaces the alias table and forgets memoized scopes.
func (r *Registry) SetAliases(aliases map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases = copyAliases(aliases)
	r.scopes = make(map[string]Scope)
	r.generation++
	log.Info(log.CatGrammar, "Aliases replaced", "count", len(aliases))
}

// Aliases returns a copy of the current alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyAliases(r.aliases)
}

// Languages lists every registered grammar sorted by name.
func (r *Registry) Languages() []Language {
	out := make([]Language, 0, len(r.lexers.Lexers))
	for _, lexer := range r.lexers.Lexers {
		cfg := lexer.Config()
		out = append(out, Language{
			Name:      cfg.Name,
			Aliases:   append([]string(nil), cfg.Aliases...),
			Filenames: append([]string(nil), cfg.Filenames...),
			MimeTypes: append([]string(nil), cfg.MimeTypes...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func copyAliases(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
