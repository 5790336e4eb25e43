package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/sipscan/internal/core"
)

// ParserFactory creates a fresh parser instance.
type ParserFactory func() Parser

type registry[F any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]F
}

func newRegistry[F any](kind string) *registry[F] {
	return &registry[F]{kind: kind, factories: make(map[string]F)}
}

// register panics on programming errors: empty name, nil factory or duplicates.
func (r *registry[F]) register(name string, factory F, isNil bool) {
	if name == "" {
		panic(fmt.Sprintf("plugin: empty %s name", r.kind))
	}
	if isNil {
		panic(fmt.Sprintf("plugin: nil factory for %s %q", r.kind, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("plugin: %s %q already registered", r.kind, name))
	}
	r.factories[name] = factory
}

func (r *registry[F]) get(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %q", core.ErrPluginNotFound, r.kind, name)
	}
	return f, nil
}

func (r *registry[F]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops all registrations. Used by tests.
func (r *registry[F]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]F)
}

var parserReg = newRegistry[ParserFactory]("parser")

// RegisterParser registers a parser factory under name.
func RegisterParser(name string, factory ParserFactory) {
	parserReg.register(name, factory, factory == nil)
}

// GetParserFactory returns the factory registered under name.
func GetParserFactory(name string) (ParserFactory, error) {
	return parserReg.get(name)
}

// NewParser creates and initialises the parser registered under name.
func NewParser(name string, cfg map[string]any) (Parser, error) {
	factory, err := GetParserFactory(name)
	if err != nil {
		return nil, err
	}
	p := factory()
	if err := p.Init(cfg); err != nil {
		return nil, fmt.Errorf("init parser %q: %w", name, err)
	}
	return p, nil
}

// ListParsers returns registered parser names in sorted order.
func ListParsers() []string {
	return parserReg.list()
}
