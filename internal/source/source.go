// Package source defines the discovery source abstraction and its adapters.
// Each adapter wraps an external directory API and converts its results into
// raw candidates. A failing source never fails the job; the controller
// records the failure and continues with the remaining sources.
package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/sells-group/prospector/internal/model"
)

// Source discovers raw business candidates for a niche and location.
type Source interface {
	Name() string
	Discover(ctx context.Context, niche, location string, limit int) ([]model.Candidate, error)
}

// Error wraps a failure from a single source so callers can attribute it.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry holds the configured sources by name.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source, replacing any existing source of the same name.
func (r *Registry) Register(s Source) {
	r.sources[s.Name()] = s
}

// Get returns the named source, or nil if not registered.
func (r *Registry) Get(name string) Source {
	return r.sources[name]
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps the requested source names to registered sources. Unknown
// names are reported as per-source errors rather than failing the lookup.
// An empty request resolves to all registered sources.
func (r *Registry) Resolve(requested []string) ([]Source, []*Error) {
	if len(requested) == 0 {
		requested = r.Names()
	}

	var (
		sources []Source
		errs    []*Error
	)
	for _, name := range requested {
		s := r.Get(name)
		if s == nil {
			errs = append(errs, &Error{Source: name, Err: fmt.Errorf("unknown source")})
			continue
		}
		sources = append(sources, s)
	}
	return sources, errs
}
