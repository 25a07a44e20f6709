package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/danphilibin/relay/pkg/api"
)

type (
	// Handler is the body of a workflow
	Handler func(ctx context.Context, run *Run) error

	// Definition describes a registered workflow
	Definition struct {
		Slug        api.Slug
		Title       string
		Description string
		Input       api.InputSchema
		Handler     Handler
	}

	// Registry holds workflow definitions keyed by slug
	Registry struct {
		mu   sync.RWMutex
		defs map[api.Slug]*Definition
	}
)

var (
	ErrWorkflowExists   = errors.New("workflow already registered")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrTitleRequired    = errors.New("workflow title required")
	ErrHandlerRequired  = errors.New("workflow handler required")
)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		defs: map[api.Slug]*Definition{},
	}
}

// Register adds a definition. A missing slug is derived from the title
func (r *Registry) Register(def *Definition) error {
	if err := def.normalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Slug]; ok {
		return fmt.Errorf("%w: %s", ErrWorkflowExists, def.Slug)
	}
	r.defs[def.Slug] = def
	return nil
}

// Get looks a workflow up by slug, or by a title that slugifies to one
func (r *Registry) Get(slugOrTitle string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if def, ok := r.defs[api.Slug(slugOrTitle)]; ok {
		return def, true
	}
	def, ok := r.defs[api.Slugify(slugOrTitle)]
	return def, ok
}

// List returns every definition sorted by slug
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		res = append(res, def)
	}
	slices.SortFunc(res, func(a, b *Definition) int {
		return strings.Compare(string(a.Slug), string(b.Slug))
	})
	return res
}

// Info returns the public description of the workflow
func (d *Definition) Info() *api.WorkflowInfo {
	return &api.WorkflowInfo{
		Slug:        d.Slug,
		Title:       d.Title,
		Description: d.Description,
		Input:       d.Input,
	}
}

func (d *Definition) normalize() error {
	if d.Title == "" {
		return ErrTitleRequired
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s", ErrHandlerRequired, d.Title)
	}
	if d.Slug == "" {
		d.Slug = api.Slugify(d.Title)
	}
	if d.Input != nil {
		if err := d.Input.Validate(); err != nil {
			return fmt.Errorf("workflow %s input: %w", d.Slug, err)
		}
	}
	return nil
}
