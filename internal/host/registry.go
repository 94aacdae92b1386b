package host

import (
	"fmt"

	"github.com/you-not-fish/kale/internal/jit"
	"github.com/you-not-fish/kale/internal/syntax"
)

// Routine is a host function callable from kale source.
type Routine struct {
	Name   string
	Params []syntax.ParamType
	Fn     jit.ExternFunc
}

// Registry holds the routines a program may call. It implements
// jit.Resolver.
type Registry struct {
	byName map[string]Routine
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Routine)}
}

// Register adds rt. Names must be unique.
func (r *Registry) Register(rt Routine) error {
	if rt.Fn == nil {
		return fmt.Errorf("host: routine %s has no implementation", rt.Name)
	}
	if _, dup := r.byName[rt.Name]; dup {
		return fmt.Errorf("host: routine %s registered twice", rt.Name)
	}
	r.byName[rt.Name] = rt
	r.order = append(r.order, rt.Name)
	return nil
}

// Names returns the routine names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Prototypes returns the declarations of every routine, in registration
// order, for a driver to declare before parsing.
func (r *Registry) Prototypes() []*syntax.Prototype {
	protos := make([]*syntax.Prototype, len(r.order))
	for i, name := range r.order {
		rt := r.byName[name]
		params := make([]syntax.Param, len(rt.Params))
		for j, t := range rt.Params {
			params[j] = syntax.Param{Name: fmt.Sprintf("a%d", j), Type: t}
		}
		protos[i] = syntax.NewPrototype(name, params...)
	}
	return protos
}

// Resolve implements jit.Resolver.
func (r *Registry) Resolve(name string) (jit.ExternFunc, bool) {
	rt, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return rt.Fn, true
}
