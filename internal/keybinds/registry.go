package keybinds

import (
	"sort"
	"strings"
)

// Binding is one key → action mapping
type Binding struct {
	Key     string
	Action  Action
	Context Context
}

// Registry holds bindings per context. It is read-only after setup.
type Registry struct {
	bindings map[Context]map[string]Action
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[Context]map[string]Action)}
}

// Register binds key to action in context
func (r *Registry) Register(context Context, key string, action Action) {
	if r.bindings[context] == nil {
		r.bindings[context] = make(map[string]Action)
	}
	r.bindings[context][key] = action
}

// RegisterMultiple binds several keys to the same action
func (r *Registry) RegisterMultiple(context Context, keys []string, action Action) {
	for _, key := range keys {
		r.Register(context, key, action)
	}
}

// Unbind removes every key bound to action in context
func (r *Registry) Unbind(context Context, action Action) {
	for key, a := range r.bindings[context] {
		if a == action {
			delete(r.bindings[context], key)
		}
	}
}

// Match looks key up in context, then in global
func (r *Registry) Match(context Context, key string) (Action, bool) {
	if action, ok := r.bindings[context][key]; ok {
		return action, true
	}
	if context != ContextGlobal {
		if action, ok := r.bindings[ContextGlobal][key]; ok {
			return action, true
		}
	}
	return "", false
}

// Keys returns the sorted keys bound to action, falling back to global
func (r *Registry) Keys(context Context, action Action) []string {
	keys := r.keysIn(context, action)
	if len(keys) == 0 && context != ContextGlobal {
		keys = r.keysIn(ContextGlobal, action)
	}
	return keys
}

func (r *Registry) keysIn(context Context, action Action) []string {
	var keys []string
	for key, a := range r.bindings[context] {
		if a == action {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// KeyString is Keys joined for help text, or "unbound"
func (r *Registry) KeyString(context Context, action Action) string {
	keys := r.Keys(context, action)
	if len(keys) == 0 {
		return "unbound"
	}
	return strings.Join(keys, "/")
}

// List returns the bindings of one context sorted by key
func (r *Registry) List(context Context) []Binding {
	var out []Binding
	for key, action := range r.bindings[context] {
		out = append(out, Binding{Key: key, Action: action, Context: context})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Clone returns a deep copy
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for context, bindings := range r.bindings {
		for key, action := range bindings {
			c.Register(context, key, action)
		}
	}
	return c
}
