// Package registry holds the named storage strategies, modality rule sets and
// SOP class sets that listeners reference by name.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"github.com/samber/lo"
)

// ErrNotFound is returned when a name has not been registered.
var ErrNotFound = errors.New("not found")

// Registry maps names onto the configuration objects listeners share.
//
// Registered values must not be modified afterwards: they are handed out by
// pointer to every listener that references them.
//
//	reg := NewRegistry()
//	reg.RegisterStrategy(&layout.Strategy{Name: "by-patient", ...})
//	strategy, err := reg.GetStrategy("by-patient")
//
// Thread safety:
// All methods are safe for concurrent use. Registration normally happens once
// at startup and lookups afterwards.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]*layout.Strategy
	ruleSets   map[string]*transcode.RuleSet
	classSets  map[string]*sopclass.Set
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]*layout.Strategy),
		ruleSets:   make(map[string]*transcode.RuleSet),
		classSets:  make(map[string]*sopclass.Set),
	}
}

// RegisterStrategy adds a named storage strategy.
//
// Parameters:
//   - s: The strategy. Its Name is the lookup key.
//
// Returns an error if s is nil, or its name is empty or already taken.
func (r *Registry) RegisterStrategy(s *layout.Strategy) error {
	if s == nil {
		return fmt.Errorf("cannot register nil storage strategy")
	}
	if s.Name == "" {
		return fmt.Errorf("cannot register storage strategy with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.Name]; exists {
		return fmt.Errorf("storage strategy %q already registered", s.Name)
	}
	r.strategies[s.Name] = s
	return nil
}

// RegisterRuleSet validates and adds a named modality rule set.
//
// Parameters:
//   - rs: The rule set. Its Name is the lookup key.
//
// Returns:
//   - nil on success
//   - the rs.Validate error when a rule is malformed (nothing is registered)
//   - error if rs is nil, or its name is empty or already taken
func (r *Registry) RegisterRuleSet(rs *transcode.RuleSet) error {
	if rs == nil {
		return fmt.Errorf("cannot register nil modality rule set")
	}
	if rs.Name == "" {
		return fmt.Errorf("cannot register modality rule set with empty name")
	}
	if err := rs.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ruleSets[rs.Name]; exists {
		return fmt.Errorf("modality rule set %q already registered", rs.Name)
	}
	r.ruleSets[rs.Name] = rs
	return nil
}

// RegisterClassSet adds a named SOP class set.
func (r *Registry) RegisterClassSet(cs *sopclass.Set) error {
	if cs == nil {
		return fmt.Errorf("cannot register nil SOP class set")
	}
	if cs.Name == "" {
		return fmt.Errorf("cannot register SOP class set with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classSets[cs.Name]; exists {
		return fmt.Errorf("SOP class set %q already registered", cs.Name)
	}
	r.classSets[cs.Name] = cs
	return nil
}

// GetStrategy returns the strategy registered under name.
//
// Returns an error wrapping ErrNotFound for an unknown name.
func (r *Registry) GetStrategy(name string) (*layout.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("storage strategy %q: %w", name, ErrNotFound)
	}
	return s, nil
}

// GetRuleSet returns the modality rule set registered under name.
func (r *Registry) GetRuleSet(name string) (*transcode.RuleSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs, ok := r.ruleSets[name]
	if !ok {
		return nil, fmt.Errorf("modality rule set %q: %w", name, ErrNotFound)
	}
	return rs, nil
}

// GetClassSet returns the SOP class set registered under name.
func (r *Registry) GetClassSet(name string) (*sopclass.Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs, ok := r.classSets[name]
	if !ok {
		return nil, fmt.Errorf("SOP class set %q: %w", name, ErrNotFound)
	}
	return cs, nil
}

// StrategyNames returns the registered strategy names in sorted order.
func (r *Registry) StrategyNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.strategies)
}

// RuleSetNames returns the registered rule set names in sorted order.
func (r *Registry) RuleSetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ruleSets)
}

// ClassSetNames returns the registered class set names in sorted order.
func (r *Registry) ClassSetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.classSets)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
