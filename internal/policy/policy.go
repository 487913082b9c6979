// Package policy models privacy policies: ordered rules mapping hierarchical
// data categories to an action, and masking strategies applied on erasure.
// Policies are read-only input to the query compilers and the executor.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/privgraph/internal/graph"
)

// Action is what a matched rule does to the data it targets.
type Action string

const (
	ActionAccess  Action = "access"
	ActionErasure Action = "erasure"
)

// Rule maps a set of data categories to an action. Erasure rules carry the
// masking strategy applied to matched fields.
type Rule struct {
	Name       string
	Action     Action
	Categories []string
	Masking    MaskingStrategy
}

// Policy is an ordered list of rules. Later rules win when two erasure rules
// match the same field.
type Policy struct {
	Name  string
	Rules []Rule
}

// ValidationError reports a malformed policy or rule declaration.
type ValidationError struct {
	Policy string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid policy %q: %s", e.Policy, e.Reason)
}

// Validate checks structural invariants before a policy is accepted.
func (p Policy) Validate() error {
	for _, r := range p.Rules {
		switch r.Action {
		case ActionAccess, ActionErasure:
		default:
			return &ValidationError{Policy: p.Name, Reason: fmt.Sprintf("rule %q has unknown action %q", r.Name, r.Action)}
		}
		if len(r.Categories) == 0 {
			return &ValidationError{Policy: p.Name, Reason: fmt.Sprintf("rule %q targets no data categories", r.Name)}
		}
		if r.Action == ActionErasure && r.Masking == nil {
			return &ValidationError{Policy: p.Name, Reason: fmt.Sprintf("erasure rule %q has no masking strategy", r.Name)}
		}
	}
	return nil
}

// categoryMatches reports whether a field category falls under a rule
// category: exact match or the rule category is a dot-separated ancestor.
func categoryMatches(ruleCat, fieldCat string) bool {
	return fieldCat == ruleCat || strings.HasPrefix(fieldCat, ruleCat+".")
}

// ruleMatchesField reports whether any of the rule's categories cover any of
// the field's declared categories.
func ruleMatchesField(r Rule, f graph.Field) bool {
	for _, rc := range r.Categories {
		for _, fc := range f.DataCategories {
			if categoryMatches(rc, fc) {
				return true
			}
		}
	}
	return false
}

// ErasureTargets returns, per field name, the masking strategy the policy
// prescribes for it. Fields matched by no erasure rule are absent; they must
// never be altered.
func (p Policy) ErasureTargets(fields []graph.Field) map[string]MaskingStrategy {
	out := make(map[string]MaskingStrategy)
	for _, r := range p.Rules {
		if r.Action != ActionErasure {
			continue
		}
		for _, f := range fields {
			if ruleMatchesField(r, f) {
				out[f.Name] = r.Masking
			}
		}
	}
	return out
}

// ErasureTargetNames returns the sorted field names an erasure would touch.
func (p Policy) ErasureTargetNames(fields []graph.Field) []string {
	targets := p.ErasureTargets(fields)
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiresErasure reports whether any erasure rule matches any of the fields.
func (p Policy) RequiresErasure(fields []graph.Field) bool {
	return len(p.ErasureTargets(fields)) > 0
}
