// Package selector resolves prioritized selector chains against a host
// document.
//
// A Chain is an ordered list of queries. Each query enumerates every match
// in document order and the first element passing the query's predicate
// wins. Not finding anything is a normal result: host markup changes without
// notice, so callers treat it as "not present yet".
package selector

import (
	"strings"

	"github.com/entrhq/mailwright/pkg/dom"
	"github.com/entrhq/mailwright/pkg/logging"
)

// Query is one structural query of a chain.
type Query struct {
	// Selector is a CSS selector evaluated against the root's descendants.
	Selector string

	// Predicate validates each match. Nil accepts every match.
	Predicate Predicate

	// Parent makes the query yield the matched element's parent, as for
	// "the element holding the send button".
	Parent bool
}

// Read sources for Chain.Read.
const (
	ReadText  = "text"  // ReadText reads textContent.
	ReadInner = "inner" // ReadInner reads rendered innerText.
)

// Chain is the prioritized lookup of one semantic target.
type Chain struct {
	Name    string
	Queries []Query

	// Read lists where Value takes the value from, in order. Entries are
	// ReadText, ReadInner or "@name" for an attribute. Empty means ReadText.
	Read []string
}

// Resolver evaluates chains.
type Resolver struct {
	log *logging.Logger
}

// NewResolver creates a resolver that logs skipped queries to log.
func NewResolver(log *logging.Logger) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{log: log}
}

// Resolve returns the first valid element of chain under root.
func (r *Resolver) Resolve(chain Chain, root dom.Element) (dom.Element, bool) {
	if root == nil {
		return nil, false
	}
	for _, q := range chain.Queries {
		matches, ok := r.query(chain, q, root)
		if !ok {
			continue
		}
		for _, el := range matches {
			if q.Predicate == nil || q.Predicate(el) {
				return el, true
			}
		}
	}
	return nil, false
}

// ResolveAll returns the valid matches of the first query that has any.
// Message collections use it: one selector describes the whole thread.
func (r *Resolver) ResolveAll(chain Chain, root dom.Element) []dom.Element {
	if root == nil {
		return nil
	}
	for _, q := range chain.Queries {
		matches, ok := r.query(chain, q, root)
		if !ok {
			continue
		}
		var valid []dom.Element
		for _, el := range matches {
			if q.Predicate == nil || q.Predicate(el) {
				valid = append(valid, el)
			}
		}
		if len(valid) > 0 {
			r.log.Debugf("%s: %d matches for %q", chain.Name, len(valid), q.Selector)
			return valid
		}
	}
	return nil
}

// Closest resolves chain against the inclusive ancestors of el instead of
// its descendants. Each query yields the nearest matching ancestor.
func (r *Resolver) Closest(chain Chain, el dom.Element) (dom.Element, bool) {
	if el == nil {
		return nil, false
	}
	for _, q := range chain.Queries {
		match, err := el.Closest(q.Selector)
		if err != nil {
			r.log.Debugf("%s: skipping %q: %v", chain.Name, q.Selector, err)
			continue
		}
		if match == nil {
			continue
		}
		if q.Parent {
			if match = match.Parent(); match == nil {
				continue
			}
		}
		if q.Predicate == nil || q.Predicate(match) {
			return match, true
		}
	}
	return nil, false
}

// Value resolves chain under root and reads the element's value from the
// chain's read list. The first non-empty trimmed value is returned.
func (r *Resolver) Value(chain Chain, root dom.Element) (string, bool) {
	el, ok := r.Resolve(chain, root)
	if !ok {
		return "", false
	}
	return ReadValue(el, chain.Read)
}

// ReadValue reads the first non-empty value of el from sources.
func ReadValue(el dom.Element, sources []string) (string, bool) {
	if len(sources) == 0 {
		sources = []string{ReadText}
	}
	for _, src := range sources {
		var v string
		switch {
		case src == ReadText:
			v = el.TextContent()
		case src == ReadInner:
			v = Text(el)
		case strings.HasPrefix(src, "@"):
			v, _ = el.Attribute(src[1:])
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

// Text returns the rendered text of el, or its text content when nothing
// is rendered.
func Text(el dom.Element) string {
	if t := el.InnerText(); strings.TrimSpace(t) != "" {
		return t
	}
	return el.TextContent()
}

func (r *Resolver) query(chain Chain, q Query, root dom.Element) ([]dom.Element, bool) {
	matches, err := root.QuerySelectorAll(q.Selector)
	if err != nil {
		r.log.Debugf("%s: skipping %q: %v", chain.Name, q.Selector, err)
		return nil, false
	}
	if !q.Parent {
		return matches, true
	}
	parents := make([]dom.Element, 0, len(matches))
	for _, m := range matches {
		if p := m.Parent(); p != nil {
			parents = append(parents, p)
		}
	}
	return parents, true
}
