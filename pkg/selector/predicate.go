package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/mailwright/pkg/dom"
)

// Predicate decides whether a matched element is usable.
type Predicate func(el dom.Element) bool

// Connected accepts elements still attached to the document.
func Connected(el dom.Element) bool {
	return el.IsConnected()
}

// Rendered accepts elements with a non-zero rendered box.
func Rendered(el dom.Element) bool {
	return !el.BoundingBox().Empty()
}

// InViewport accepts elements whose box overlaps the viewport.
func InViewport(el dom.Element) bool {
	return el.BoundingBox().Intersects(el.OwnerDocument().Viewport())
}

// NearMarker accepts elements with an ancestor, within levels steps, that
// contains one of the marker selectors. Markers are compose affordances
// such as a send button or a recipient field; a bare contenteditable region
// is otherwise ambiguous.
func NearMarker(levels int, markers ...string) Predicate {
	group := strings.Join(markers, ", ")
	return func(el dom.Element) bool {
		if group == "" {
			return false
		}
		for _, anc := range dom.Ancestors(el, levels+1) {
			found, err := dom.QueryFirst(anc, group)
			if err == nil && found != nil {
				return true
			}
		}
		return false
	}
}

// MinText accepts elements whose trimmed rendered text has at least n
// characters.
func MinText(n int) Predicate {
	return func(el dom.Element) bool {
		return len([]rune(strings.TrimSpace(Text(el)))) >= n
	}
}

// All accepts elements passing every predicate.
func All(preds ...Predicate) Predicate {
	return func(el dom.Element) bool {
		for _, p := range preds {
			if p != nil && !p(el) {
				return false
			}
		}
		return true
	}
}

// Any accepts elements passing at least one predicate.
func Any(preds ...Predicate) Predicate {
	return func(el dom.Element) bool {
		for _, p := range preds {
			if p != nil && p(el) {
				return true
			}
		}
		return false
	}
}

// ParsePredicate builds a predicate from its declarative name:
// connected, rendered, in_viewport, min_text:N and near_marker. The
// near_marker form uses the markers and levels supplied by the caller.
func ParsePredicate(name string, markers []string, levels int) (Predicate, error) {
	key, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
	switch key {
	case "connected":
		return Connected, nil
	case "rendered":
		return Rendered, nil
	case "in_viewport":
		return InViewport, nil
	case "near_marker":
		if len(markers) == 0 {
			return nil, fmt.Errorf("near_marker used without compose markers")
		}
		return NearMarker(levels, markers...), nil
	case "min_text":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid min_text length %q", arg)
		}
		return MinText(n), nil
	}
	return nil, fmt.Errorf("unknown predicate %q", name)
}
