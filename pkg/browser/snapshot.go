package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/playwright-community/playwright-go"
)

// jsSnapshot serializes a copy of the document with layout annotations:
// data-mw-rect on every element, data-mw-viewport and data-mw-url on <html>.
const jsSnapshot = `() => {
  const root = document.documentElement;
  const clone = root.cloneNode(true);
  const live = [root, ...root.querySelectorAll('*')];
  const copy = [clone, ...clone.querySelectorAll('*')];
  const n = Math.min(live.length, copy.length);
  for (let i = 0; i < n; i++) {
    const r = live[i].getBoundingClientRect();
    const style = getComputedStyle(live[i]);
    const hidden = style.display === 'none' || style.visibility === 'hidden';
    const w = hidden ? 0 : r.width, h = hidden ? 0 : r.height;
    copy[i].setAttribute('data-mw-rect', [r.x, r.y, w, h].map(v => Math.round(v)).join(' '));
  }
  clone.setAttribute('data-mw-viewport', window.innerWidth + ' ' + window.innerHeight);
  clone.setAttribute('data-mw-url', location.href);
  return '<!DOCTYPE html>' + clone.outerHTML;
}`

// Snapshot captures page as annotated HTML that the in-memory DOM can load.
func Snapshot(page playwright.Page) (string, error) {
	v, err := page.Evaluate(jsSnapshot)
	if err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}
	raw, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("snapshot returned %T", v)
	}
	return CleanSnapshot(raw)
}

// CleanSnapshot removes scripts, styles, embedded content and comments from
// a snapshot. Attributes are kept because selector chains match on them.
func CleanSnapshot(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	cleanNode(doc)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return b.String(), nil
}

// cleanNode removes unwanted children of n recursively.
func cleanNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && isSkippedElement(strings.ToLower(c.Data))) {
			n.RemoveChild(c)
		} else {
			cleanNode(c)
		}
		c = next
	}
}

// isSkippedElement returns true for elements that should be completely removed
func isSkippedElement(tagName string) bool {
	skipped := map[string]bool{
		"script":   true,
		"style":    true,
		"noscript": true,
		"iframe":   true,
		"embed":    true,
		"object":   true,
		"link":     true,
	}
	return skipped[tagName]
}

// SnapshotTitle returns the <title> of a snapshot.
func SnapshotTitle(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
			if title != "" {
				return
			}
		}
	}
	traverse(doc)
	return title
}
