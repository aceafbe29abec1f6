package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits n and every descendant, depth-first, calling fn on each node.
func walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}

type nodePredicate func(*html.Node) bool

func tagPredicate(tag string) nodePredicate {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func hasClassPredicate(class string) nodePredicate {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	}
}

// findFirst returns the first descendant of root (root itself included)
// satisfying all predicates in order - each predicate narrows to a subtree
// rooted at the previous match, e.g. findFirst(root, hasClass("x"), tag("b"))
// finds the first <b> under the first ".x".
func findFirst(root *html.Node, preds ...nodePredicate) *html.Node {
	scope := root
	for _, pred := range preds {
		found := findMatch(scope, pred)
		if found == nil {
			return nil
		}
		scope = found
	}
	return scope
}

func findMatch(root *html.Node, pred nodePredicate) *html.Node {
	var match *html.Node
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if pred(n) {
			match = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if visit(c) {
				return true
			}
		}
		return false
	}
	visit(root)
	return match
}

func findFirstByClass(root *html.Node, class string) *html.Node {
	return findMatch(root, hasClassPredicate(class))
}

// renderNode serializes n back to HTML text; used to compute the DeltaEngine's
// cheap innerHTML hash.
func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}
