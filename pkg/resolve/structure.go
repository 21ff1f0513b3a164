package resolve

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

// structureKind identifies the markup convention a document uses. The
// three conventions are mutually exclusive in practice; classification
// checks them in priority order.
type structureKind int

const (
	structureUnrecognized structureKind = iota
	structureStandard
	structureManual
	structureTextOnly
)

func (kind structureKind) String() string {
	switch kind {
	case structureStandard:
		return "standard"
	case structureManual:
		return "manual"
	case structureTextOnly:
		return "text-only"
	default:
		return "unrecognized"
	}
}

// isStandardStructure reports whether the document uses Official Journal
// markup: div elements whose ids carry rct_ or art_ prefixes.
func isStandardStructure(doc *goquery.Document) bool {
	return doc.Find(`div[id^="rct_"], div[id^="art_"]`).Length() > 0
}

// isManualStructure reports whether the document uses the manual CSS class
// convention. Class values are matched exactly, including the two-token
// recital class.
func isManualStructure(doc *goquery.Document) bool {
	return doc.Find(`p[class="li ManualConsidrant"], p[class="Titrearticle"], p[class="Annexetitre"]`).Length() > 0
}

// isTextOnlyStructure reports whether the document wraps its body in a
// single TexteOnly container with no structural markup inside.
func isTextOnlyStructure(doc *goquery.Document) bool {
	return doc.Find(`div[id="TexteOnly"]`).Length() > 0
}

// classifyStructure determines the markup convention, checking standard
// first, then manual, then text-only.
func classifyStructure(doc *goquery.Document) structureKind {
	switch {
	case isStandardStructure(doc):
		return structureStandard
	case isManualStructure(doc):
		return structureManual
	case isTextOnlyStructure(doc):
		return structureTextOnly
	default:
		return structureUnrecognized
	}
}

// flattenContentDivs hoists the children of every div with class exactly
// "content" into its parent, in place, then removes the wrapper. Some
// renditions wrap each structural unit's body in such a div, which would
// otherwise hide unit children from the extraction walks.
func flattenContentDivs(doc *goquery.Document) {
	doc.Find(`div[class="content"]`).Each(func(_ int, wrapper *goquery.Selection) {
		div := wrapper.Get(0)
		parent := div.Parent
		if parent == nil {
			return
		}
		for child := div.FirstChild; child != nil; {
			next := child.NextSibling
			div.RemoveChild(child)
			parent.InsertBefore(child, div)
			child = next
		}
		parent.RemoveChild(div)
	})
}

// extractText returns the normalized text content of the selection's first
// node: all descendant text joined with single spaces.
func extractText(sel *goquery.Selection) string {
	if sel == nil || len(sel.Nodes) == 0 {
		return ""
	}
	var parts []string
	collectText(sel.Nodes[0], &parts)
	return celex.NormalizeText(strings.Join(parts, " "))
}

// extractNodeText is extractText for a bare parse tree node.
func extractNodeText(node *html.Node) string {
	var parts []string
	collectText(node, &parts)
	return celex.NormalizeText(strings.Join(parts, " "))
}

func collectText(node *html.Node, parts *[]string) {
	if node.Type == html.TextNode {
		if trimmed := strings.TrimSpace(node.Data); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

// nodeClass returns the class attribute of an element node.
func nodeClass(node *html.Node) string {
	for _, attr := range node.Attr {
		if attr.Key == "class" {
			return attr.Val
		}
	}
	return ""
}

// elementChildren returns the element child nodes, skipping text and
// comment nodes.
func elementChildren(node *html.Node) []*html.Node {
	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			children = append(children, child)
		}
	}
	return children
}

// nextElementSibling returns the following sibling element, skipping text
// and comment nodes, or nil at the end of the parent.
func nextElementSibling(node *html.Node) *html.Node {
	for sibling := node.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.ElementNode {
			return sibling
		}
	}
	return nil
}

// renderDocument serializes the parse tree back to markup.
func renderDocument(doc *goquery.Document) (string, error) {
	var builder strings.Builder
	if err := html.Render(&builder, doc.Get(0)); err != nil {
		return "", err
	}
	return builder.String(), nil
}
