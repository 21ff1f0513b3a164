package resolve

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

// Manual markup: structural units are flagged by CSS classes on
// paragraphs, and a unit's body is the run of following siblings up to
// the next unit heading, signature block, or financial statement.
var (
	parenthesizedNumber = regexp.MustCompile(`\((\d+)\)`)
	digitGap            = regexp.MustCompile(`(\d)\s+(\d)`)
	manualArticleNumber = regexp.MustCompile(`(?i)Article\s+(\d+)`)
	manualAnnexHeading  = regexp.MustCompile(`(?i)ANNEX\s+([IVXLCDMivxlcdm]+)`)
)

// manualStopClasses end the sibling walk that collects a unit's body.
var manualStopClasses = map[string]bool{
	"Titrearticle":        true,
	"Annexetitre":         true,
	"Fait":                true,
	"Fichefinanciretitre": true,
}

func (resolver *Resolver) extractManualRecitals(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`p[class="li ManualConsidrant"]`).Each(func(_ int, recital *goquery.Selection) {
		number := ""
		if numText := extractText(recital.Find(`span[class="num"]`).First()); numText != "" {
			if match := parenthesizedNumber.FindStringSubmatch(numText); match != nil {
				number = match[1]
			}
		}

		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeRecital,
			Number:  number,
			Text:    extractText(recital),
		})
	})
	resolver.log.Debugw("extracted manual structure recitals", "celex_id", resolver.celexID, "count", len(units))
	return units
}

func (resolver *Resolver) extractManualArticles(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`p[class="Titrearticle"]`).Each(func(_ int, heading *goquery.Selection) {
		headingNode := heading.Get(0)
		number, title := splitManualHeading(headingNode)

		next := nextElementSibling(headingNode)

		// A heading split across two Titrearticle paragraphs carries the
		// number first and the title in the follower.
		if title == "" && next != nil && nodeClass(next) == "Titrearticle" {
			var titleParts []string
			for _, child := range elementChildren(next) {
				titleParts = append(titleParts, extractNodeText(child))
			}
			title = strings.TrimSpace(strings.Join(titleParts, " "))
			next = nextElementSibling(next)
		}

		var textParts []string
		for next != nil && !manualStopClasses[nodeClass(next)] {
			textParts = append(textParts, extractNodeText(next))
			next = nextElementSibling(next)
		}

		// Headings where no number could be parsed are structural noise,
		// not articles.
		if number == "" {
			return
		}

		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeArticle,
			Number:  number,
			Title:   celex.NormalizeText(title),
			Text:    celex.NormalizeText(strings.TrimSpace(strings.Join(textParts, ""))),
		})
	})
	resolver.log.Debugw("extracted manual structure articles", "celex_id", resolver.celexID, "count", len(units))
	return units
}

// splitManualHeading parses a Titrearticle paragraph. When the paragraph
// contains a br, the number sits before it and the title after; digit
// runs broken by stray whitespace ("Article 1 0") are rejoined before
// matching. Without a br the first span carries the number and the title
// is left empty.
func splitManualHeading(heading *html.Node) (number, title string) {
	br := findFirst(heading, "br")
	if br != nil {
		before, after := splitTextAt(heading, br)
		numberText := digitGap.ReplaceAllString(strings.Join(before, " "), "$1$2")
		if match := manualArticleNumber.FindStringSubmatch(numberText); match != nil {
			number = match[1]
		}
		title = strings.TrimSpace(strings.Join(after, " "))
		return number, title
	}

	if span := findFirst(heading, "span"); span != nil {
		numberText := digitGap.ReplaceAllString(extractNodeText(span), "$1$2")
		if match := manualArticleNumber.FindStringSubmatch(numberText); match != nil {
			number = match[1]
		}
	}
	return number, ""
}

// findFirst returns the first descendant element with the given tag in
// document order.
func findFirst(node *html.Node, tag string) *html.Node {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag {
			return child
		}
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// splitTextAt partitions the text content of root into the chunks that
// appear before and after the marker element in document order.
func splitTextAt(root, marker *html.Node) (before, after []string) {
	seen := false
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node == marker {
			seen = true
			return
		}
		if node.Type == html.TextNode {
			if seen {
				after = append(after, node.Data)
			} else {
				before = append(before, node.Data)
			}
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return before, after
}

func (resolver *Resolver) extractManualAnnexes(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`p[class="Annexetitre"]`).Each(func(_ int, heading *goquery.Selection) {
		headingText := extractText(heading)

		number := ""
		title := ""
		if loc := manualAnnexHeading.FindStringSubmatchIndex(headingText); loc != nil {
			number = headingText[loc[2]:loc[3]]
			title = strings.TrimSpace(headingText[loc[1]:])
		}

		next := nextElementSibling(heading.Get(0))

		// A centered paragraph right after a bare ANNEX heading carries
		// the title.
		if title == "" && next != nil && nodeClass(next) == "NormalCentered" {
			var titleParts []string
			for _, child := range elementChildren(next) {
				titleParts = append(titleParts, extractNodeText(child))
			}
			title = strings.TrimSpace(strings.Join(titleParts, " "))
			next = nextElementSibling(next)
		}

		var textParts []string
		for next != nil && !manualStopClasses[nodeClass(next)] {
			textParts = append(textParts, extractNodeText(next))
			next = nextElementSibling(next)
		}

		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeAnnex,
			Number:  number,
			Title:   title,
			Text:    strings.TrimSpace(strings.Join(textParts, " ")),
		})
	})
	resolver.log.Debugw("extracted manual structure annexes", "celex_id", resolver.celexID, "count", len(units))
	return units
}
