package resolve

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Standard (Official Journal) markup: every structural unit is a div with
// a typed id prefix. Article ids must be exactly art_<number><suffix>: ids
// like art_1_para_2 address nested fragments and are skipped.
var (
	standardArticleID = regexp.MustCompile(`^art_\d+[a-z]*$`)
	standardAnnexID   = regexp.MustCompile(`^anx_[IVXLCDMivxlcdm0-9]+$`)
	annexHeaderText   = regexp.MustCompile(`(?i)^ANNEX\s*[IVXLCDM]*`)
)

func (resolver *Resolver) extractStandardRecitals(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`div[id^="rct_"]`).Each(func(_ int, recital *goquery.Selection) {
		id, _ := recital.Attr("id")
		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeRecital,
			Number:  strings.TrimPrefix(id, "rct_"),
			Text:    extractText(recital),
		})
	})
	resolver.log.Debugw("extracted standard structure recitals", "celex_id", resolver.celexID, "count", len(units))
	return units
}

func (resolver *Resolver) extractStandardArticles(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`div[id^="art_"]`).Each(func(_ int, article *goquery.Selection) {
		id, _ := article.Attr("id")
		if !standardArticleID.MatchString(id) {
			return
		}

		title := extractText(article.Find(`div[class="eli-title"]`).First())

		var textParts []string
		for _, child := range elementChildren(article.Get(0)) {
			class := nodeClass(child)
			if class == "eli-title" || class == "oj-ti-art" {
				continue
			}
			textParts = append(textParts, extractNodeText(child))
		}

		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeArticle,
			Number:  strings.TrimPrefix(id, "art_"),
			Title:   title,
			Text:    strings.TrimSpace(strings.Join(textParts, " ")),
		})
	})
	resolver.log.Debugw("extracted standard structure articles", "celex_id", resolver.celexID, "count", len(units))
	return units
}

func (resolver *Resolver) extractStandardAnnexes(doc *goquery.Document) []TextUnit {
	var units []TextUnit
	doc.Find(`div[id^="anx_"]`).Each(func(_ int, annex *goquery.Selection) {
		id, _ := annex.Attr("id")
		if !standardAnnexID.MatchString(id) {
			return
		}

		title := ""
		var textParts []string
		for _, child := range elementChildren(annex.Get(0)) {
			if nodeClass(child) == "oj-doc-ti" {
				// The ANNEX heading itself is discarded; any other
				// oj-doc-ti child is the annex title.
				childText := extractNodeText(child)
				if !annexHeaderText.MatchString(childText) {
					title = childText
				}
				continue
			}
			textParts = append(textParts, extractNodeText(child))
		}

		units = append(units, TextUnit{
			CelexID: resolver.celexID,
			Type:    UnitTypeAnnex,
			Number:  strings.TrimPrefix(id, "anx_"),
			Title:   title,
			Text:    strings.TrimSpace(strings.Join(textParts, " ")),
		})
	})
	resolver.log.Debugw("extracted standard structure annexes", "celex_id", resolver.celexID, "count", len(units))
	return units
}
