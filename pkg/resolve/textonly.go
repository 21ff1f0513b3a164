package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text-only markup: the body is a flat run of paragraphs inside a single
// TexteOnly container. Units are recognized by their opening words and a
// unit's body is every following paragraph up to the next trigger.
var (
	textOnlyArticleStart = regexp.MustCompile(`(?i)^Article\s+(\d+)`)
	textOnlyAnnexStart   = regexp.MustCompile(`(?i)^ANNEX\s*([IVXLCDMivxlcdm0-9]*)(.*)`)
)

func (resolver *Resolver) extractTextOnlyUnits(doc *goquery.Document, includeRecitals, includeArticles, includeAnnexes bool) []TextUnit {
	if !includeRecitals && !includeArticles && !includeAnnexes {
		return nil
	}

	container := doc.Find(`div[id="TexteOnly"]`).First()
	if container.Length() == 0 {
		resolver.log.Warnw("no TexteOnly container found", "celex_id", resolver.celexID)
		return nil
	}

	paragraphs := container.Find("p")
	texts := make([]string, paragraphs.Length())
	paragraphs.Each(func(i int, paragraph *goquery.Selection) {
		texts[i] = strings.TrimSpace(extractText(paragraph))
	})

	var units []TextUnit
	recitalCount := 0
	i := 0
	for i < len(texts) {
		text := texts[i]

		if includeRecitals && strings.HasPrefix(text, "Whereas") {
			recitalCount++
			units = append(units, TextUnit{
				CelexID: resolver.celexID,
				Type:    UnitTypeRecital,
				Number:  fmt.Sprintf("%d", recitalCount),
				Text:    text,
			})
			i++
			continue
		}

		if includeArticles {
			if match := textOnlyArticleStart.FindStringSubmatch(text); match != nil {
				var bodyParts []string
				i++
				for i < len(texts) {
					if textOnlyArticleStart.MatchString(texts[i]) || textOnlyAnnexStart.MatchString(texts[i]) {
						break
					}
					bodyParts = append(bodyParts, texts[i])
					i++
				}

				units = append(units, TextUnit{
					CelexID: resolver.celexID,
					Type:    UnitTypeArticle,
					Number:  match[1],
					Text:    strings.TrimSpace(strings.Join(bodyParts, " ")),
				})
				continue
			}
		}

		if includeAnnexes {
			if match := textOnlyAnnexStart.FindStringSubmatch(text); match != nil {
				var bodyParts []string
				i++
				for i < len(texts) {
					if textOnlyAnnexStart.MatchString(texts[i]) {
						break
					}
					bodyParts = append(bodyParts, texts[i])
					i++
				}

				units = append(units, TextUnit{
					CelexID: resolver.celexID,
					Type:    UnitTypeAnnex,
					Number:  match[1],
					Title:   strings.TrimSpace(match[2]),
					Text:    strings.TrimSpace(strings.Join(bodyParts, " ")),
				})
				continue
			}
		}

		i++
	}

	resolver.log.Debugw("extracted text-only units", "celex_id", resolver.celexID, "count", len(units))
	return units
}
