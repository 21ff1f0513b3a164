package cellar

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultStreamOrder is assigned to candidates without a declared order
// index so they sort after every declared candidate.
const defaultStreamOrder = 999

// representation is one candidate document offered by an HTTP 300
// Multiple Choices response.
type representation struct {
	URL         string
	StreamName  string
	StreamOrder int
}

// parseMultipleChoices extracts the candidate representations from a 300
// Multiple Choices HTML body. Candidates carry a link, a stream (file)
// name, and a declared order index.
func parseMultipleChoices(body []byte) ([]representation, error) {
	document, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse multiple choices response: %w", err)
	}

	var candidates []representation
	document.Find(`li[title="item"]`).Each(func(_ int, item *goquery.Selection) {
		href, hasHref := item.Find("a").First().Attr("href")
		if !hasHref || href == "" {
			return
		}

		streamName := strings.TrimSpace(item.Find(`li[title="stream_name"]`).First().Text())

		streamOrder := defaultStreamOrder
		orderText := strings.TrimSpace(item.Find(`li[title="stream_order"]`).First().Text())
		if orderText != "" {
			if parsed, parseErr := strconv.Atoi(orderText); parseErr == nil {
				streamOrder = parsed
			}
		}

		candidates = append(candidates, representation{
			URL:         href,
			StreamName:  streamName,
			StreamOrder: streamOrder,
		})
	})

	return candidates, nil
}

// selectRepresentation picks one candidate URL using the selection
// heuristic: candidates whose stream name contains any exclude keyword are
// dropped; among the rest, a candidate whose name contains an include
// keyword wins (ties broken by ascending stream order), otherwise the
// lowest stream order wins. If all candidates are excluded, the first
// original candidate is returned together with excludedAll=true so the
// caller can log a warning.
func selectRepresentation(candidates []representation, includeKeywords, excludeKeywords []string) (url string, excludedAll bool, err error) {
	if len(candidates) == 0 {
		return "", false, fmt.Errorf("no candidate representations in multiple choices response")
	}

	remaining := make([]representation, 0, len(candidates))
	for _, candidate := range candidates {
		if !containsAnyKeyword(candidate.StreamName, excludeKeywords) {
			remaining = append(remaining, candidate)
		}
	}

	if len(remaining) == 0 {
		return candidates[0].URL, true, nil
	}

	sort.SliceStable(remaining, func(i, j int) bool {
		return representationScore(remaining[i], includeKeywords) < representationScore(remaining[j], includeKeywords)
	})

	return remaining[0].URL, false, nil
}

// representationScore ranks a candidate: lower is better. Candidates whose
// stream name contains an include keyword get a large bonus over the
// declared order index.
func representationScore(candidate representation, includeKeywords []string) int {
	score := candidate.StreamOrder
	if containsAnyKeyword(candidate.StreamName, includeKeywords) {
		score -= 1000
	}
	return score
}

func containsAnyKeyword(streamName string, keywords []string) bool {
	lowered := strings.ToLower(streamName)
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
