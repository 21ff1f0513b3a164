package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

// TitleUnavailable is the sentinel title stored when no source yields one.
const TitleUnavailable = "[Unavailable]"

// documentTypeByCode maps the alphabetic descriptor in positions 5-6 of a
// CELEX identifier to a human readable document type.
var documentTypeByCode = map[string]string{
	"L":  "directive",
	"R":  "regulation",
	"D":  "decision",
	"PC": "proposal",
	"DC": "other preparatory document",
}

// titleDatePattern finds an adoption date written out in a title, e.g.
// "of 19 October 2022".
var titleDatePattern = regexp.MustCompile(`(\d{1,2})\s([A-Za-z]{3,9})\s(\d{4})`)

// Title resolves the document title, trying the structured property
// lookup first, then the metadata notice, then the main title block of
// the full text markup. Returns TitleUnavailable when every source fails.
// The result is normalized and memoized.
func (resolver *Resolver) Title() string {
	if resolver.title != "" {
		return resolver.title
	}

	if properties, err := resolver.workProperties(); err == nil && properties.Title != "" {
		resolver.log.Debugw("title retrieved from property lookup", "celex_id", resolver.celexID)
		resolver.title = celex.NormalizeText(properties.Title)
		return resolver.title
	} else if err != nil {
		resolver.log.Warnw("failed to retrieve title from property lookup", "celex_id", resolver.celexID, "error", err)
	}

	if title := resolver.titleFromNotice(); title != "" {
		resolver.log.Debugw("title retrieved from metadata notice", "celex_id", resolver.celexID)
		resolver.title = title
		return resolver.title
	}

	if doc, err := resolver.fullTextDocument(); err == nil {
		if title := extractText(doc.Find(`div[class="eli-main-title"]`).First()); title != "" {
			resolver.log.Debugw("title extracted from full text markup", "celex_id", resolver.celexID)
			resolver.title = title
			return resolver.title
		}
	} else {
		resolver.log.Warnw("failed to extract title from full text markup", "celex_id", resolver.celexID, "error", err)
	}

	resolver.log.Errorw("unable to resolve title from any source", "celex_id", resolver.celexID)
	resolver.title = TitleUnavailable
	return resolver.title
}

func (resolver *Resolver) titleFromNotice() string {
	notice, err := resolver.metadataNotice()
	if err != nil {
		resolver.log.Warnw("failed to retrieve metadata notice", "celex_id", resolver.celexID, "error", err)
		return ""
	}
	doc, err := xmlquery.Parse(strings.NewReader(string(notice)))
	if err != nil {
		resolver.log.Warnw("failed to parse metadata notice", "celex_id", resolver.celexID, "error", err)
		return ""
	}
	node := xmlquery.FindOne(doc, "//EXPRESSION/EXPRESSION_TITLE/VALUE")
	if node == nil {
		return ""
	}
	return celex.NormalizeText(node.InnerText())
}

// DocumentType derives the document type from the identifier: the
// alphabetic descriptor after the year selects the type, and sector 0
// marks a consolidated version of it. Returns "Unknown" for identifiers
// too short to carry a descriptor or with an unmapped one.
func (resolver *Resolver) DocumentType() string {
	if resolver.documentType != "" {
		return resolver.documentType
	}

	if len(resolver.celexID) < 7 {
		resolver.log.Errorw("identifier too short to carry a type descriptor", "celex_id", resolver.celexID)
		resolver.documentType = "Unknown"
		return resolver.documentType
	}

	code := strings.TrimRight(resolver.celexID[5:7], "0123456789")
	documentType, known := documentTypeByCode[code]
	if !known {
		resolver.log.Errorw("unknown document type descriptor", "celex_id", resolver.celexID, "descriptor", code)
		resolver.documentType = "Unknown"
		return resolver.documentType
	}

	if resolver.celexID[0] == '0' {
		documentType = "consolidated " + documentType
	}
	resolver.documentType = documentType
	return resolver.documentType
}

// DateAdopted resolves the adoption date, trying the structured property
// lookup first, then the metadata notice, then a date written out in the
// title. Consolidated texts resolve the first two sources against their
// original act. Returns nil when every source fails.
func (resolver *Resolver) DateAdopted() *time.Time {
	source := resolver
	if celex.IsConsolidated(resolver.celexID) {
		source = resolver.originalForConsolidated()
	}

	if properties, err := source.workProperties(); err == nil && properties.Date != "" {
		if date, parseErr := time.Parse("2006-01-02", properties.Date); parseErr == nil {
			resolver.log.Debugw("date adopted retrieved from property lookup", "celex_id", resolver.celexID)
			return &date
		}
		resolver.log.Warnw("unparseable date from property lookup",
			"celex_id", resolver.celexID, "date", properties.Date)
	} else if err != nil {
		resolver.log.Warnw("failed to retrieve date adopted from property lookup",
			"celex_id", resolver.celexID, "error", err)
	}

	if date := source.dateFromNotice(); date != nil {
		resolver.log.Debugw("date adopted retrieved from metadata notice", "celex_id", resolver.celexID)
		return date
	}

	if date := resolver.dateFromTitle(); date != nil {
		resolver.log.Debugw("date adopted extracted from title", "celex_id", resolver.celexID)
		return date
	}

	resolver.log.Errorw("unable to resolve date adopted from any source", "celex_id", resolver.celexID)
	return nil
}

func (resolver *Resolver) dateFromNotice() *time.Time {
	notice, err := resolver.metadataNotice()
	if err != nil {
		resolver.log.Warnw("failed to retrieve metadata notice for date", "celex_id", resolver.celexID, "error", err)
		return nil
	}
	doc, err := xmlquery.Parse(strings.NewReader(string(notice)))
	if err != nil {
		resolver.log.Warnw("failed to parse metadata notice for date", "celex_id", resolver.celexID, "error", err)
		return nil
	}

	dateNode := xmlquery.FindOne(doc, "//WORK/DATE_DOCUMENT")
	if dateNode == nil {
		return nil
	}
	year := childInt(dateNode, "YEAR")
	month := childInt(dateNode, "MONTH")
	day := childInt(dateNode, "DAY")
	return makeDate(year, month, day)
}

func (resolver *Resolver) dateFromTitle() *time.Time {
	title := resolver.Title()
	if title == TitleUnavailable {
		return nil
	}

	match := titleDatePattern.FindStringSubmatch(title)
	if match == nil {
		return nil
	}

	day, _ := strconv.Atoi(match[1])
	year, _ := strconv.Atoi(match[3])
	monthTime, err := time.Parse("January", match[2])
	if err != nil {
		resolver.log.Warnw("unrecognized month name in title date",
			"celex_id", resolver.celexID, "month", match[2])
		return nil
	}
	return makeDate(year, int(monthTime.Month()), day)
}

func childInt(node *xmlquery.Node, name string) int {
	child := xmlquery.FindOne(node, name)
	if child == nil {
		return 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(child.InnerText()))
	if err != nil {
		return 0
	}
	return value
}

// makeDate builds a UTC date, rejecting component combinations the
// calendar normalizes away (such as 30 February).
func makeDate(year, month, day int) *time.Time {
	if year == 0 || month < 1 || month > 12 || day < 1 {
		return nil
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return nil
	}
	return &date
}
