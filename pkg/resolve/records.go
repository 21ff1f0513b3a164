package resolve

// Text unit types produced by structure extraction.
const (
	UnitTypeRecital = "recital"
	UnitTypeArticle = "article"
	UnitTypeAnnex   = "annex"
)

// TextUnit is one extracted structural unit of a document: a recital, an
// article, or an annex. Number carries the unit's own numbering as printed
// in the document (arabic for recitals and articles, roman numerals
// allowed for annexes); it may be empty when the source markup carries no
// parseable number.
type TextUnit struct {
	CelexID string
	Type    string
	Number  string
	Title   string
	Text    string
}

// Relation is one directed typed relation between two works, identified by
// their CELEX identifiers.
type Relation struct {
	SourceID string
	Type     string
	TargetID string
}
