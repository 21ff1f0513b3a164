package resolve

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/coolbeans/cellarbuild/pkg/cellar"
)

var errUnavailable = errors.New("representation not available")

// fakeFetcher serves canned representations keyed by CELEX identifier.
// Missing entries behave like retrieval failures.
type fakeFetcher struct {
	xhtml      map[string]string
	plainHTML  map[string]string
	annexXHTML map[string]string
	annexHTML  map[string]string
	notices    map[string]string
}

func (f *fakeFetcher) lookup(representations map[string]string, celexID string) ([]byte, error) {
	body, found := representations[celexID]
	if !found {
		return nil, errUnavailable
	}
	return []byte(body), nil
}

func (f *fakeFetcher) FullTextXHTML(celexID string) ([]byte, error) {
	return f.lookup(f.xhtml, celexID)
}
func (f *fakeFetcher) FullTextHTML(celexID string) ([]byte, error) {
	return f.lookup(f.plainHTML, celexID)
}
func (f *fakeFetcher) AnnexXHTML(celexID string) ([]byte, error) {
	return f.lookup(f.annexXHTML, celexID)
}
func (f *fakeFetcher) AnnexHTML(celexID string) ([]byte, error) {
	return f.lookup(f.annexHTML, celexID)
}
func (f *fakeFetcher) NoticeMetadata(celexID string) ([]byte, error) {
	return f.lookup(f.notices, celexID)
}

// fakeProperties serves canned property lookups keyed by CELEX identifier.
type fakeProperties struct {
	properties map[string]*cellar.WorkProperties
}

func (f *fakeProperties) WorkProperties(celexID string) (*cellar.WorkProperties, error) {
	properties, found := f.properties[celexID]
	if !found {
		return nil, errUnavailable
	}
	return properties, nil
}

func countByType(units []TextUnit) map[string]int {
	counts := make(map[string]int)
	for _, unit := range units {
		counts[unit.Type]++
	}
	return counts
}

func TestTextUnits_Standard(t *testing.T) {
	fetcher := &fakeFetcher{xhtml: map[string]string{"32022R2065": standardDoc}}
	resolver := New("32022R2065", fetcher, &fakeProperties{}, nil)

	units := resolver.TextUnits(true, true, true)
	counts := countByType(units)
	if counts[UnitTypeRecital] != 2 || counts[UnitTypeArticle] != 2 || counts[UnitTypeAnnex] != 1 {
		t.Fatalf("unit counts = %v", counts)
	}
	for _, unit := range units {
		if unit.CelexID != "32022R2065" {
			t.Errorf("unit attributed to %q", unit.CelexID)
		}
	}
}

func TestTextUnits_PlainHTMLFallback(t *testing.T) {
	fetcher := &fakeFetcher{plainHTML: map[string]string{"32022R2065": standardDoc}}
	resolver := New("32022R2065", fetcher, &fakeProperties{}, nil)

	units := resolver.TextUnits(true, true, true)
	if len(units) == 0 {
		t.Fatal("expected units from the plain HTML rendition")
	}
}

func TestTextUnits_UnrecognizedXHTMLRetriesPlainHTML(t *testing.T) {
	fetcher := &fakeFetcher{
		xhtml:     map[string]string{"32022R2065": `<div><p>no structural markup</p></div>`},
		plainHTML: map[string]string{"32022R2065": manualDoc},
	}
	resolver := New("32022R2065", fetcher, &fakeProperties{}, nil)

	units := resolver.TextUnits(false, true, false)
	if len(units) != 2 {
		t.Fatalf("expected 2 manual articles from the plain HTML retry, got %d", len(units))
	}
}

func TestTextUnits_NothingAvailable(t *testing.T) {
	resolver := New("32022R2065", &fakeFetcher{}, &fakeProperties{}, nil)
	if units := resolver.TextUnits(true, true, true); units != nil {
		t.Fatalf("expected no units when no rendition is available, got %d", len(units))
	}
}

func TestTextUnits_NothingRequested(t *testing.T) {
	resolver := New("32022R2065", &fakeFetcher{}, &fakeProperties{}, nil)
	if units := resolver.TextUnits(false, false, false); units != nil {
		t.Fatalf("expected no units when every type is disabled, got %d", len(units))
	}
}

func TestTextUnits_ConsolidatedRecitalsFromOriginal(t *testing.T) {
	consolidatedID := "02022R2065-20240217"
	consolidatedDoc := `
<div id="art_1"><div class="eli-title"><p>Subject matter</p></div><p>Consolidated article body.</p></div>`
	originalDoc := `
<div id="rct_1"><p>(1) Original recital.</p></div>
<div id="art_1"><p>Original article body.</p></div>`

	fetcher := &fakeFetcher{xhtml: map[string]string{
		consolidatedID: consolidatedDoc,
		"32022R2065":   originalDoc,
	}}
	resolver := New(consolidatedID, fetcher, &fakeProperties{}, nil)

	units := resolver.TextUnits(true, true, false)
	counts := countByType(units)
	if counts[UnitTypeRecital] != 1 || counts[UnitTypeArticle] != 1 {
		t.Fatalf("unit counts = %v", counts)
	}

	for _, unit := range units {
		// Recitals come from the original act's markup but stay
		// attributed to the consolidated text.
		if unit.CelexID != consolidatedID {
			t.Errorf("unit attributed to %q, want %q", unit.CelexID, consolidatedID)
		}
		if unit.Type == UnitTypeRecital && unit.Text != "(1) Original recital." {
			t.Errorf("recital text = %q", unit.Text)
		}
		if unit.Type == UnitTypeArticle && unit.Text != "Consolidated article body." {
			t.Errorf("article text = %q", unit.Text)
		}
	}
}

func TestTextUnits_ProposalAnnexFromSeparatePart(t *testing.T) {
	proposalDoc := `
<p class="Titrearticle"><span>Article 1</span><br/>Scope</p>
<p class="Normal">Proposal article body.</p>`
	annexDoc := `
<p class="Annexetitre">ANNEX I Correlation</p>
<p class="Normal">Annex part body.</p>`

	fetcher := &fakeFetcher{
		xhtml:      map[string]string{"52020PC0825": proposalDoc},
		annexXHTML: map[string]string{"52020PC0825": annexDoc},
	}
	resolver := New("52020PC0825", fetcher, &fakeProperties{}, nil)

	units := resolver.TextUnits(false, true, true)
	counts := countByType(units)
	if counts[UnitTypeArticle] != 1 || counts[UnitTypeAnnex] != 1 {
		t.Fatalf("unit counts = %v", counts)
	}
	for _, unit := range units {
		if unit.Type == UnitTypeAnnex && unit.Text != "Annex part body." {
			t.Errorf("annex text = %q", unit.Text)
		}
	}
}

func TestTextUnits_ProposalAnnexPartUnavailable(t *testing.T) {
	proposalDoc := `
<p class="Titrearticle"><span>Article 1</span><br/>Scope</p>
<p class="Normal">Proposal article body.</p>
<p class="Annexetitre">ANNEX I Inline annex</p>
<p class="Normal">Inline annex body.</p>`

	fetcher := &fakeFetcher{xhtml: map[string]string{"52020PC0825": proposalDoc}}
	resolver := New("52020PC0825", fetcher, &fakeProperties{}, nil)

	// With no separate annex part, annexes fall back to the main text.
	units := resolver.TextUnits(false, false, true)
	if len(units) != 1 || units[0].Text != "Inline annex body." {
		t.Fatalf("expected the inline annex, got %v", units)
	}
}

func TestFullTextHTML(t *testing.T) {
	fetcher := &fakeFetcher{xhtml: map[string]string{
		"32022R2065": `<div id="art_1"><div class="content"><p>body</p></div></div>`,
	}}
	resolver := New("32022R2065", fetcher, &fakeProperties{}, nil)

	rendered := resolver.FullTextHTML()
	if rendered == "" {
		t.Fatal("expected rendered markup")
	}
	if strings.Contains(rendered, `class="content"`) {
		t.Error("content wrappers should be flattened out of the returned markup")
	}
	if !strings.Contains(rendered, `id="art_1"`) {
		t.Error("article markup missing from returned markup")
	}
}

func TestFullTextHTML_FallsBackToPlainHTML(t *testing.T) {
	fetcher := &fakeFetcher{plainHTML: map[string]string{"32022R2065": `<p>plain rendition</p>`}}
	resolver := New("32022R2065", fetcher, &fakeProperties{}, nil)

	rendered := resolver.FullTextHTML()
	if !strings.Contains(rendered, "plain rendition") {
		t.Fatalf("expected plain HTML fallback, got %q", rendered)
	}
}

func TestFullTextHTML_Unavailable(t *testing.T) {
	resolver := New("32022R2065", &fakeFetcher{}, &fakeProperties{}, nil)
	if rendered := resolver.FullTextHTML(); rendered != "" {
		t.Fatalf("expected empty string, got %q", rendered)
	}
}

func TestRelations(t *testing.T) {
	properties := &fakeProperties{properties: map[string]*cellar.WorkProperties{
		"32022R2065": {Relations: map[string][]string{
			"cites":  {"32016R0679", "", "32000L0031"},
			"amends": {"32000L0031"},
		}},
	}}
	resolver := New("32022R2065", &fakeFetcher{}, properties, nil)

	relations := resolver.Relations(true, false)
	want := []Relation{
		{SourceID: "32022R2065", Type: "cites", TargetID: "32016R0679"},
		{SourceID: "32022R2065", Type: "cites", TargetID: "32000L0031"},
		{SourceID: "32022R2065", Type: "amends", TargetID: "32000L0031"},
	}
	if !reflect.DeepEqual(relations, want) {
		t.Errorf("relations = %v, want %v", relations, want)
	}
}

func TestRelations_UnlistedTypesKept(t *testing.T) {
	properties := &fakeProperties{properties: map[string]*cellar.WorkProperties{
		"32022R2065": {Relations: map[string][]string{
			"repeals": {"32010R1060"},
			"cites":   {"32016R0679"},
		}},
	}}
	resolver := New("32022R2065", &fakeFetcher{}, properties, nil)

	relations := resolver.Relations(true, false)
	want := []Relation{
		{SourceID: "32022R2065", Type: "cites", TargetID: "32016R0679"},
		{SourceID: "32022R2065", Type: "repeals", TargetID: "32010R1060"},
	}
	if !reflect.DeepEqual(relations, want) {
		t.Errorf("relations = %v, want %v", relations, want)
	}
}

func TestRelations_Disabled(t *testing.T) {
	resolver := New("32022R2065", &fakeFetcher{}, &fakeProperties{}, nil)
	if relations := resolver.Relations(false, false); relations != nil {
		t.Fatalf("expected nil when disabled, got %v", relations)
	}
}

func TestRelations_ConsolidatedAppendsOriginal(t *testing.T) {
	consolidatedID := "02022R2065-20240217"
	properties := &fakeProperties{properties: map[string]*cellar.WorkProperties{
		consolidatedID: {Relations: map[string][]string{
			"consolidates": {"32022R2065"},
		}},
		"32022R2065": {Relations: map[string][]string{
			"cites": {"32016R0679"},
		}},
	}}
	resolver := New(consolidatedID, &fakeFetcher{}, properties, nil)

	relations := resolver.Relations(true, true)
	want := []Relation{
		{SourceID: consolidatedID, Type: "consolidates", TargetID: "32022R2065"},
		{SourceID: "32022R2065", Type: "cites", TargetID: "32016R0679"},
	}
	if !reflect.DeepEqual(relations, want) {
		t.Errorf("relations = %v, want %v", relations, want)
	}
}

func TestRelations_LookupFailure(t *testing.T) {
	resolver := New("32022R2065", &fakeFetcher{}, &fakeProperties{}, nil)
	if relations := resolver.Relations(true, false); relations != nil {
		t.Fatalf("expected nil on lookup failure, got %v", relations)
	}
}

func TestOriginalCelexID(t *testing.T) {
	tests := []struct {
		name    string
		celexID string
		want    string
	}{
		{name: "consolidated maps to sector 3", celexID: "02022R2065-20240217", want: "32022R2065"},
		{name: "regular identifier unchanged", celexID: "32022R2065", want: "32022R2065"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := New(tt.celexID, &fakeFetcher{}, &fakeProperties{}, nil)
			if got := resolver.OriginalCelexID(); got != tt.want {
				t.Errorf("OriginalCelexID() = %q, want %q", got, tt.want)
			}
		})
	}
}
