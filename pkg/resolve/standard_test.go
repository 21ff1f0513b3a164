package resolve

import (
	"strings"
	"testing"
)

const standardDoc = `
<html><body>
<div class="eli-main-title"><p>Regulation (EU) 2022/2065 of 19 October 2022 on a Single Market For Digital Services</p></div>
<div id="rct_1"><p>(1) Information society services have become important.</p></div>
<div id="rct_2"><p>(2) Member States are increasingly introducing laws.</p></div>
<div id="art_1">
  <p class="oj-ti-art">Article 1</p>
  <div class="eli-title"><p>Subject matter</p></div>
  <p>This Regulation lays down harmonised rules.</p>
  <p>It establishes conditions for intermediary services.</p>
</div>
<div id="art_1_para_2"><p>Nested paragraph fragment.</p></div>
<div id="art_2a">
  <p class="oj-ti-art">Article 2a</p>
  <p>Inserted article body.</p>
</div>
<div id="anx_I">
  <p class="oj-doc-ti">ANNEX I</p>
  <p class="oj-doc-ti">Correlation table</p>
  <p>Annex content here.</p>
</div>
<div id="anx_1_part_2"><p>Skipped fragment.</p></div>
</body></html>`

func TestExtractStandardRecitals(t *testing.T) {
	resolver := New("32022R2065", nil, nil, nil)
	units := resolver.extractStandardRecitals(mustParseDoc(t, standardDoc))

	if len(units) != 2 {
		t.Fatalf("expected 2 recitals, got %d", len(units))
	}
	if units[0].Number != "1" || units[1].Number != "2" {
		t.Errorf("recital numbers = %q, %q", units[0].Number, units[1].Number)
	}
	if units[0].Type != UnitTypeRecital {
		t.Errorf("Type = %q, want %q", units[0].Type, UnitTypeRecital)
	}
	if units[0].CelexID != "32022R2065" {
		t.Errorf("CelexID = %q", units[0].CelexID)
	}
	if units[0].Text != "(1) Information society services have become important." {
		t.Errorf("recital text = %q", units[0].Text)
	}
}

func TestExtractStandardArticles(t *testing.T) {
	resolver := New("32022R2065", nil, nil, nil)
	units := resolver.extractStandardArticles(mustParseDoc(t, standardDoc))

	if len(units) != 2 {
		t.Fatalf("expected 2 articles (fragment ids excluded), got %d", len(units))
	}

	first := units[0]
	if first.Number != "1" {
		t.Errorf("Number = %q, want %q", first.Number, "1")
	}
	if first.Title != "Subject matter" {
		t.Errorf("Title = %q, want %q", first.Title, "Subject matter")
	}
	want := "This Regulation lays down harmonised rules. It establishes conditions for intermediary services."
	if first.Text != want {
		t.Errorf("Text = %q, want %q", first.Text, want)
	}

	second := units[1]
	if second.Number != "2a" {
		t.Errorf("Number = %q, want %q", second.Number, "2a")
	}
	if second.Title != "" {
		t.Errorf("Title = %q, want empty", second.Title)
	}
	if second.Text != "Inserted article body." {
		t.Errorf("Text = %q", second.Text)
	}
}

func TestExtractStandardArticles_HeadingExcludedFromBody(t *testing.T) {
	resolver := New("32022R2065", nil, nil, nil)
	units := resolver.extractStandardArticles(mustParseDoc(t, standardDoc))

	for _, unit := range units {
		if strings.Contains(unit.Text, "Article 1") || strings.Contains(unit.Text, "Subject matter") {
			t.Errorf("heading or title leaked into body of article %s: %q", unit.Number, unit.Text)
		}
	}
}

func TestExtractStandardAnnexes(t *testing.T) {
	resolver := New("32022R2065", nil, nil, nil)
	units := resolver.extractStandardAnnexes(mustParseDoc(t, standardDoc))

	if len(units) != 1 {
		t.Fatalf("expected 1 annex (fragment ids excluded), got %d", len(units))
	}

	annex := units[0]
	if annex.Number != "I" {
		t.Errorf("Number = %q, want %q", annex.Number, "I")
	}
	if annex.Title != "Correlation table" {
		t.Errorf("Title = %q, want %q", annex.Title, "Correlation table")
	}
	if annex.Text != "Annex content here." {
		t.Errorf("Text = %q", annex.Text)
	}
}
