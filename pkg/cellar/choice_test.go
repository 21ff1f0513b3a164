package cellar

import (
	"testing"
)

const multipleChoicesHTML = `
<html><body>
<ul>
  <li title="item">
    <a href="http://publications.europa.eu/resource/cellar/abc.0006.03/DOC_1">doc1</a>
    <ul>
      <li title="stream_name">L_2022277EN.01000101.doc.xhtml</li>
      <li title="stream_order">1</li>
    </ul>
  </li>
  <li title="item">
    <a href="http://publications.europa.eu/resource/cellar/abc.0006.03/DOC_2">doc2</a>
    <ul>
      <li title="stream_name">L_2022277EN.01010201.ACT.xhtml</li>
      <li title="stream_order">2</li>
    </ul>
  </li>
  <li title="item">
    <a href="http://publications.europa.eu/resource/cellar/abc.0006.03/DOC_3">doc3</a>
    <ul>
      <li title="stream_name">L_2022277EN.01020301.annex.xhtml</li>
    </ul>
  </li>
</ul>
</body></html>`

func TestParseMultipleChoices(t *testing.T) {
	candidates, err := parseMultipleChoices([]byte(multipleChoicesHTML))
	if err != nil {
		t.Fatalf("parseMultipleChoices returned error: %v", err)
	}

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	if candidates[0].StreamName != "L_2022277EN.01000101.doc.xhtml" {
		t.Errorf("unexpected first stream name: %q", candidates[0].StreamName)
	}
	if candidates[0].StreamOrder != 1 {
		t.Errorf("expected stream order 1, got %d", candidates[0].StreamOrder)
	}
	if candidates[2].StreamOrder != defaultStreamOrder {
		t.Errorf("candidate without declared order should default to %d, got %d",
			defaultStreamOrder, candidates[2].StreamOrder)
	}
}

func TestParseMultipleChoices_Empty(t *testing.T) {
	candidates, err := parseMultipleChoices([]byte("<html><body><p>nothing here</p></body></html>"))
	if err != nil {
		t.Fatalf("parseMultipleChoices returned error: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestSelectRepresentation(t *testing.T) {
	tests := []struct {
		name            string
		candidates      []representation
		include         []string
		exclude         []string
		wantURL         string
		wantExcludedAll bool
		wantErr         bool
	}{
		{
			name: "include keyword beats lower stream order",
			candidates: []representation{
				{URL: "u1", StreamName: "L_2022.doc.xhtml", StreamOrder: 1},
				{URL: "u2", StreamName: "L_2022.ACT.xhtml", StreamOrder: 2},
			},
			include: actIncludeKeywords,
			exclude: actExcludeKeywords,
			wantURL: "u2",
		},
		{
			name: "excluded candidates are dropped",
			candidates: []representation{
				{URL: "u1", StreamName: "L_2022.annex.xhtml", StreamOrder: 1},
				{URL: "u2", StreamName: "L_2022.doc.xhtml", StreamOrder: 2},
			},
			include: actIncludeKeywords,
			exclude: actExcludeKeywords,
			wantURL: "u2",
		},
		{
			name: "ties broken by ascending stream order",
			candidates: []representation{
				{URL: "u2", StreamName: "part2", StreamOrder: 2},
				{URL: "u1", StreamName: "part1", StreamOrder: 1},
			},
			include: actIncludeKeywords,
			exclude: actExcludeKeywords,
			wantURL: "u1",
		},
		{
			name: "all excluded falls back to first candidate",
			candidates: []representation{
				{URL: "u1", StreamName: "cover.xhtml", StreamOrder: 1},
				{URL: "u2", StreamName: "corrigendum.xhtml", StreamOrder: 2},
			},
			include:         actIncludeKeywords,
			exclude:         actExcludeKeywords,
			wantURL:         "u1",
			wantExcludedAll: true,
		},
		{
			name: "annex keywords invert the act selection",
			candidates: []representation{
				{URL: "u1", StreamName: "L_2022.ACT.xhtml", StreamOrder: 1},
				{URL: "u2", StreamName: "L_2022.annex.xhtml", StreamOrder: 2},
			},
			include: annexIncludeKeywords,
			exclude: annexExcludeKeywords,
			wantURL: "u2",
		},
		{
			name: "keyword matching is case insensitive",
			candidates: []representation{
				{URL: "u1", StreamName: "L_2022.Annexe.xhtml", StreamOrder: 1},
				{URL: "u2", StreamName: "L_2022.doc.xhtml", StreamOrder: 2},
			},
			include: actIncludeKeywords,
			exclude: actExcludeKeywords,
			wantURL: "u2",
		},
		{
			name:    "no candidates is an error",
			include: actIncludeKeywords,
			exclude: actExcludeKeywords,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, excludedAll, err := selectRepresentation(tt.candidates, tt.include, tt.exclude)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if url != tt.wantURL {
				t.Errorf("selected %q, want %q", url, tt.wantURL)
			}
			if excludedAll != tt.wantExcludedAll {
				t.Errorf("excludedAll = %v, want %v", excludedAll, tt.wantExcludedAll)
			}
		})
	}
}
