package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	testStore, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := testStore.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return testStore
}

func sampleDate() *time.Time {
	date := time.Date(2022, time.October, 19, 0, 0, 0, 0, time.UTC)
	return &date
}

func seedStore(t *testing.T, testStore *Store) {
	t.Helper()
	works := []Work{
		{
			CelexID:      "32022R2065",
			DocumentType: "regulation",
			Title:        "Digital Services Act",
			DateAdopted:  sampleDate(),
			Language:     "eng",
			FullTextHTML: "<html><body>full text</body></html>",
		},
		{
			CelexID:      "32016R0679",
			DocumentType: "regulation",
			Title:        "General Data Protection Regulation",
			Language:     "eng",
		},
	}
	if err := testStore.SaveWorks(works); err != nil {
		t.Fatalf("SaveWorks failed: %v", err)
	}

	units := []TextUnit{
		{CelexID: "32022R2065", Type: "recital", Number: "1", Text: "First recital."},
		{CelexID: "32022R2065", Type: "article", Number: "1", Title: "Subject matter", Text: "Article body."},
		{CelexID: "32016R0679", Type: "article", Number: "5", Title: "Principles", Text: "Principles body."},
	}
	if err := testStore.SaveTextUnits(units); err != nil {
		t.Fatalf("SaveTextUnits failed: %v", err)
	}

	relations := []Relation{
		{CelexSource: "32022R2065", CelexTarget: "32016R0679", RelationType: "cites"},
	}
	if err := testStore.SaveRelations(relations); err != nil {
		t.Fatalf("SaveRelations failed: %v", err)
	}
}

func TestSaveAndCount(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	works, err := testStore.CountWorks()
	if err != nil || works != 2 {
		t.Errorf("CountWorks = %d, %v; want 2", works, err)
	}
	units, err := testStore.CountTextUnits()
	if err != nil || units != 3 {
		t.Errorf("CountTextUnits = %d, %v; want 3", units, err)
	}
	relations, err := testStore.CountRelations()
	if err != nil || relations != 1 {
		t.Errorf("CountRelations = %d, %v; want 1", relations, err)
	}
}

func TestSaveEmptySlicesAreNoOps(t *testing.T) {
	testStore := newTestStore(t)
	if err := testStore.SaveWorks(nil); err != nil {
		t.Errorf("SaveWorks(nil) = %v", err)
	}
	if err := testStore.SaveTextUnits(nil); err != nil {
		t.Errorf("SaveTextUnits(nil) = %v", err)
	}
	if err := testStore.SaveRelations(nil); err != nil {
		t.Errorf("SaveRelations(nil) = %v", err)
	}
}

func TestSaveWorks_DuplicatePrimaryKeyFails(t *testing.T) {
	testStore := newTestStore(t)
	work := Work{CelexID: "32022R2065", DocumentType: "regulation", Title: "t", Language: "eng"}
	if err := testStore.SaveWorks([]Work{work}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := testStore.SaveWorks([]Work{work}); err == nil {
		t.Fatal("expected primary key violation on duplicate save")
	}
}

func TestHasWork(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	found, err := testStore.HasWork("32022R2065")
	if err != nil || !found {
		t.Errorf("HasWork(existing) = %v, %v; want true", found, err)
	}
	found, err = testStore.HasWork("31990L0000")
	if err != nil || found {
		t.Errorf("HasWork(missing) = %v, %v; want false", found, err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestExportWorksCSV(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	path := filepath.Join(t.TempDir(), "works.csv")
	if err := testStore.ExportWorksCSV(path, false); err != nil {
		t.Fatalf("ExportWorksCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	wantHeader := "celex_id,document_type,title,date_adopted,language"
	if strings.Join(rows[0], ",") != wantHeader {
		t.Errorf("header = %v", rows[0])
	}

	byID := map[string][]string{rows[1][0]: rows[1], rows[2][0]: rows[2]}
	dsa := byID["32022R2065"]
	if dsa == nil {
		t.Fatal("missing 32022R2065 row")
	}
	if dsa[3] != "2022-10-19" {
		t.Errorf("date_adopted = %q, want 2022-10-19", dsa[3])
	}
	gdpr := byID["32016R0679"]
	if gdpr == nil || gdpr[3] != "" {
		t.Errorf("missing date should export empty, got %v", gdpr)
	}
}

func TestExportWorksCSV_WithFullText(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	path := filepath.Join(t.TempDir(), "works_full.csv")
	if err := testStore.ExportWorksCSV(path, true); err != nil {
		t.Fatalf("ExportWorksCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows[0]) != 6 || rows[0][5] != "full_text_html" {
		t.Fatalf("expected full_text_html column, header = %v", rows[0])
	}
	found := false
	for _, row := range rows[1:] {
		if row[0] == "32022R2065" && strings.Contains(row[5], "full text") {
			found = true
		}
	}
	if !found {
		t.Error("full text content missing from export")
	}
}

func TestExportTextUnitsCSV(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	path := filepath.Join(t.TempDir(), "units.csv")
	if err := testStore.ExportTextUnitsCSV(path); err != nil {
		t.Fatalf("ExportTextUnitsCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,celex_id,type,number,title,text" {
		t.Errorf("header = %v", rows[0])
	}
}

func TestExportRelationsCSV(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	path := filepath.Join(t.TempDir(), "relations.csv")
	if err := testStore.ExportRelationsCSV(path); err != nil {
		t.Fatalf("ExportRelationsCSV failed: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 row, got %d", len(rows))
	}
	if rows[1][1] != "32022R2065" || rows[1][2] != "32016R0679" || rows[1][3] != "cites" {
		t.Errorf("relation row = %v", rows[1])
	}
}

func TestExportParquet(t *testing.T) {
	testStore := newTestStore(t)
	seedStore(t, testStore)

	dir := t.TempDir()
	exports := []struct {
		name string
		run  func(path string) error
	}{
		{name: "works.parquet", run: func(p string) error { return testStore.ExportWorksParquet(p, false) }},
		{name: "works_full.parquet", run: func(p string) error { return testStore.ExportWorksParquet(p, true) }},
		{name: "units.parquet", run: testStore.ExportTextUnitsParquet},
		{name: "relations.parquet", run: testStore.ExportRelationsParquet},
	}

	for _, export := range exports {
		t.Run(export.name, func(t *testing.T) {
			path := filepath.Join(dir, export.name)
			if err := export.run(path); err != nil {
				t.Fatalf("export failed: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat failed: %v", err)
			}
			if info.Size() == 0 {
				t.Error("exported file is empty")
			}
		})
	}
}
