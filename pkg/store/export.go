package store

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"gorm.io/gorm"
)

// exportChunkSize bounds how many rows are read per database round trip
// during export. Rows carrying full document markup are read in smaller
// chunks.
const (
	exportChunkSize         = 1000
	exportChunkSizeFullText = 100
)

// workRow is the flat export row for works. DateAdopted is serialized as
// YYYY-MM-DD, or empty when unknown.
type workRow struct {
	CelexID      string `parquet:"celex_id"`
	DocumentType string `parquet:"document_type"`
	Title        string `parquet:"title"`
	DateAdopted  string `parquet:"date_adopted"`
	Language     string `parquet:"language"`
}

// workRowFullText is workRow plus the raw document markup.
type workRowFullText struct {
	CelexID      string `parquet:"celex_id"`
	DocumentType string `parquet:"document_type"`
	Title        string `parquet:"title"`
	DateAdopted  string `parquet:"date_adopted"`
	Language     string `parquet:"language"`
	FullTextHTML string `parquet:"full_text_html"`
}

type textUnitRow struct {
	ID      int64  `parquet:"id"`
	CelexID string `parquet:"celex_id"`
	Type    string `parquet:"type"`
	Number  string `parquet:"number"`
	Title   string `parquet:"title"`
	Text    string `parquet:"text"`
}

type relationRow struct {
	ID           int64  `parquet:"id"`
	CelexSource  string `parquet:"celex_source"`
	CelexTarget  string `parquet:"celex_target"`
	RelationType string `parquet:"relation_type"`
}

func mapWorkRow(work Work) workRow {
	date := ""
	if work.DateAdopted != nil {
		date = work.DateAdopted.Format("2006-01-02")
	}
	return workRow{
		CelexID:      work.CelexID,
		DocumentType: work.DocumentType,
		Title:        work.Title,
		DateAdopted:  date,
		Language:     work.Language,
	}
}

// ExportWorksCSV writes every work row to a CSV file. Full document
// markup is included as a trailing column only when requested.
func (store *Store) ExportWorksCSV(path string, includeFullText bool) error {
	header := []string{"celex_id", "document_type", "title", "date_adopted", "language"}
	if includeFullText {
		header = append(header, "full_text_html")
	}
	chunkSize := exportChunkSize
	if includeFullText {
		chunkSize = exportChunkSizeFullText
	}

	return store.exportCSV(path, header, func(write func([]string) error) error {
		var works []Work
		result := store.db.FindInBatches(&works, chunkSize, func(_ *gorm.DB, _ int) error {
			for _, work := range works {
				row := mapWorkRow(work)
				record := []string{row.CelexID, row.DocumentType, row.Title, row.DateAdopted, row.Language}
				if includeFullText {
					record = append(record, work.FullTextHTML)
				}
				if err := write(record); err != nil {
					return err
				}
			}
			return nil
		})
		return result.Error
	})
}

// ExportTextUnitsCSV writes every text unit row to a CSV file.
func (store *Store) ExportTextUnitsCSV(path string) error {
	header := []string{"id", "celex_id", "type", "number", "title", "text"}
	return store.exportCSV(path, header, func(write func([]string) error) error {
		var units []TextUnit
		result := store.db.FindInBatches(&units, exportChunkSize, func(_ *gorm.DB, _ int) error {
			for _, unit := range units {
				record := []string{
					fmt.Sprintf("%d", unit.ID), unit.CelexID, unit.Type, unit.Number, unit.Title, unit.Text,
				}
				if err := write(record); err != nil {
					return err
				}
			}
			return nil
		})
		return result.Error
	})
}

// ExportRelationsCSV writes every relation row to a CSV file.
func (store *Store) ExportRelationsCSV(path string) error {
	header := []string{"id", "celex_source", "celex_target", "relation_type"}
	return store.exportCSV(path, header, func(write func([]string) error) error {
		var relations []Relation
		result := store.db.FindInBatches(&relations, exportChunkSize, func(_ *gorm.DB, _ int) error {
			for _, relation := range relations {
				record := []string{
					fmt.Sprintf("%d", relation.ID), relation.CelexSource, relation.CelexTarget, relation.RelationType,
				}
				if err := write(record); err != nil {
					return err
				}
			}
			return nil
		})
		return result.Error
	})
}

// exportCSV handles file lifecycle and header writing for CSV exports.
func (store *Store) exportCSV(path string, header []string, writeRows func(write func([]string) error) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := writeRows(writer.Write); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", path, err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	store.log.Debugw("exported CSV file", "path", path)
	return nil
}

// ExportWorksParquet writes every work row to a Parquet file.
func (store *Store) ExportWorksParquet(path string, includeFullText bool) error {
	if includeFullText {
		return exportParquet(store, path, exportChunkSizeFullText, func(work Work) workRowFullText {
			row := mapWorkRow(work)
			return workRowFullText{
				CelexID:      row.CelexID,
				DocumentType: row.DocumentType,
				Title:        row.Title,
				DateAdopted:  row.DateAdopted,
				Language:     row.Language,
				FullTextHTML: work.FullTextHTML,
			}
		})
	}
	return exportParquet(store, path, exportChunkSize, mapWorkRow)
}

// ExportTextUnitsParquet writes every text unit row to a Parquet file.
func (store *Store) ExportTextUnitsParquet(path string) error {
	return exportParquet(store, path, exportChunkSize, func(unit TextUnit) textUnitRow {
		return textUnitRow{
			ID:      int64(unit.ID),
			CelexID: unit.CelexID,
			Type:    unit.Type,
			Number:  unit.Number,
			Title:   unit.Title,
			Text:    unit.Text,
		}
	})
}

// ExportRelationsParquet writes every relation row to a Parquet file.
func (store *Store) ExportRelationsParquet(path string) error {
	return exportParquet(store, path, exportChunkSize, func(relation Relation) relationRow {
		return relationRow{
			ID:           int64(relation.ID),
			CelexSource:  relation.CelexSource,
			CelexTarget:  relation.CelexTarget,
			RelationType: relation.RelationType,
		}
	})
}

// exportParquet streams one table through a row mapper into a Parquet
// file, chunked to bound memory.
func exportParquet[M any, R any](store *Store, path string, chunkSize int, mapRow func(M) R) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[R](file)

	var records []M
	result := store.db.FindInBatches(&records, chunkSize, func(_ *gorm.DB, _ int) error {
		rows := make([]R, 0, len(records))
		for _, record := range records {
			rows = append(rows, mapRow(record))
		}
		if _, err := writer.Write(rows); err != nil {
			return err
		}
		return nil
	})
	if result.Error != nil {
		return fmt.Errorf("failed to write rows to %s: %w", path, result.Error)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	store.log.Debugw("exported Parquet file", "path", path)
	return nil
}
