package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// writeReadme generates a README.md describing the finished dataset: its
// metadata, how documents were selected, record counts, and the files the
// build produced.
func (pipeline *Pipeline) writeReadme() error {
	workCount, err := pipeline.store.CountWorks()
	if err != nil {
		return err
	}
	unitCount, err := pipeline.store.CountTextUnits()
	if err != nil {
		return err
	}
	relationCount, err := pipeline.store.CountRelations()
	if err != nil {
		return err
	}

	var readme strings.Builder
	metadata := pipeline.config.Metadata

	fmt.Fprintf(&readme, "# %s\n\n", metadata.ProjectName)
	if metadata.Description != "" {
		fmt.Fprintf(&readme, "%s\n\n", metadata.Description)
	}
	fmt.Fprintf(&readme, "## Dataset Information\n\n")
	if metadata.Author != "" {
		fmt.Fprintf(&readme, "- **Author:** %s\n", metadata.Author)
	}
	fmt.Fprintf(&readme, "- **Created:** %s\n", metadata.DateCreated.Format("2006-01-02"))
	fmt.Fprintf(&readme, "- **Version:** %s\n", metadata.Version)
	fmt.Fprintf(&readme, "- **Generated:** %s\n\n", time.Now().Format("2006-01-02"))

	pipeline.describeSelection(&readme)
	pipeline.describeStatistics(&readme, workCount, unitCount, relationCount)
	pipeline.describeProcessing(&readme)
	pipeline.describeFiles(&readme)

	return os.WriteFile(pipeline.outputPath("README.md"), []byte(readme.String()), 0o644)
}

func (pipeline *Pipeline) describeSelection(readme *strings.Builder) {
	selection := pipeline.config.Data
	fmt.Fprintf(readme, "## Document Selection\n\n")
	switch selection.Mode {
	case ModeFixed:
		fmt.Fprintf(readme, "Documents were selected from a fixed list.\n\n")
		if len(selection.CelexIDs) > 0 {
			fmt.Fprintf(readme, "- **CELEX identifiers:** %s\n", strings.Join(selection.CelexIDs, ", "))
		}
		if len(selection.ProcedureNumbers) > 0 {
			fmt.Fprintf(readme, "- **Procedure numbers:** %s\n", strings.Join(selection.ProcedureNumbers, ", "))
		}
	case ModeDescriptive:
		fmt.Fprintf(readme, "Documents were selected by a descriptive query against CELLAR.\n\n")
		fmt.Fprintf(readme, "- **Document types:** %s\n", strings.Join(selection.DocumentTypes, ", "))
		fmt.Fprintf(readme, "- **Date range:** %s to %s\n",
			selection.StartDate.Format("2006-01-02"), selection.EndDate.Format("2006-01-02"))
		if len(selection.FilterKeywords) > 0 {
			fmt.Fprintf(readme, "- **EuroVoc filter keywords:** %s\n", strings.Join(selection.FilterKeywords, ", "))
		}
		fmt.Fprintf(readme, "- **Corrigenda included:** %t\n", selection.IncludeCorrigenda)
		fmt.Fprintf(readme, "- **Consolidated texts included:** %t\n", selection.IncludeConsolidatedTexts)
		fmt.Fprintf(readme, "- **National transpositions included:** %t\n", selection.IncludeNationalTranspositions)
	}
	fmt.Fprintln(readme)
}

func (pipeline *Pipeline) describeStatistics(readme *strings.Builder, workCount, unitCount, relationCount int64) {
	fmt.Fprintf(readme, "## Statistics\n\n")
	fmt.Fprintf(readme, "- **Documents:** %d\n", workCount)
	fmt.Fprintf(readme, "- **Text units:** %d\n", unitCount)
	fmt.Fprintf(readme, "- **Relations:** %d\n", relationCount)
	if workCount > 0 {
		fmt.Fprintf(readme, "- **Average text units per document:** %.1f\n", float64(unitCount)/float64(workCount))
		fmt.Fprintf(readme, "- **Average relations per document:** %.1f\n", float64(relationCount)/float64(workCount))
	}
	if pipeline.failed > 0 {
		fmt.Fprintf(readme, "- **Failed documents:** %d\n", pipeline.failed)
	}
	fmt.Fprintln(readme)
}

func (pipeline *Pipeline) describeProcessing(readme *strings.Builder) {
	processing := pipeline.config.Processing
	fmt.Fprintf(readme, "## Processing Settings\n\n")
	fmt.Fprintf(readme, "- **Recitals extracted:** %t\n", processing.TextExtraction.IncludeRecitals)
	fmt.Fprintf(readme, "- **Articles extracted:** %t\n", processing.TextExtraction.IncludeArticles)
	fmt.Fprintf(readme, "- **Annexes extracted:** %t\n", processing.TextExtraction.IncludeAnnexes)
	fmt.Fprintf(readme, "- **Relations extracted:** %t\n", processing.RelationsExtraction.IncludeRelations)
	fmt.Fprintf(readme, "- **Raw full text exported:** %t\n\n", pipeline.config.Output.IncludeRawFullText)
}

func (pipeline *Pipeline) describeFiles(readme *strings.Builder) {
	fmt.Fprintf(readme, "## Files\n\n")
	fmt.Fprintf(readme, "- `%s`: SQLite database with the complete dataset\n", DatabaseFileName)
	for _, format := range pipeline.config.Output.Formats {
		fmt.Fprintf(readme, "- `works.%[1]s`, `text_units.%[1]s`, `relations.%[1]s`: dataset tables in %[1]s format\n", format)
	}
	fmt.Fprintln(readme)
	fmt.Fprintf(readme, "The `works` table holds one row per document (CELEX identifier, type, title, "+
		"adoption date, language). The `text_units` table holds the extracted recitals, articles, "+
		"and annexes. The `relations` table holds directed typed relations between documents.\n")
}
