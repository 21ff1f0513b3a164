package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coolbeans/cellarbuild/pkg/cellar"
	"github.com/coolbeans/cellarbuild/pkg/resolve"
	"github.com/coolbeans/cellarbuild/pkg/store"
)

// DatabaseFileName is the SQLite file created inside the output directory.
const DatabaseFileName = "cellarbuild.db"

// Discoverer answers the identifier discovery queries a build needs. It is
// satisfied by *cellar.Client.
type Discoverer interface {
	CelexIDsByProcedure(procedureNumbers []string) ([]string, error)
	CelexIDsByDescriptor(descriptor cellar.DescriptiveQuery) ([]string, error)
	EuroVocLabels(keywords []string) (map[string]map[string][]string, error)
}

// Pipeline runs a full dataset build from a validated configuration.
type Pipeline struct {
	config     *Config
	fetcher    resolve.Fetcher
	properties resolve.PropertyResolver
	discoverer Discoverer
	store      *store.Store
	log        *zap.SugaredLogger
	outputDir  string

	// stdin and stdout serve the interactive EuroVoc review prompt.
	stdin  io.Reader
	stdout io.Writer

	succeeded int
	failed    int
}

// New builds a Pipeline from a validated configuration. It creates the
// output directory and opens the dataset database inside it.
func New(config *Config, log *zap.SugaredLogger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	outputDir, err := filepath.Abs(config.Output.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	dataStore, err := store.Open(filepath.Join(outputDir, DatabaseFileName), log)
	if err != nil {
		return nil, err
	}

	client := cellar.NewClient(cellar.Config{Logger: log})
	return &Pipeline{
		config:     config,
		fetcher:    client,
		properties: client,
		discoverer: client,
		store:      dataStore,
		log:        log,
		outputDir:  outputDir,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
	}, nil
}

// Close releases the underlying database.
func (pipeline *Pipeline) Close() error {
	return pipeline.store.Close()
}

// Run executes the build: identifier selection, document processing,
// export, and README generation.
func (pipeline *Pipeline) Run(ctx context.Context) error {
	pipeline.log.Infow("starting dataset build",
		"project", pipeline.config.Metadata.ProjectName,
		"mode", pipeline.config.Data.Mode,
		"output_dir", pipeline.outputDir)

	celexIDs, err := pipeline.collectIdentifiers()
	if err != nil {
		return err
	}
	if len(celexIDs) == 0 {
		return fmt.Errorf("selection matched no documents")
	}
	pipeline.log.Infow("selected documents", "count", len(celexIDs))

	if pipeline.config.Processing.EnableParallelProcessing && len(celexIDs) > 1 {
		err = pipeline.runParallel(ctx, celexIDs)
	} else {
		err = pipeline.runSequential(ctx, celexIDs)
	}
	if err != nil {
		return err
	}
	pipeline.log.Infow("document processing finished",
		"succeeded", pipeline.succeeded, "failed", pipeline.failed)

	if err := pipeline.exportResults(); err != nil {
		return err
	}
	if err := pipeline.writeReadme(); err != nil {
		return err
	}

	pipeline.log.Infow("dataset build complete", "output_dir", pipeline.outputDir)
	return nil
}

// collectIdentifiers resolves the configured selection into a concrete
// list of CELEX identifiers.
func (pipeline *Pipeline) collectIdentifiers() ([]string, error) {
	switch pipeline.config.Data.Mode {
	case ModeFixed:
		return pipeline.collectFixed()
	case ModeDescriptive:
		return pipeline.collectDescriptive()
	default:
		return nil, fmt.Errorf("unknown selection mode %q", pipeline.config.Data.Mode)
	}
}

func (pipeline *Pipeline) collectFixed() ([]string, error) {
	seen := make(map[string]bool)
	var celexIDs []string
	for _, id := range pipeline.config.Data.CelexIDs {
		if !seen[id] {
			seen[id] = true
			celexIDs = append(celexIDs, id)
		}
	}

	if len(pipeline.config.Data.ProcedureNumbers) > 0 {
		resolved, err := pipeline.discoverer.CelexIDsByProcedure(pipeline.config.Data.ProcedureNumbers)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve procedure numbers: %w", err)
		}
		for _, id := range resolved {
			if !seen[id] {
				seen[id] = true
				celexIDs = append(celexIDs, id)
			}
		}
	}
	return celexIDs, nil
}

func (pipeline *Pipeline) collectDescriptive() ([]string, error) {
	eurovocURIs, err := pipeline.reviewEuroVocConcepts()
	if err != nil {
		return nil, err
	}

	selection := pipeline.config.Data
	descriptor := cellar.DescriptiveQuery{
		StartDate:                     selection.StartDate,
		EndDate:                       selection.EndDate,
		EuroVocURIs:                   eurovocURIs,
		IncludeRegulations:            selection.IncludesDocumentType("regulation"),
		IncludeDirectives:             selection.IncludesDocumentType("directive"),
		IncludeDecisions:              selection.IncludesDocumentType("decision"),
		IncludeProposals:              selection.IncludesDocumentType("proposal"),
		IncludeCorrigenda:             selection.IncludeCorrigenda,
		IncludeConsolidatedTexts:      selection.IncludeConsolidatedTexts,
		IncludeNationalTranspositions: selection.IncludeNationalTranspositions,
	}
	celexIDs, err := pipeline.discoverer.CelexIDsByDescriptor(descriptor)
	if err != nil {
		return nil, fmt.Errorf("descriptive selection failed: %w", err)
	}
	return celexIDs, nil
}

// documentResult carries everything resolved for one document.
type documentResult struct {
	work      store.Work
	textUnits []store.TextUnit
	relations []store.Relation
}

// processDocument resolves one document into its work record, text units,
// and relations. Retrieval failures degrade individual fields rather than
// failing the document.
func (pipeline *Pipeline) processDocument(celexID string) documentResult {
	resolver := resolve.New(celexID, pipeline.fetcher, pipeline.properties, pipeline.log)
	processing := pipeline.config.Processing

	result := documentResult{
		work: store.Work{
			CelexID:      celexID,
			DocumentType: resolver.DocumentType(),
			Title:        resolver.Title(),
			DateAdopted:  resolver.DateAdopted(),
			Language:     cellar.DefaultLanguage,
			FullTextHTML: resolver.FullTextHTML(),
		},
	}

	extraction := processing.TextExtraction
	for _, unit := range resolver.TextUnits(extraction.IncludeRecitals, extraction.IncludeArticles, extraction.IncludeAnnexes) {
		result.textUnits = append(result.textUnits, store.TextUnit{
			CelexID: unit.CelexID,
			Type:    unit.Type,
			Number:  unit.Number,
			Title:   unit.Title,
			Text:    unit.Text,
		})
	}

	relations := processing.RelationsExtraction
	for _, relation := range resolver.Relations(relations.IncludeRelations, relations.IncludeOriginalActRelationsForConsolidatedTexts) {
		result.relations = append(result.relations, store.Relation{
			CelexSource:  relation.SourceID,
			CelexTarget:  relation.TargetID,
			RelationType: relation.Type,
		})
	}

	return result
}

// runSequential processes documents one at a time, saving each as it
// completes. A failed save is logged and counted, not fatal.
func (pipeline *Pipeline) runSequential(ctx context.Context, celexIDs []string) error {
	for _, celexID := range celexIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := pipeline.processDocument(celexID)
		if err := pipeline.saveResults([]documentResult{result}); err != nil {
			pipeline.log.Warnw("failed to save document", "celex_id", celexID, "error", err)
			pipeline.failed++
			continue
		}
		pipeline.succeeded++
	}
	return nil
}

// runParallel processes documents with a bounded worker pool and saves
// them in batches sized to the workload.
func (pipeline *Pipeline) runParallel(ctx context.Context, celexIDs []string) error {
	workers := pipeline.config.Processing.MaxWorkers
	if workers > len(celexIDs) {
		workers = len(celexIDs)
	}
	batchSize := computeBatchSize(len(celexIDs), workers)
	pipeline.log.Infow("processing in parallel", "workers", workers, "batch_size", batchSize)

	results := make(chan documentResult)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		batch := make([]documentResult, 0, batchSize)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := pipeline.saveResults(batch); err != nil {
				pipeline.log.Warnw("failed to save batch", "size", len(batch), "error", err)
				pipeline.failed += len(batch)
			} else {
				pipeline.succeeded += len(batch)
			}
			batch = batch[:0]
		}
		for result := range results {
			batch = append(batch, result)
			if len(batch) >= batchSize {
				flush()
			}
		}
		flush()
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, celexID := range celexIDs {
		celexID := celexID
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			select {
			case results <- pipeline.processDocument(celexID):
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
	}

	err := group.Wait()
	close(results)
	<-collectorDone
	return err
}

// saveResults persists a batch of processed documents.
func (pipeline *Pipeline) saveResults(batch []documentResult) error {
	works := make([]store.Work, 0, len(batch))
	var textUnits []store.TextUnit
	var relations []store.Relation
	for _, result := range batch {
		works = append(works, result.work)
		textUnits = append(textUnits, result.textUnits...)
		relations = append(relations, result.relations...)
	}

	if err := pipeline.store.SaveWorks(works); err != nil {
		return err
	}
	if err := pipeline.store.SaveTextUnits(textUnits); err != nil {
		return err
	}
	return pipeline.store.SaveRelations(relations)
}

// computeBatchSize picks a save batch size proportional to the per-worker
// share of the workload, clamped to [50, 500].
func computeBatchSize(documentCount, workers int) int {
	chunk := (documentCount + workers*4 - 1) / (workers * 4)
	if chunk < 1 {
		chunk = 1
	}
	if chunk > 100 {
		chunk = 100
	}
	batch := chunk * 2
	if batch < 50 {
		batch = 50
	}
	if batch > 500 {
		batch = 500
	}
	return batch
}

// exportResults writes the dataset tables in every configured format.
func (pipeline *Pipeline) exportResults() error {
	includeFullText := pipeline.config.Output.IncludeRawFullText
	for _, format := range pipeline.config.Output.Formats {
		switch format {
		case FormatCSV:
			if err := pipeline.store.ExportWorksCSV(pipeline.outputPath("works.csv"), includeFullText); err != nil {
				return err
			}
			if err := pipeline.store.ExportTextUnitsCSV(pipeline.outputPath("text_units.csv")); err != nil {
				return err
			}
			if err := pipeline.store.ExportRelationsCSV(pipeline.outputPath("relations.csv")); err != nil {
				return err
			}
		case FormatParquet:
			if err := pipeline.store.ExportWorksParquet(pipeline.outputPath("works.parquet"), includeFullText); err != nil {
				return err
			}
			if err := pipeline.store.ExportTextUnitsParquet(pipeline.outputPath("text_units.parquet")); err != nil {
				return err
			}
			if err := pipeline.store.ExportRelationsParquet(pipeline.outputPath("relations.parquet")); err != nil {
				return err
			}
		}
		pipeline.log.Infow("exported dataset", "format", format)
	}
	return nil
}

func (pipeline *Pipeline) outputPath(name string) string {
	return filepath.Join(pipeline.outputDir, name)
}
