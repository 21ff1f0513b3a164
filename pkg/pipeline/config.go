// Package pipeline orchestrates dataset builds: it selects document
// identifiers from configuration, resolves every document, persists the
// records, and exports the dataset with a generated README.
package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

// Selection modes.
const (
	ModeFixed       = "fixed"
	ModeDescriptive = "descriptive"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

var validDocumentTypes = map[string]bool{
	"directive":  true,
	"regulation": true,
	"decision":   true,
	"proposal":   true,
}

// Metadata describes the dataset being built. It is echoed into the
// generated README.
type Metadata struct {
	ProjectName string    `yaml:"project_name"`
	Author      string    `yaml:"author"`
	Description string    `yaml:"description"`
	DateCreated time.Time `yaml:"date_created"`
	Version     string    `yaml:"version"`
}

// DataSelection picks which documents enter the dataset. Mode chooses
// between an explicit fixed list and a descriptive query; the two sets of
// fields are mutually exclusive.
type DataSelection struct {
	Mode string `yaml:"mode"`

	// Fixed mode.
	CelexIDs         []string `yaml:"celex_ids"`
	ProcedureNumbers []string `yaml:"procedure_numbers"`

	// Descriptive mode.
	DocumentTypes                 []string  `yaml:"document_types"`
	StartDate                     time.Time `yaml:"start_date"`
	EndDate                       time.Time `yaml:"end_date"`
	FilterKeywords                []string  `yaml:"filter_keywords"`
	IncludeCorrigenda             bool      `yaml:"include_corrigenda"`
	IncludeConsolidatedTexts      bool      `yaml:"include_consolidated_texts"`
	IncludeNationalTranspositions bool      `yaml:"include_national_transpositions"`
}

// TextExtraction selects which structural unit types are extracted.
type TextExtraction struct {
	IncludeRecitals bool `yaml:"include_recitals"`
	IncludeArticles bool `yaml:"include_articles"`
	IncludeAnnexes  bool `yaml:"include_annexes"`
}

// RelationsExtraction controls relation harvesting.
type RelationsExtraction struct {
	IncludeRelations                                bool `yaml:"include_relations"`
	IncludeOriginalActRelationsForConsolidatedTexts bool `yaml:"include_original_act_relations_for_consolidated_texts"`
}

// Processing holds execution settings.
type Processing struct {
	EnableParallelProcessing bool                `yaml:"enable_parallel_processing"`
	MaxWorkers               int                 `yaml:"max_workers"`
	AutomatedMode            bool                `yaml:"automated_mode"`
	TextExtraction           TextExtraction      `yaml:"text_extraction"`
	RelationsExtraction      RelationsExtraction `yaml:"relations_extraction"`
}

// Output holds export settings.
type Output struct {
	IncludeRawFullText bool     `yaml:"include_raw_full_text"`
	Formats            []string `yaml:"formats"`
	OutputDirectory    string   `yaml:"output_directory"`
}

// Config is the full pipeline configuration.
type Config struct {
	Metadata   Metadata      `yaml:"metadata"`
	Data       DataSelection `yaml:"data"`
	Processing Processing    `yaml:"processing"`
	Output     Output        `yaml:"output"`
}

// DefaultConfig returns a Config with every optional field defaulted.
// Data has no default mode and must come from the file.
func DefaultConfig() Config {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return Config{
		Metadata: Metadata{
			ProjectName: "CELLAR-Build Dataset",
			Description: "A new dataset constructed with cellarbuild.",
			DateCreated: time.Now(),
			Version:     "1.0",
		},
		Data: DataSelection{
			DocumentTypes: []string{"directive", "regulation", "decision"},
		},
		Processing: Processing{
			EnableParallelProcessing: true,
			MaxWorkers:               workers,
			TextExtraction: TextExtraction{
				IncludeRecitals: true,
				IncludeArticles: true,
				IncludeAnnexes:  true,
			},
			RelationsExtraction: RelationsExtraction{
				IncludeRelations: true,
			},
		},
		Output: Output{
			Formats:         []string{FormatCSV, FormatParquet},
			OutputDirectory: "./output",
		},
	}
}

// LoadConfig reads, decodes, and validates a YAML configuration file.
// Defaults apply to every key the file omits.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &config, nil
}

// Validate checks the configuration and normalizes identifier lists in
// place. It must be called before the configuration is used.
func (config *Config) Validate() error {
	switch config.Data.Mode {
	case ModeFixed:
		if err := config.validateFixed(); err != nil {
			return err
		}
	case ModeDescriptive:
		if err := config.validateDescriptive(); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("data.mode is required (%q or %q)", ModeFixed, ModeDescriptive)
	default:
		return fmt.Errorf("unknown data.mode %q (want %q or %q)", config.Data.Mode, ModeFixed, ModeDescriptive)
	}

	if config.Processing.MaxWorkers < 1 {
		return fmt.Errorf("processing.max_workers must be positive, got %d", config.Processing.MaxWorkers)
	}
	if cpus := runtime.NumCPU(); config.Processing.MaxWorkers > cpus {
		config.Processing.MaxWorkers = cpus
	}

	if len(config.Output.Formats) == 0 {
		return fmt.Errorf("output.formats must name at least one format")
	}
	for _, format := range config.Output.Formats {
		if format != FormatCSV && format != FormatParquet {
			return fmt.Errorf("unknown output format %q (want %q or %q)", format, FormatCSV, FormatParquet)
		}
	}
	if config.Output.OutputDirectory == "" {
		return fmt.Errorf("output.output_directory must not be empty")
	}

	return nil
}

func (config *Config) validateFixed() error {
	if len(config.Data.CelexIDs) == 0 && len(config.Data.ProcedureNumbers) == 0 {
		return fmt.Errorf("fixed mode requires at least one entry in data.celex_ids or data.procedure_numbers")
	}

	var invalid []string
	normalizedIDs := make(map[string]bool)
	for _, id := range config.Data.CelexIDs {
		normalized, err := celex.Validate(id)
		if err != nil {
			invalid = append(invalid, id)
			continue
		}
		normalizedIDs[normalized] = true
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid CELEX identifiers: %s", strings.Join(invalid, ", "))
	}
	config.Data.CelexIDs = sortedSet(normalizedIDs)

	invalid = nil
	normalizedNumbers := make(map[string]bool)
	for _, number := range config.Data.ProcedureNumbers {
		if !celex.IsValidProcedureNumber(number) {
			invalid = append(invalid, number)
			continue
		}
		normalizedNumbers[celex.NormalizeProcedureNumber(number)] = true
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid procedure numbers: %s", strings.Join(invalid, ", "))
	}
	config.Data.ProcedureNumbers = sortedSet(normalizedNumbers)

	return nil
}

func (config *Config) validateDescriptive() error {
	for _, documentType := range config.Data.DocumentTypes {
		if !validDocumentTypes[documentType] {
			return fmt.Errorf("unknown document type %q", documentType)
		}
	}

	if config.Data.StartDate.IsZero() || config.Data.EndDate.IsZero() {
		return fmt.Errorf("descriptive mode requires data.start_date and data.end_date")
	}
	now := time.Now()
	if config.Data.StartDate.After(now) || config.Data.EndDate.After(now) {
		return fmt.Errorf("data.start_date and data.end_date must be in the past")
	}
	if config.Data.StartDate.After(config.Data.EndDate) {
		return fmt.Errorf("data.start_date must not be after data.end_date")
	}

	return nil
}

// IncludesDocumentType reports whether the descriptive selection covers
// the given document type.
func (selection *DataSelection) IncludesDocumentType(documentType string) bool {
	for _, candidate := range selection.DocumentTypes {
		if candidate == documentType {
			return true
		}
	}
	return false
}

func sortedSet(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
