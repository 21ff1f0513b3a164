package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// EuroVocReviewFileName is the editable concept review file written into
// the output directory before a descriptive selection runs.
const EuroVocReviewFileName = "eurovoc_labels.yaml"

const eurovocReviewInstructions = "Review the EuroVoc concepts matched for each filter keyword. " +
	"Delete every concept URI that should not constrain the selection, " +
	"save this file, then return to the terminal and press Enter."

// eurovocReviewFile is the on-disk shape of the review file. Labels maps
// each filter keyword to the matched concept URIs and their labels.
type eurovocReviewFile struct {
	Instructions string                         `yaml:"instructions"`
	Labels       map[string]map[string][]string `yaml:"labels"`
}

// reviewEuroVocConcepts resolves the configured filter keywords to EuroVoc
// concept URIs. The matches are written to a review file; in automated
// mode all matched URIs are used, otherwise the operator edits the file
// and the surviving URIs are read back.
func (pipeline *Pipeline) reviewEuroVocConcepts() ([]string, error) {
	keywords := pipeline.config.Data.FilterKeywords
	if len(keywords) == 0 {
		return nil, nil
	}

	labels, err := pipeline.discoverer.EuroVocLabels(keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve EuroVoc concepts: %w", err)
	}
	if len(labels) == 0 {
		pipeline.log.Warnw("no EuroVoc concepts matched", "keywords", keywords)
		return nil, nil
	}

	reviewPath := pipeline.outputPath(EuroVocReviewFileName)
	if err := writeEuroVocReviewFile(reviewPath, labels); err != nil {
		return nil, err
	}
	pipeline.log.Infow("wrote EuroVoc review file", "path", reviewPath)

	if pipeline.config.Processing.AutomatedMode {
		return conceptURIs(labels), nil
	}

	fmt.Fprintf(pipeline.stdout, "EuroVoc concepts written to %s\n", reviewPath)
	fmt.Fprintln(pipeline.stdout, "Edit the file to remove unwanted concepts, then press Enter to continue.")
	if _, err := bufio.NewReader(pipeline.stdin).ReadString('\n'); err != nil {
		return nil, fmt.Errorf("failed to read review confirmation: %w", err)
	}

	reviewed, err := readEuroVocReviewFile(reviewPath)
	if err != nil {
		return nil, err
	}
	return conceptURIs(reviewed), nil
}

func writeEuroVocReviewFile(path string, labels map[string]map[string][]string) error {
	encoded, err := yaml.Marshal(eurovocReviewFile{
		Instructions: eurovocReviewInstructions,
		Labels:       labels,
	})
	if err != nil {
		return fmt.Errorf("failed to encode EuroVoc review file: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write EuroVoc review file: %w", err)
	}
	return nil
}

func readEuroVocReviewFile(path string) (map[string]map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read EuroVoc review file: %w", err)
	}
	var review eurovocReviewFile
	if err := yaml.Unmarshal(raw, &review); err != nil {
		return nil, fmt.Errorf("failed to parse EuroVoc review file: %w", err)
	}
	return review.Labels, nil
}

// conceptURIs flattens the reviewed labels into a sorted, deduplicated
// list of concept URIs.
func conceptURIs(labels map[string]map[string][]string) []string {
	set := make(map[string]bool)
	for _, concepts := range labels {
		for uri := range concepts {
			set[uri] = true
		}
	}
	uris := make([]string, 0, len(set))
	for uri := range set {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}
