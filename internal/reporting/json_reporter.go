// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONFileName is the report file written by JSONReporter.
const JSONFileName = "results.json"

// JSONDocument is the on-disk shape of a JSON report.
type JSONDocument struct {
	Summary RunSummary    `json:"summary"`
	Cases   []*CaseResult `json:"cases"`
}

// JSONReporter writes all cases into a single results.json on Close.
type JSONReporter struct {
	collector
}

func (r *JSONReporter) Write(result *CaseResult) error { return r.add(result) }

func (r *JSONReporter) Close() error {
	cases, summary, ok := r.seal()
	if !ok {
		return nil
	}
	if cases == nil {
		cases = []*CaseResult{}
	}
	data, err := json.MarshalIndent(JSONDocument{Summary: summary, Cases: cases}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	path := filepath.Join(r.dir, JSONFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write json report %s: %w", path, err)
	}
	return nil
}

// ReadJSON loads a report previously written by JSONReporter.
func ReadJSON(dir string) (*JSONDocument, error) {
	data, err := os.ReadFile(filepath.Join(dir, JSONFileName))
	if err != nil {
		return nil, err
	}
	var doc JSONDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode json report: %w", err)
	}
	return &doc, nil
}
