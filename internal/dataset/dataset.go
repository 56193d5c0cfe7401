// Package dataset loads the CSV extracts each pillar analysis runs against.
// Every cell is kept as a string; coercion happens at evaluation time so a
// malformed cell degrades a single condition instead of failing the load.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dutylens/dutylens/internal/metrics"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

// Required maps each pillar to the dataset file its analysis expects.
var Required = map[pillar.Pillar]string{
	pillar.ProductsServices:      "ProductPerformance.csv",
	pillar.PriceValue:            "PriceValue.csv",
	pillar.ConsumerUnderstanding: "ConsumerUnderstanding.csv",
	pillar.ConsumerSupport:       "ConsumerSupport.csv",
}

// FileFor returns the dataset filename for a pillar.
func FileFor(p pillar.Pillar) string {
	return Required[p]
}

// ParseCSV reads a header row then one Row per record. Records shorter than
// the header are padded with empty strings; longer records keep only the
// headed columns.
func ParseCSV(r io.Reader) ([]rules.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("dataset has no header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var out []rules.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		row := make(rules.Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		out = append(out, row)
	}

	return out, nil
}

// DatasetStatus reports the presence of one required dataset file.
type DatasetStatus struct {
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Rows   int    `json:"rows"`
}

// Status is the ingestion report returned by the datasets API.
type Status struct {
	Datasets   []DatasetStatus `json:"datasets"`
	AllLoaded  bool            `json:"allLoaded"`
	VerifiedAt time.Time       `json:"verifiedAt"`
}

// Loader reads dataset files from a directory on demand.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load parses the named dataset file.
func (l *Loader) Load(name string) ([]rules.Row, error) {
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		metrics.DatasetLoadErrors.WithLabelValues(name).Inc()
		return nil, fmt.Errorf("failed to open dataset %s: %w", name, err)
	}
	defer f.Close()

	dataRows, err := ParseCSV(f)
	if err != nil {
		metrics.DatasetLoadErrors.WithLabelValues(name).Inc()
		return nil, fmt.Errorf("failed to parse dataset %s: %w", name, err)
	}

	metrics.DatasetRowsLoaded.WithLabelValues(name).Set(float64(len(dataRows)))
	return dataRows, nil
}

// Save writes raw CSV bytes for a dataset, creating the directory on first
// upload.
func (l *Loader) Save(name string, data []byte) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", name, err)
	}
	return nil
}

// LoadPillar loads the dataset backing a pillar.
func (l *Loader) LoadPillar(p pillar.Pillar) ([]rules.Row, error) {
	return l.Load(FileFor(p))
}

// Verify checks every required dataset and reports per-file status. A file
// that exists but fails to parse counts as not loaded.
func (l *Loader) Verify() Status {
	status := Status{AllLoaded: true, VerifiedAt: time.Now().UTC()}

	for _, p := range pillar.All() {
		name := FileFor(p)
		ds := DatasetStatus{Name: name}

		if dataRows, err := l.Load(name); err == nil {
			ds.Loaded = true
			ds.Rows = len(dataRows)
		} else {
			status.AllLoaded = false
		}

		status.Datasets = append(status.Datasets, ds)
	}

	return status
}
