// Package sink writes extracted tables as headerless CSV files with JSON
// manifests describing their columns, and reads identifier columns back
// from previous runs.
package sink

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jsvoboda/daktela-extractor/pkg/errors"
	"github.com/jsvoboda/daktela-extractor/pkg/logger"
	"github.com/jsvoboda/daktela-extractor/pkg/models"
	"github.com/jsvoboda/daktela-extractor/pkg/transform"
)

// Manifest describes one output table. The CSV itself carries no header
// row; column names and order live here.
type Manifest struct {
	Columns     []string `json:"columns"`
	PrimaryKey  []string `json:"primary_key"`
	Incremental bool     `json:"incremental"`
}

// Writer persists table rows under an output directory as
// "{tenant}_{table}.csv" plus "{tenant}_{table}.csv.manifest".
type Writer struct {
	dir string
	log *zap.Logger
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, log *zap.Logger) *Writer {
	if log == nil {
		log = logger.Get()
	}
	return &Writer{dir: dir, log: log}
}

// WriteTable writes rows for one table. The column set is the union of
// all row columns in first-seen order, so late-appearing columns widen
// the table and earlier rows fill them with empty cells. Tables with no
// rows produce no file at all. Returns whether a file was written.
func (w *Writer) WriteTable(tenant, table string, rows []*transform.Row, incremental bool) (bool, error) {
	if len(rows) == 0 {
		w.log.Warn("table has no rows, skipping output",
			zap.String("table", table))
		return false, nil
	}

	columns := unionColumns(rows)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create output directory")
	}

	csvPath := filepath.Join(w.dir, tenant+"_"+table+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to create output file for table %s", table)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, column := range columns {
			value, ok := row.Get(column)
			if !ok {
				cells[i] = ""
				continue
			}
			cells[i] = models.ValueString(value)
		}
		if err := cw.Write(cells); err != nil {
			return false, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to write row for table %s", table)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to flush output for table %s", table)
	}

	manifest := Manifest{
		Columns:     columns,
		PrimaryKey:  []string{transform.IDColumn},
		Incremental: incremental,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to encode manifest for table %s", table)
	}
	if err := os.WriteFile(csvPath+".manifest", data, 0o644); err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeInternal, "failed to write manifest for table %s", table)
	}

	w.log.Info("table written",
		zap.String("table", table),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)))
	return true, nil
}

// ReadColumnValues reads all non-empty values of one column from a
// previously written table, in row order. A missing file, a missing
// manifest, or a column the manifest does not know yields no values
// rather than an error, so callers can treat prior output as best
// effort.
func (w *Writer) ReadColumnValues(tenant, table, column string) ([]string, error) {
	csvPath := filepath.Join(w.dir, tenant+"_"+table+".csv")

	manifestData, err := readScrubbed(csvPath + ".manifest")
	if err != nil {
		return nil, nil
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, nil
	}

	index := -1
	for i, c := range manifest.Columns {
		if c == column {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, nil
	}

	csvData, err := readScrubbed(csvPath)
	if err != nil {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(csvData))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "failed to parse previous output for table %s", table)
	}

	var values []string
	for _, record := range records {
		if index < len(record) && record[index] != "" {
			values = append(values, record[index])
		}
	}
	return values, nil
}

// readScrubbed reads a file and drops NUL bytes, which have been seen in
// files written by interrupted runs.
func readScrubbed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(data, []byte{0}, nil), nil
}

// unionColumns merges row columns in first-seen order.
func unionColumns(rows []*transform.Row) []string {
	var columns []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, column := range row.Columns() {
			if _, ok := seen[column]; ok {
				continue
			}
			seen[column] = struct{}{}
			columns = append(columns, column)
		}
	}
	return columns
}
