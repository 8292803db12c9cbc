package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV writes the table with a header of feature names followed by the
// label column. The file is replaced atomically.
func WriteCSV(path string, d *Dataset) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// WriteTo encodes the table as CSV.
func (d *Dataset) WriteTo(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(append([]string(nil), d.FeatureNames...), d.LabelColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range d.Rows {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		record[len(row)] = strconv.Itoa(d.Labels[i])
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHeader returns the column names of a CSV table.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return header, nil
}

// ReadCSV loads a table written by WriteCSV. Cells equal to MissingValue
// are flagged missing since the file does not carry the flag.
func ReadCSV(path, labelColumn string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	labelIdx := -1
	for i, h := range header {
		if h == labelColumn {
			labelIdx = i
			break
		}
	}
	if labelIdx < 0 {
		return nil, fmt.Errorf("%w: %q not in %s", ErrMissingLabel, labelColumn, path)
	}

	d := &Dataset{LabelColumn: labelColumn}
	for i, h := range header {
		if i == labelIdx {
			continue
		}
		qid, err := ParseColumnName(h)
		if err != nil {
			return nil, err
		}
		d.FeatureNames = append(d.FeatureNames, h)
		d.QuestionIDs = append(d.QuestionIDs, qid)
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		row := make([]float64, 0, len(d.FeatureNames))
		missing := make([]bool, 0, len(d.FeatureNames))
		var label int
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
			if i == labelIdx {
				if v != math.Trunc(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("line %d: label %q is not an integer class", line, s)
				}
				label = int(v)
				continue
			}
			row = append(row, v)
			missing = append(missing, v == MissingValue)
		}
		d.Rows = append(d.Rows, row)
		d.Missing = append(d.Missing, missing)
		d.Labels = append(d.Labels, label)
	}
	return d, nil
}
