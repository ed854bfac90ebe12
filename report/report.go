// Package report writes the evaluation outputs of a training run: one JSON
// metrics line per data split and an optional predicted-vs-actual plot.
package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/metrics"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
)

// Record is one metrics line.
type Record struct {
	Type    string  `json:"type"`
	Dataset string  `json:"dataset"`
	R2      float64 `json:"r2"`
	MSE     float64 `json:"mse"`
	MAD     float64 `json:"mad"`
}

// NewRecord scores yPred against yTrue. MAD is the median absolute error.
func NewRecord(dataset string, yTrue, yPred mat.Matrix) (Record, error) {
	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		return Record{}, errors.Wrapf(err, "r2 on %s", dataset)
	}
	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		return Record{}, errors.Wrapf(err, "mse on %s", dataset)
	}
	mad, err := metrics.MedianAbsoluteError(yTrue, yPred)
	if err != nil {
		return Record{}, errors.Wrapf(err, "mad on %s", dataset)
	}
	return Record{Type: "metrics", Dataset: dataset, R2: r2, MSE: mse, MAD: mad}, nil
}

// WriteMetrics writes one JSON object per line, in the given order,
// replacing path. Missing parent directories are created.
func WriteMetrics(path string, records []Record) error {
	if len(records) == 0 {
		return errors.NewValueError("report.WriteMetrics", "no records to write")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "failed to encode %s metrics", r.Dataset)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	log.GetLoggerWithName("report").Info("Wrote metrics",
		log.PathKey, path,
		"records", len(records))
	return nil
}

// ReadMetrics parses a file written by WriteMetrics.
func ReadMetrics(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return nil, errors.Wrapf(err, "malformed metrics line in %s", path)
		}
		records = append(records, r)
	}
	return records, nil
}
