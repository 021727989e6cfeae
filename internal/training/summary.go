package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"safetyvision/internal/logger"

	"gopkg.in/yaml.v3"
)

// MAP50Column is the results.csv column holding box mAP@0.5.
const MAP50Column = "metrics/mAP50(B)"

// ErrNoMetric is returned when results.csv has no usable mAP@0.5 value.
var ErrNoMetric = errors.New("no mAP50 value")

// ClassScore is the final validation mAP@0.5 of one class run.
type ClassScore struct {
	Class string  `json:"class" yaml:"class"`
	MAP50 float64 `json:"map50" yaml:"map50"`
}

// Report is the per-class scores plus their mean.
type Report struct {
	Classes []ClassScore `json:"classes" yaml:"classes"`
	Overall float64      `json:"overall_map50" yaml:"overall_map50"`
}

// ReadFinalMAP50 returns the last non-empty mAP50(B) value in a results.csv.
// Header cells are trimmed since the trainer pads them with spaces.
func ReadFinalMAP50(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ErrNoMetric, path)
	}

	col := -1
	for i, h := range records[0] {
		if strings.TrimSpace(h) == MAP50Column {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, fmt.Errorf("%w: column %q missing in %s", ErrNoMetric, MAP50Column, path)
	}

	for i := len(records) - 1; i >= 1; i-- {
		if col >= len(records[i]) {
			continue
		}
		cell := strings.TrimSpace(records[i][col])
		if cell == "" || strings.EqualFold(cell, "nan") {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoMetric, path)
}

// Summarize reads <project>/<class>/results.csv for every class and averages
// the final mAP@0.5. Classes whose file is missing or unusable are logged and left out.
func Summarize(project string, classes []string, logger *logger.Logger) (*Report, error) {
	report := &Report{}
	var sum float64
	for _, class := range classes {
		path := filepath.Join(project, class, "results.csv")
		v, err := ReadFinalMAP50(path)
		if err != nil {
			logger.Warning("No mAP@0.5 for %s: %v", class, err)
			continue
		}
		logger.Info("%s: mAP@0.5 = %.4f", class, v)
		report.Classes = append(report.Classes, ClassScore{Class: class, MAP50: v})
		sum += v
	}
	if len(report.Classes) == 0 {
		return report, fmt.Errorf("%w: no class results under %s", ErrNoMetric, project)
	}
	report.Overall = sum / float64(len(report.Classes))
	return report, nil
}

// WriteReport stores the report as YAML; the dashboard serves it as the accuracy summary.
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}
