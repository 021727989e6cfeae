package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Label is one YOLO annotation line: class_id xc yc w h [conf], coordinates normalised.
type Label struct {
	ClassID    int
	XC, YC     float64
	W, H       float64
	Confidence float64
	// HasConfidence is set for prediction files carrying a sixth column.
	HasConfidence bool
}

// ParseLabelLine parses a single label line. ok is false for blank lines,
// lines with fewer than five fields and lines whose fields are not numeric.
func ParseLabelLine(line string) (Label, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Label{}, false
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, false
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Label{}, false
		}
		coords[i] = v
	}

	lbl := Label{ClassID: classID, XC: coords[0], YC: coords[1], W: coords[2], H: coords[3]}
	if len(fields) >= 6 {
		if conf, err := strconv.ParseFloat(fields[5], 64); err == nil {
			lbl.Confidence = conf
			lbl.HasConfidence = true
		}
	}
	return lbl, true
}

// ParseLabels reads every well-formed line; malformed ones are dropped.
func ParseLabels(r io.Reader) ([]Label, error) {
	var labels []Label
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if lbl, ok := ParseLabelLine(scanner.Text()); ok {
			labels = append(labels, lbl)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// ReadLabelFile parses a label file from disk.
func ReadLabelFile(path string) ([]Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	labels, err := ParseLabels(f)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}
	return labels, nil
}

// Format renders the label in YOLO text format with six decimals.
func (l Label) Format() string {
	s := fmt.Sprintf("%d %.6f %.6f %.6f %.6f", l.ClassID, l.XC, l.YC, l.W, l.H)
	if l.HasConfidence {
		s += fmt.Sprintf(" %.6f", l.Confidence)
	}
	return s
}

// ReadClasses reads a classes.txt file, one class name per line. Blank lines are skipped.
func ReadClasses(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classes file: %w", err)
	}
	defer f.Close()

	var classes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			classes = append(classes, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read classes file: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("classes file %s is empty", path)
	}
	return classes, nil
}
