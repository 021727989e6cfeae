package detect

import (
	"image/color"
	"math"
)

// HistogramBins is the number of equal-width confidence buckets over [0,1].
const HistogramBins = 10

// Summary aggregates one image's detections for charts.
type Summary struct {
	ClassCounts map[string]int     `json:"class_counts"`
	Confidences []float64          `json:"confidences"`
	Histogram   []int              `json:"histogram"`
	Proportions map[string]float64 `json:"proportions"`
}

// Summarize counts detections per class (every label in labels is present, zero
// or not) and buckets the confidences into HistogramBins bins.
func Summarize(dets []Detection, labels []string) Summary {
	s := Summary{
		ClassCounts: make(map[string]int, len(labels)),
		Confidences: make([]float64, 0, len(dets)),
		Histogram:   make([]int, HistogramBins),
		Proportions: make(map[string]float64, len(labels)),
	}
	for _, l := range labels {
		s.ClassCounts[l] = 0
	}

	for _, d := range dets {
		s.ClassCounts[d.Label]++
		s.Confidences = append(s.Confidences, d.Confidence)
		s.Histogram[histogramBin(d.Confidence)]++
	}

	for label, count := range s.ClassCounts {
		if len(dets) == 0 {
			s.Proportions[label] = 0
			continue
		}
		s.Proportions[label] = float64(count) / float64(len(dets))
	}
	return s
}

func histogramBin(conf float64) int {
	bin := int(math.Floor(conf * HistogramBins))
	if bin < 0 {
		return 0
	}
	if bin >= HistogramBins {
		return HistogramBins - 1
	}
	return bin
}

var palette = map[string]color.RGBA{
	"FireExtinguisher": {R: 0, G: 255, B: 0, A: 255},
	"ToolBox":          {R: 0, G: 0, B: 255, A: 255},
	"OxygenTank":       {R: 255, G: 0, B: 0, A: 255},
}

// ClassColor returns the fixed drawing colour for a class; unknown classes are cyan.
func ClassColor(label string) color.RGBA {
	if c, ok := palette[label]; ok {
		return c
	}
	return color.RGBA{R: 0, G: 255, B: 255, A: 255}
}
