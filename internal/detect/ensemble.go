package detect

import (
	"errors"
	"fmt"
	"image"
	"sort"
)

const (
	// DefaultConfidenceThreshold is the minimum confidence a pooled detection must exceed.
	DefaultConfidenceThreshold = 0.5
	// DefaultIoUThreshold is the overlap above which a lower-confidence detection is suppressed.
	DefaultIoUThreshold = 0.5
)

// Entry binds a class to the detector trained for it.
type Entry struct {
	ClassID  int
	Label    string
	Detector Detector
}

// Registry is the ordered, read-only set of per-class detectors.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry; labels and class ids must be unique.
func NewRegistry(entries ...Entry) (*Registry, error) {
	seenLabels := make(map[string]bool, len(entries))
	seenIDs := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.Detector == nil {
			return nil, fmt.Errorf("class %q has no detector", e.Label)
		}
		if seenLabels[e.Label] {
			return nil, fmt.Errorf("duplicate class label %q", e.Label)
		}
		if seenIDs[e.ClassID] {
			return nil, fmt.Errorf("duplicate class id %d", e.ClassID)
		}
		seenLabels[e.Label] = true
		seenIDs[e.ClassID] = true
	}

	copied := make([]Entry, len(entries))
	copy(copied, entries)
	return &Registry{entries: copied}, nil
}

// Labels returns class labels in registry order.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		labels = append(labels, e.Label)
	}
	return labels
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Close releases every detector and joins their errors.
func (r *Registry) Close() error {
	var errs []error
	for _, e := range r.entries {
		if err := e.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.Label, err))
		}
	}
	return errors.Join(errs...)
}

// Options tune the pooling stage.
type Options struct {
	ConfidenceThreshold float64
	IoUThreshold        float64
	// Suppress enables cross-model NMS over the pooled detections.
	Suppress bool
	// ClassAware restricts suppression to detections of the same class.
	ClassAware bool
}

// DefaultOptions mirrors the serving configuration: 0.5 confidence, 0.5 IoU, class-agnostic NMS.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		IoUThreshold:        DefaultIoUThreshold,
		Suppress:            true,
	}
}

// Ensemble runs every registered detector over an image and merges the results.
type Ensemble struct {
	registry *Registry
	opts     Options
}

// NewEnsemble creates an ensemble over a registry.
func NewEnsemble(registry *Registry, opts Options) *Ensemble {
	return &Ensemble{registry: registry, opts: opts}
}

// Registry returns the underlying registry.
func (e *Ensemble) Registry() *Registry {
	return e.registry
}

// Options returns the pooling options in use.
func (e *Ensemble) Options() Options {
	return e.opts
}

// Run detects objects with each class model in turn, filters by confidence,
// pools the tagged detections and applies cross-model suppression.
func (e *Ensemble) Run(img image.Image) ([]Detection, error) {
	var pooled []Detection
	for _, entry := range e.registry.entries {
		candidates, err := entry.Detector.Detect(img)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", entry.Label, err)
		}
		for _, c := range candidates {
			if c.Confidence <= e.opts.ConfidenceThreshold {
				continue
			}
			pooled = append(pooled, Detection{
				ClassID:    entry.ClassID,
				Label:      entry.Label,
				Confidence: c.Confidence,
				Box:        c.Box,
			})
		}
	}

	if !e.opts.Suppress {
		return pooled, nil
	}
	return Suppress(pooled, e.opts.IoUThreshold, e.opts.ClassAware), nil
}

// Suppress applies greedy non-max suppression. Detections are visited in
// descending confidence; one is dropped when it overlaps a kept detection by
// more than iouThreshold. Unless classAware is set the class label is ignored,
// so one model's box can remove another model's weaker box over the same region.
// Inputs with fewer than two detections are returned unchanged.
func Suppress(dets []Detection, iouThreshold float64, classAware bool) []Detection {
	if len(dets) < 2 {
		return dets
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Detection, 0, len(sorted))
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if classAware && k.ClassID != cand.ClassID {
				continue
			}
			if IoU(k.Box, cand.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}

// SuppressCandidates is the single-model variant used after decoding raw output.
func SuppressCandidates(cands []Candidate, iouThreshold float64) []Candidate {
	if len(cands) < 2 {
		return cands
	}

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	selected := make([]bool, len(sorted))
	kept := make([]Candidate, 0, len(sorted))
	for i := range sorted {
		if selected[i] {
			continue
		}
		kept = append(kept, sorted[i])
		selected[i] = true
		for j := i + 1; j < len(sorted); j++ {
			if !selected[j] && IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				selected[j] = true
			}
		}
	}
	return kept
}
