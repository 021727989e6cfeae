package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"safetyvision/internal/logger"

	"facette.io/natsort"
)

const (
	ImagesDir = "images"
	LabelsDir = "labels"
)

// ImageExtensions are tried in order when pairing a label file with its image.
var ImageExtensions = []string{".png", ".jpg", ".jpeg"}

// SplitResult reports what one split run did.
type SplitResult struct {
	Processed int
	Skipped   int
	// Copied counts images copied per class name.
	Copied map[string]int
}

// ClassSummary is the file count of one per-class folder.
type ClassSummary struct {
	Class  string `json:"class"`
	Images int    `json:"images"`
	Labels int    `json:"labels"`
}

// Splitter partitions a multi-class YOLO split into one folder per class.
type Splitter struct {
	classes []string
	logger  *logger.Logger
}

// NewSplitter creates a splitter; class ids index into classes.
func NewSplitter(classes []string, logger *logger.Logger) *Splitter {
	return &Splitter{classes: classes, logger: logger}
}

// Split reads <splitDir>/labels/*.txt and copies each image/label pair into
// <outDir>/<class>/{images,labels} for every distinct class the label file
// references. Pairs without an image are skipped. The source is left untouched
// and existing destination files are overwritten.
func (s *Splitter) Split(splitDir, outDir string) (*SplitResult, error) {
	imageDir := filepath.Join(splitDir, ImagesDir)
	labelDir := filepath.Join(splitDir, LabelsDir)

	for _, class := range s.classes {
		for _, sub := range []string{ImagesDir, LabelsDir} {
			if err := os.MkdirAll(filepath.Join(outDir, class, sub), 0755); err != nil {
				return nil, fmt.Errorf("create class directory: %w", err)
			}
		}
	}

	labelFiles, err := ListFiles(labelDir, ".txt")
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	s.logger.Info("Splitting %s: %d label files, %d classes", splitDir, len(labelFiles), len(s.classes))

	result := &SplitResult{Copied: make(map[string]int, len(s.classes))}
	for _, labelName := range labelFiles {
		stem := strings.TrimSuffix(labelName, filepath.Ext(labelName))
		imagePath, ok := FindImage(imageDir, stem)
		if !ok {
			s.logger.Warning("Image missing for label %s", labelName)
			result.Skipped++
			continue
		}

		labelPath := filepath.Join(labelDir, labelName)
		labels, err := ReadLabelFile(labelPath)
		if err != nil {
			s.logger.Warning("Unreadable label file %s: %v", labelName, err)
			result.Skipped++
			continue
		}

		for _, class := range s.referencedClasses(labels) {
			imageDst := filepath.Join(outDir, class, ImagesDir, filepath.Base(imagePath))
			if err := copyFile(imagePath, imageDst); err != nil {
				return result, fmt.Errorf("copy %s: %w", imagePath, err)
			}
			labelDst := filepath.Join(outDir, class, LabelsDir, labelName)
			if err := copyFile(labelPath, labelDst); err != nil {
				return result, fmt.Errorf("copy %s: %w", labelPath, err)
			}
			result.Copied[class]++
		}
		result.Processed++
	}

	s.logger.Info("Processed %d files, skipped %d files", result.Processed, result.Skipped)
	return result, nil
}

// referencedClasses returns the distinct in-range class names, ordered by id.
func (s *Splitter) referencedClasses(labels []Label) []string {
	seen := make(map[int]bool)
	for _, l := range labels {
		if l.ClassID >= 0 && l.ClassID < len(s.classes) {
			seen[l.ClassID] = true
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = s.classes[id]
	}
	return names
}

// Summarize counts images and labels in every class folder under outDir.
func (s *Splitter) Summarize(outDir string) ([]ClassSummary, error) {
	summary := make([]ClassSummary, 0, len(s.classes))
	for _, class := range s.classes {
		images, err := ListFiles(filepath.Join(outDir, class, ImagesDir), ImageExtensions...)
		if err != nil {
			return nil, err
		}
		labels, err := ListFiles(filepath.Join(outDir, class, LabelsDir), ".txt")
		if err != nil {
			return nil, err
		}
		summary = append(summary, ClassSummary{Class: class, Images: len(images), Labels: len(labels)})
	}
	return summary, nil
}

// FindImage looks for <dir>/<stem><ext> for each of ImageExtensions in order.
func FindImage(dir, stem string) (string, bool) {
	for _, ext := range ImageExtensions {
		p := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ListFiles returns the names of regular files in dir with one of the given
// extensions (case-insensitive), in natural order. A missing dir is an error.
func ListFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				names = append(names, e.Name())
				break
			}
		}
	}
	natsort.Sort(names)
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
