package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"safetyvision/internal/config"
	"safetyvision/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classes = []string{"FireExtinguisher", "ToolBox", "OxygenTank"}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { l.Close() })
	return l
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// ========================================
// Label parsing
// ========================================

func TestParseLabelLine(t *testing.T) {
	lbl, ok := ParseLabelLine("2 0.5 0.25 0.1 0.2")
	require.True(t, ok)
	assert.Equal(t, Label{ClassID: 2, XC: 0.5, YC: 0.25, W: 0.1, H: 0.2}, lbl)

	lbl, ok = ParseLabelLine("1 0.5 0.5 0.1 0.1 0.87")
	require.True(t, ok)
	assert.True(t, lbl.HasConfidence)
	assert.Equal(t, 0.87, lbl.Confidence)

	for _, bad := range []string{"", "   ", "0 0.5 0.5 0.1", "x 0.5 0.5 0.1 0.1", "0 a b c d"} {
		_, ok := ParseLabelLine(bad)
		assert.False(t, ok, "line %q", bad)
	}
}

func TestLabelFormat(t *testing.T) {
	assert.Equal(t, "1 0.500000 0.250000 0.100000 0.200000",
		Label{ClassID: 1, XC: 0.5, YC: 0.25, W: 0.1, H: 0.2}.Format())
	assert.Equal(t, "0 0.100000 0.100000 0.100000 0.100000 0.900000",
		Label{XC: 0.1, YC: 0.1, W: 0.1, H: 0.1, Confidence: 0.9, HasConfidence: true}.Format())
}

func TestParseLabels_SkipsMalformed(t *testing.T) {
	labels, err := ParseLabels(strings.NewReader("0 0.1 0.1 0.1 0.1\nbad\n\n2 0.2 0.2 0.2 0.2\n"))

	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, 0, labels[0].ClassID)
	assert.Equal(t, 2, labels[1].ClassID)
}

func TestReadClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.txt")
	writeFile(t, path, "FireExtinguisher\nToolBox\n\nOxygenTank\n")

	got, err := ReadClasses(path)

	require.NoError(t, err)
	assert.Equal(t, classes, got)

	writeFile(t, path, "\n")
	_, err = ReadClasses(path)
	assert.Error(t, err)
}

// ========================================
// Splitter
// ========================================

func TestSplit_CopiesIntoReferencedClassesOnly(t *testing.T) {
	src := filepath.Join(t.TempDir(), "test")
	out := t.TempDir()
	writeFile(t, filepath.Join(src, ImagesDir, "img1.png"), "png-bytes")
	writeFile(t, filepath.Join(src, LabelsDir, "img1.txt"), "0 0.5 0.5 0.1 0.1\n2 0.3 0.3 0.1 0.1\n0 0.7 0.7 0.1 0.1\n")

	res, err := NewSplitter(classes, newTestLogger(t)).Split(src, out)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, map[string]int{"FireExtinguisher": 1, "OxygenTank": 1}, res.Copied)

	for _, class := range []string{"FireExtinguisher", "OxygenTank"} {
		assert.FileExists(t, filepath.Join(out, class, ImagesDir, "img1.png"))
		assert.FileExists(t, filepath.Join(out, class, LabelsDir, "img1.txt"))
	}
	assert.NoFileExists(t, filepath.Join(out, "ToolBox", ImagesDir, "img1.png"))
	assert.NoFileExists(t, filepath.Join(out, "ToolBox", LabelsDir, "img1.txt"))
}

func TestSplit_SkipsMissingImagesAndIgnoresBadLines(t *testing.T) {
	src := filepath.Join(t.TempDir(), "test")
	out := t.TempDir()
	writeFile(t, filepath.Join(src, ImagesDir, "a.jpg"), "jpg")
	writeFile(t, filepath.Join(src, LabelsDir, "a.txt"), "9 0.1 0.1 0.1 0.1\n1 0.1 0.1\n1 0.2 0.2 0.2 0.2\n")
	writeFile(t, filepath.Join(src, LabelsDir, "orphan.txt"), "0 0.1 0.1 0.1 0.1\n")
	writeFile(t, filepath.Join(src, LabelsDir, "notes.md"), "ignored")

	res, err := NewSplitter(classes, newTestLogger(t)).Split(src, out)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, map[string]int{"ToolBox": 1}, res.Copied)
	assert.FileExists(t, filepath.Join(out, "ToolBox", ImagesDir, "a.jpg"))

	// source untouched
	assert.FileExists(t, filepath.Join(src, LabelsDir, "orphan.txt"))
	assert.FileExists(t, filepath.Join(src, ImagesDir, "a.jpg"))
}

func TestSplit_RerunAfterClearingIsIdentical(t *testing.T) {
	src := filepath.Join(t.TempDir(), "train")
	out := filepath.Join(t.TempDir(), "separated")
	writeFile(t, filepath.Join(src, ImagesDir, "x.png"), "x")
	writeFile(t, filepath.Join(src, LabelsDir, "x.txt"), "1 0.5 0.5 0.2 0.2\n2 0.1 0.1 0.1 0.1\n")
	writeFile(t, filepath.Join(src, ImagesDir, "y.png"), "y")
	writeFile(t, filepath.Join(src, LabelsDir, "y.txt"), "2 0.5 0.5 0.2 0.2\n")
	s := NewSplitter(classes, newTestLogger(t))

	_, err := s.Split(src, out)
	require.NoError(t, err)
	first, err := s.Summarize(out)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(out))
	_, err = s.Split(src, out)
	require.NoError(t, err)
	second, err := s.Summarize(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []ClassSummary{
		{Class: "FireExtinguisher", Images: 0, Labels: 0},
		{Class: "ToolBox", Images: 1, Labels: 1},
		{Class: "OxygenTank", Images: 2, Labels: 2},
	}, second)
}

func TestFindImage_ExtensionOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "jpg")
	writeFile(t, filepath.Join(dir, "a.png"), "png")

	p, ok := FindImage(dir, "a")

	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a.png"), p)

	_, ok = FindImage(dir, "b")
	assert.False(t, ok)
}

func TestListFiles_NaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"img10.png", "img2.png", "img1.PNG", "skip.txt"} {
		writeFile(t, filepath.Join(dir, n), "")
	}

	names, err := ListFiles(dir, ImageExtensions...)

	require.NoError(t, err)
	assert.Equal(t, []string{"img1.PNG", "img2.png", "img10.png"}, names)
}

// ========================================
// Dataset YAML
// ========================================

func TestWriteClassYAML(t *testing.T) {
	base := t.TempDir()

	path, err := WriteClassYAML(base, "ToolBox")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "ToolBox", "ToolBox.yaml"), path)

	cfg, err := ReadDataConfig(path)
	require.NoError(t, err)

	wantImages, _ := filepath.Abs(filepath.Join(base, "ToolBox", ImagesDir))
	assert.Equal(t, wantImages, cfg.Train)
	assert.Equal(t, cfg.Train, cfg.Val)
	assert.Equal(t, []string{"ToolBox"}, cfg.Names)
}
