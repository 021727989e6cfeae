package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"safetyvision/internal/config"
	"safetyvision/internal/logger"
)

// StampFormat prefixes stored file names.
const StampFormat = "20060102_150405.000"

// OutputPrefix marks annotated images in the output directory.
const OutputPrefix = "ensemble_"

// ErrInvalidName is returned for names that would escape the storage directory.
var ErrInvalidName = errors.New("invalid file name")

// StorageService persists uploads and annotated images on disk.
type StorageService struct {
	uploadDir string
	outputDir string
	logger    *logger.Logger
}

// NewStorageService creates the service; directories are created lazily.
func NewStorageService(config *config.Config, logger *logger.Logger) *StorageService {
	return &StorageService{
		uploadDir: config.UploadDirectory,
		outputDir: config.OutputDirectory,
		logger:    logger,
	}
}

// OutputDir returns the annotated image directory.
func (s *StorageService) OutputDir() string {
	return s.outputDir
}

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 32, r == '/', r == ':':
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// SaveUpload writes the original upload as <uploadDir>/<stamp>_<name>.
func (s *StorageService) SaveUpload(name string, data []byte, at time.Time) (string, error) {
	filename := fmt.Sprintf("%s_%s", at.Format(StampFormat), SanitizeName(name))
	return s.write(s.uploadDir, filename, data)
}

// AnnotatedName is the output file name for an upload: ensemble_<stamp>_<stem>.png.
func AnnotatedName(name string, at time.Time) string {
	base := SanitizeName(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s%s_%s.png", OutputPrefix, at.Format(StampFormat), stem)
}

// ParseAnnotatedName reverses AnnotatedName, returning the upload stem and the stamp.
func ParseAnnotatedName(name string) (string, time.Time, error) {
	rest, ok := strings.CutPrefix(name, OutputPrefix)
	if !ok || filepath.Ext(rest) != ".png" {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	rest = strings.TrimSuffix(rest, ".png")
	if len(rest) < len(StampFormat)+2 || rest[len(StampFormat)] != '_' {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	at, err := time.ParseInLocation(StampFormat, rest[:len(StampFormat)], time.Local)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return rest[len(StampFormat)+1:], at, nil
}

// SaveAnnotated writes a PNG to the output directory and returns its path.
func (s *StorageService) SaveAnnotated(name string, png []byte, at time.Time) (string, error) {
	return s.write(s.outputDir, AnnotatedName(name, at), png)
}

func (s *StorageService) write(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("error saving %s: %w", filename, err)
	}
	return path, nil
}

// OutputPath resolves an annotated image name inside the output directory.
func (s *StorageService) OutputPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(s.outputDir, name), nil
}

// Remove deletes files, ignoring ones already gone.
func (s *StorageService) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Failed to delete file %s: %v", p, err)
		}
	}
}

// Clear deletes every regular file in the upload and output directories.
func (s *StorageService) Clear() error {
	for _, dir := range []string{s.uploadDir, s.outputDir} {
		files, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, f := range files {
			if !f.IsDir() {
				s.Remove(filepath.Join(dir, f.Name()))
			}
		}
	}
	s.logger.Info("Cleared %s and %s", s.uploadDir, s.outputDir)
	return nil
}
