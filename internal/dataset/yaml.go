package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataConfig is the dataset description the yolo trainer reads.
type DataConfig struct {
	Path  string   `yaml:"path,omitempty"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test,omitempty"`
	NC    int      `yaml:"nc,omitempty"`
	Names []string `yaml:"names"`
}

// ClassYAMLPath is where the per-class dataset YAML lives.
func ClassYAMLPath(baseDir, class string) string {
	return filepath.Join(baseDir, class, class+".yaml")
}

// WriteClassYAML writes <baseDir>/<class>/<class>.yaml. The class images are
// used for both train and val, with absolute paths.
func WriteClassYAML(baseDir, class string) (string, error) {
	imagesDir, err := filepath.Abs(filepath.Join(baseDir, class, ImagesDir))
	if err != nil {
		return "", err
	}

	path := ClassYAMLPath(baseDir, class)
	cfg := DataConfig{Train: imagesDir, Val: imagesDir, Names: []string{class}}
	if err := WriteDataConfig(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}

// WriteDataConfig marshals cfg to path, creating parent directories.
func WriteDataConfig(path string, cfg DataConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create yaml directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal dataset yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write dataset yaml: %w", err)
	}
	return nil
}

// ReadDataConfig loads a dataset YAML.
func ReadDataConfig(path string) (*DataConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DataConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
