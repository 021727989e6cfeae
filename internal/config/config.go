package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	Classes         []string
	ModelsDirectory string
	ModelFile       string // weights path relative to <ModelsDirectory>/<class>
	Backend         string // "opencv" or "onnxruntime"
	OnnxLibraryPath string
	InputSize       int

	ConfidenceThreshold float64 // ensemble filter, strictly greater passes
	IoUThreshold        float64 // cross-model suppression
	ModelConfidence     float64 // per-model decode floor
	ModelIoU            float64 // per-model NMS
	NMSEnabled          bool
	NMSClassAware       bool

	UploadDirectory string
	OutputDirectory string
	DatabasePath    string
	LogDirectory    string
	StaticDirectory string
	AccuracySummary string // path to a YAML/JSON accuracy summary shown on the dashboard
	MaxUploadSize   int64  // bytes
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", ""),

		Classes:         getEnvAsList("CLASSES", []string{"FireExtinguisher", "ToolBox", "OxygenTank"}),
		ModelsDirectory: getEnv("MODELS_DIR", filepath.Join(".", "runs", "detect")),
		ModelFile:       getEnv("MODEL_FILE", filepath.Join("weights", "best.onnx")),
		Backend:         getEnv("BACKEND", "opencv"),
		OnnxLibraryPath: getEnv("ONNXRUNTIME_LIB", ""),
		InputSize:       getEnvAsInt("INPUT_SIZE", 640),

		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		IoUThreshold:        getEnvAsFloat("IOU_THRESHOLD", 0.5),
		ModelConfidence:     getEnvAsFloat("MODEL_CONFIDENCE", 0.25),
		ModelIoU:            getEnvAsFloat("MODEL_IOU", 0.7),
		NMSEnabled:          getEnvAsBool("NMS_ENABLED", true),
		NMSClassAware:       getEnvAsBool("NMS_CLASS_AWARE", false),

		UploadDirectory: getEnv("UPLOAD_DIR", filepath.Join(".", "data_collection")),
		OutputDirectory: getEnv("OUTPUT_DIR", filepath.Join(".", "output")),
		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "detections.db")),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),
		AccuracySummary: getEnv("ACCURACY_SUMMARY", filepath.Join(".", "accuracy.yaml")),
		MaxUploadSize:   getEnvAsInt64("MAX_UPLOAD_SIZE", 20<<20),
	}
}

// ModelPath returns the weights file for one class.
func (c *Config) ModelPath(class string) string {
	return filepath.Join(c.ModelsDirectory, class, c.ModelFile)
}

// AuthEnabled reports whether a dashboard password is configured.
func (c *Config) AuthEnabled() bool {
	return c.Password != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
