package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLASSES", "")
	t.Setenv("NMS_ENABLED", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")

	cfg := Load()

	assert.Equal(t, []string{"FireExtinguisher", "ToolBox", "OxygenTank"}, cfg.Classes)
	assert.Equal(t, 0.5, cfg.ConfidenceThreshold)
	assert.Equal(t, 0.5, cfg.IoUThreshold)
	assert.True(t, cfg.NMSEnabled)
	assert.False(t, cfg.NMSClassAware)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CLASSES", " Helmet , ,Vest")
	t.Setenv("NMS_CLASS_AWARE", "true")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.35")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("MODELS_DIR", "models")
	t.Setenv("MODEL_FILE", "best.onnx")

	cfg := Load()

	assert.Equal(t, []string{"Helmet", "Vest"}, cfg.Classes)
	assert.True(t, cfg.NMSClassAware)
	assert.Equal(t, 0.35, cfg.ConfidenceThreshold)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, filepath.Join("models", "Helmet", "best.onnx"), cfg.ModelPath("Helmet"))
}

func TestAuthEnabled(t *testing.T) {
	assert.False(t, (&Config{}).AuthEnabled())
	assert.True(t, (&Config{Password: "secret"}).AuthEnabled())
}
