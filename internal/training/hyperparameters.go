package training

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Hyperparameters is the fixed argument set passed to one yolo training run.
type Hyperparameters struct {
	Model          string  `yaml:"model"`
	Epochs         int     `yaml:"epochs"`
	ImgSize        int     `yaml:"imgsz"`
	Batch          int     `yaml:"batch"`
	Optimizer      string  `yaml:"optimizer"`
	LR0            float64 `yaml:"lr0"`
	LRF            float64 `yaml:"lrf"`
	WeightDecay    float64 `yaml:"weight_decay"`
	Momentum       float64 `yaml:"momentum"`
	WarmupEpochs   float64 `yaml:"warmup_epochs"`
	WarmupMomentum float64 `yaml:"warmup_momentum"`
	Mosaic         float64 `yaml:"mosaic"`
	HSVH           float64 `yaml:"hsv_h"`
	HSVS           float64 `yaml:"hsv_s"`
	HSVV           float64 `yaml:"hsv_v"`
	Translate      float64 `yaml:"translate"`
	Scale          float64 `yaml:"scale"`
	Mixup          float64 `yaml:"mixup"`
	Shear          float64 `yaml:"shear"`
	CopyPaste      float64 `yaml:"copy_paste"`
	Patience       int     `yaml:"patience"`
	Workers        int     `yaml:"workers"`
	Device         string  `yaml:"device"`
	SingleCls      bool    `yaml:"single_cls"`
	// Name overrides the run directory name; per-class runs use the class name.
	Name string `yaml:"name,omitempty"`
}

// DefaultOneClass is the per-class training recipe.
func DefaultOneClass() Hyperparameters {
	return Hyperparameters{
		Model:          "yolov8s.pt",
		Epochs:         60,
		ImgSize:        640,
		Batch:          14,
		Optimizer:      "AdamW",
		LR0:            0.001,
		LRF:            0.0001,
		WeightDecay:    0.0005,
		Momentum:       0.937,
		WarmupEpochs:   3,
		WarmupMomentum: 0.8,
		Mosaic:         0.1,
		HSVH:           0.015,
		HSVS:           0.7,
		HSVV:           0.4,
		Translate:      0.1,
		Scale:          0.5,
		Patience:       12,
		Workers:        2,
		Device:         "0",
		SingleCls:      true,
	}
}

// DefaultMultiClass is the recipe for one model over every class.
func DefaultMultiClass() Hyperparameters {
	hp := DefaultOneClass()
	hp.Model = "yolov8m.pt"
	hp.Epochs = 200
	hp.Batch = 8
	hp.LR0 = 0.002
	hp.Mosaic = 0.5
	hp.Mixup = 0.1
	hp.CopyPaste = 0.1
	hp.Patience = 25
	hp.Workers = 0
	hp.SingleCls = false
	hp.Name = "multiclass"
	return hp
}

// LoadHyperparameters overlays the YAML file at path on top of defaults.
// Keys missing from the file keep their default value.
func LoadHyperparameters(path string, defaults Hyperparameters) (Hyperparameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read hyperparameters: %w", err)
	}
	hp := defaults
	if err := yaml.Unmarshal(data, &hp); err != nil {
		return defaults, fmt.Errorf("parse hyperparameters %s: %w", path, err)
	}
	return hp, nil
}

// Args renders the set as yolo CLI key=value pairs. name and project are not included.
func (h Hyperparameters) Args() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		"model=" + h.Model,
		"epochs=" + strconv.Itoa(h.Epochs),
		"imgsz=" + strconv.Itoa(h.ImgSize),
		"batch=" + strconv.Itoa(h.Batch),
		"optimizer=" + h.Optimizer,
		"lr0=" + f(h.LR0),
		"lrf=" + f(h.LRF),
		"weight_decay=" + f(h.WeightDecay),
		"momentum=" + f(h.Momentum),
		"warmup_epochs=" + f(h.WarmupEpochs),
		"warmup_momentum=" + f(h.WarmupMomentum),
		"mosaic=" + f(h.Mosaic),
		"hsv_h=" + f(h.HSVH),
		"hsv_s=" + f(h.HSVS),
		"hsv_v=" + f(h.HSVV),
		"translate=" + f(h.Translate),
		"scale=" + f(h.Scale),
		"mixup=" + f(h.Mixup),
		"shear=" + f(h.Shear),
		"copy_paste=" + f(h.CopyPaste),
		"patience=" + strconv.Itoa(h.Patience),
		"workers=" + strconv.Itoa(h.Workers),
		"device=" + h.Device,
		"single_cls=" + strconv.FormatBool(h.SingleCls),
	}
}
