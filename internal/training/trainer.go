package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"safetyvision/internal/dataset"
	"safetyvision/internal/logger"
)

// ErrDatasetMissing is returned when a class has no dataset YAML.
var ErrDatasetMissing = errors.New("dataset yaml not found")

// Runner executes one external command. The default runs it with os/exec.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner streams the command's output to the process stdout/stderr.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Trainer drives `yolo detect train` runs into one project directory.
type Trainer struct {
	bin     string
	project string
	runner  Runner
	logger  *logger.Logger
}

// NewTrainer creates a trainer that writes runs to <project>/<name>.
func NewTrainer(bin, project string, runner Runner, logger *logger.Logger) *Trainer {
	if runner == nil {
		runner = ExecRunner
	}
	return &Trainer{bin: bin, project: project, runner: runner, logger: logger}
}

// Command returns the argument list for one run.
func (t *Trainer) Command(dataYAML string, hp Hyperparameters, name string) []string {
	args := []string{"detect", "train", "data=" + dataYAML}
	args = append(args, hp.Args()...)
	return append(args, "name="+name, "project="+t.project, "exist_ok=true")
}

// WeightsPath is where a run's best weights end up.
func (t *Trainer) WeightsPath(name string) string {
	return filepath.Join(t.project, name, "weights", "best.pt")
}

// Train runs one training invocation and returns the best weights path.
func (t *Trainer) Train(ctx context.Context, dataYAML string, hp Hyperparameters, name string) (string, error) {
	t.logger.Info("Training %s on %s (%s, %d epochs)", name, dataYAML, hp.Model, hp.Epochs)

	if err := t.runner(ctx, t.bin, t.Command(dataYAML, hp, name)...); err != nil {
		return "", fmt.Errorf("train %s: %w", name, err)
	}

	weights := t.WeightsPath(name)
	t.logger.Info("Training %s finished, weights at %s", name, weights)
	return weights, nil
}

// TrainClass trains the single-class model for class from <baseDir>/<class>/<class>.yaml.
func (t *Trainer) TrainClass(ctx context.Context, baseDir, class string, hp Hyperparameters) (string, error) {
	yamlPath := dataset.ClassYAMLPath(baseDir, class)
	if _, err := os.Stat(yamlPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrDatasetMissing, yamlPath)
	}
	return t.Train(ctx, yamlPath, hp, class)
}

// TrainAll trains one model per class in order. Classes without a dataset
// YAML are logged and skipped; any other failure stops the loop.
func (t *Trainer) TrainAll(ctx context.Context, baseDir string, classes []string, hp Hyperparameters) (map[string]string, error) {
	weights := make(map[string]string, len(classes))
	for _, class := range classes {
		path, err := t.TrainClass(ctx, baseDir, class, hp)
		if errors.Is(err, ErrDatasetMissing) {
			t.logger.Warning("Skipping %s: %v", class, err)
			continue
		}
		if err != nil {
			return weights, err
		}
		weights[class] = path
	}
	return weights, nil
}

// TrainMulticlass trains a single model over the full label set.
func (t *Trainer) TrainMulticlass(ctx context.Context, dataYAML string, hp Hyperparameters) (string, error) {
	if _, err := os.Stat(dataYAML); err != nil {
		return "", fmt.Errorf("%w: %s", ErrDatasetMissing, dataYAML)
	}
	name := hp.Name
	if name == "" {
		name = "multiclass"
	}
	return t.Train(ctx, dataYAML, hp, name)
}
