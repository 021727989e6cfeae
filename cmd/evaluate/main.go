package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/evaluation"
	"safetyvision/internal/logger"
	"safetyvision/internal/service/ai"
)

func main() {
	images := flag.String("images", "data/test/images", "Test images")
	labels := flag.String("labels", "data/test/labels", "Ground-truth labels")
	pred := flag.String("pred", "ensemble_preds", "Directory for prediction files")
	conf := flag.Float64("conf", evaluation.DefaultConfidence, "Ensemble confidence threshold")
	iou := flag.Float64("iou", detect.DefaultIoUThreshold, "Cross-model NMS IoU threshold")
	modelIoU := flag.Float64("model-iou", evaluation.DefaultModelIoU, "Per-model NMS IoU threshold")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	flag.Parse()

	cfg := ai.EvaluationConfig(config.Load(), *conf, *modelIoU)
	l := logger.NewLogger(cfg)
	defer l.Close()

	registry, err := ai.LoadRegistry(cfg, l)
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	defer registry.Close()

	opts := ai.EnsembleOptions(cfg)
	opts.ConfidenceThreshold = *conf
	opts.IoUThreshold = *iou

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := evaluation.NewEvaluator(detect.NewEnsemble(registry, opts), l).Run(ctx, *images, *labels, *pred)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}

	labelsByID := registry.Labels()
	ids := make([]int, 0, len(report.Metrics.PerClass))
	for id := range report.Metrics.PerClass {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Printf("Images: %d  Predictions: %d  Malformed: %d\n", report.Images, report.Predictions, report.Malformed)
	for _, id := range ids {
		name := fmt.Sprintf("class %d", id)
		if id >= 0 && id < len(labelsByID) {
			name = labelsByID[id]
		}
		fmt.Printf("  %-18s AP50=%.4f (gt=%d)\n", name, report.Metrics.PerClass[id], report.Metrics.GroundTruths[id])
	}
	fmt.Printf("Ensemble mAP50: %.4f\n", report.Metrics.MAP)
}
