package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"safetyvision/internal/config"
	"safetyvision/internal/dataset"
	"safetyvision/internal/logger"
	"safetyvision/internal/training"
)

func main() {
	mode := flag.String("mode", "oneclass", "oneclass | multiclass | summary | yaml")
	dataDir := flag.String("data", "data/oneclass", "Per-class dataset base dir (<data>/<class>/<class>.yaml)")
	dataYAML := flag.String("data-yaml", "data/data.yaml", "Multi-class dataset YAML")
	project := flag.String("project", "", "Runs directory (default MODELS_DIR)")
	hypFile := flag.String("hyp", "", "YAML file overriding the default hyperparameters")
	yoloBin := flag.String("yolo", "yolo", "Ultralytics CLI executable")
	out := flag.String("out", "", "Summary output file (default ACCURACY_SUMMARY)")
	flag.Parse()

	cfg := config.Load()
	l := logger.NewLogger(cfg)
	defer l.Close()

	if *project == "" {
		*project = cfg.ModelsDirectory
	}
	if *out == "" {
		*out = cfg.AccuracySummary
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainer := training.NewTrainer(*yoloBin, *project, training.ExecRunner, l)

	switch *mode {
	case "oneclass":
		hp := loadHyp(*hypFile, training.DefaultOneClass())
		weights, err := trainer.TrainAll(ctx, *dataDir, cfg.Classes, hp)
		if err != nil {
			log.Fatalf("Training failed: %v", err)
		}
		for class, path := range weights {
			fmt.Printf("%s: %s\n", class, path)
		}

	case "multiclass":
		hp := loadHyp(*hypFile, training.DefaultMultiClass())
		path, err := trainer.TrainMulticlass(ctx, *dataYAML, hp)
		if err != nil {
			log.Fatalf("Training failed: %v", err)
		}
		fmt.Printf("multiclass: %s\n", path)

	case "summary":
		report, err := training.Summarize(*project, cfg.Classes, l)
		if err != nil {
			log.Fatalf("Summary failed: %v", err)
		}
		for _, c := range report.Classes {
			fmt.Printf("%-18s mAP50=%.4f\n", c.Class, c.MAP50)
		}
		fmt.Printf("Overall mAP50: %.4f\n", report.Overall)
		if err := training.WriteReport(*out, report); err != nil {
			log.Fatalf("Failed to write %s: %v", *out, err)
		}

	case "yaml":
		for _, class := range cfg.Classes {
			path, err := dataset.WriteClassYAML(*dataDir, class)
			if err != nil {
				log.Fatalf("Failed to write YAML for %s: %v", class, err)
			}
			fmt.Printf("Wrote %s\n", path)
		}

	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

func loadHyp(path string, defaults training.Hyperparameters) training.Hyperparameters {
	if path == "" {
		return defaults
	}
	hp, err := training.LoadHyperparameters(path, defaults)
	if err != nil {
		log.Fatalf("Failed to load hyperparameters: %v", err)
	}
	return hp
}
