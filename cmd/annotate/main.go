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
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"
	"safetyvision/internal/service"
	"safetyvision/internal/service/ai"
)

func main() {
	in := flag.String("in", "test_images", "Folder of images to annotate")
	out := flag.String("out", "annotated", "Output folder")
	flag.Parse()

	cfg := config.Load()
	l := logger.NewLogger(cfg)
	defer l.Close()

	registry, err := ai.LoadRegistry(cfg, l)
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	defer registry.Close()

	ensemble := detect.NewEnsemble(registry, ai.EnsembleOptions(cfg))
	mng := service.NewManager(ensemble, ai.NewAnnotator(cfg), nil, nil, nil, nil, l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := mng.AnnotateDirectory(ctx, *in, *out)
	if err != nil {
		log.Fatalf("Annotation failed after %d image(s): %v", n, err)
	}
	fmt.Printf("Annotated %d image(s) into %s\n", n, *out)
}
