package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"safetyvision/internal/config"
	"safetyvision/internal/dataset"
	"safetyvision/internal/logger"
)

func main() {
	dataDir := flag.String("data", "data", "Dataset root containing <split>/images and <split>/labels")
	split := flag.String("split", "test", "Split to partition")
	classesFile := flag.String("classes", "", "classes.txt, one name per line (default <data>/classes.txt)")
	outDir := flag.String("out", "", "Output directory (default <data>/oneclass_<split>)")
	writeYAML := flag.Bool("yaml", false, "Also write <out>/<class>/<class>.yaml for each class")
	flag.Parse()

	cfg := config.Load()
	l := logger.NewLogger(cfg)
	defer l.Close()

	if *classesFile == "" {
		*classesFile = filepath.Join(*dataDir, "classes.txt")
	}
	if *outDir == "" {
		*outDir = filepath.Join(*dataDir, "oneclass_"+*split)
	}

	classes, err := dataset.ReadClasses(*classesFile)
	if err != nil {
		log.Fatalf("Failed to read classes: %v", err)
	}

	splitter := dataset.NewSplitter(classes, l)
	result, err := splitter.Split(filepath.Join(*dataDir, *split), *outDir)
	if err != nil {
		log.Fatalf("Split failed: %v", err)
	}

	fmt.Printf("Processed %d label files, skipped %d\n", result.Processed, result.Skipped)

	summary, err := splitter.Summarize(*outDir)
	if err != nil {
		log.Fatalf("Failed to summarize %s: %v", *outDir, err)
	}
	for _, s := range summary {
		fmt.Printf("  %-18s images=%d labels=%d\n", s.Class, s.Images, s.Labels)
	}

	if *writeYAML {
		for _, class := range classes {
			path, err := dataset.WriteClassYAML(*outDir, class)
			if err != nil {
				log.Fatalf("Failed to write YAML for %s: %v", class, err)
			}
			fmt.Printf("Wrote %s\n", path)
		}
	}
}
