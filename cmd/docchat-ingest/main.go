package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/extract"
	"docchat/internal/ingest"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, file string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&file, "file", "", "Ingest a single PDF into the existing index instead of the documents folder")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	embedder, err := app.BuildEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	chk, err := app.BuildChunker(cfg)
	if err != nil {
		log.Fatalf("chunker init failed: %v", err)
	}

	pipeline := ingest.NewPipeline(extract.NewPDFExtractor(), chk, embedder, cfg.Index.Dir, nil)
	ctx := context.Background()

	if file != "" {
		if err := pipeline.Ingest(ctx, file); err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		fmt.Printf("Indexed %s into %s\n", file, cfg.Index.Dir)
		return
	}

	folder := cfg.DocumentsDir
	if args := flag.Args(); len(args) > 0 {
		folder = args[0]
	}
	report, err := pipeline.IngestAll(ctx, folder)
	if report != nil {
		fmt.Printf("Indexed %d chunks from %d files in %s\n", report.Chunks, report.Files, folder)
		if report.Digest != "" {
			fmt.Printf("Digest: %s\n", report.Digest)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "skipped %s: %v\n", f.Path, f.Err)
		}
	}
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	if report != nil && len(report.Failures) > 0 {
		os.Exit(1)
	}
}
