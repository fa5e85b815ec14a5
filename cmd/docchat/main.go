package main

import (
	"errors"
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docchat/internal/app"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/domain"
	"docchat/internal/retriever"
	"docchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, role string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docchat/config.yaml if not provided)")
	flag.StringVar(&role, "role", "", "Optional role tag folded into prompt framing (e.g. Manager)")
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
	model, err := app.BuildChatModel(cfg)
	if err != nil {
		log.Fatalf("llm init failed: %v", err)
	}

	ret, err := retriever.Open(embedder, cfg.Index.Dir)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			log.Fatalf("no index at %s; run docchat-ingest first", cfg.Index.Dir)
		}
		log.Fatalf("failed to open index: %v", err)
	}

	engine := chat.NewEngine(ret, model, cfg.Retrieval.TopK)
	m := tui.New(engine, role)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
