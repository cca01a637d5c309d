package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vhoang/docbot/api"
	"github.com/vhoang/docbot/chat"
	"github.com/vhoang/docbot/config"
	"github.com/vhoang/docbot/embeddings"
	"github.com/vhoang/docbot/index"
	"github.com/vhoang/docbot/ingestion"
	"github.com/vhoang/docbot/llm"
	"github.com/vhoang/docbot/memory"
	"github.com/vhoang/docbot/splitter"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration: %v", err)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// buildIndex wires embedder, store, and index in that order. The close
// function releases the store.
func buildIndex(ctx context.Context, cfg config.Config, logger *log.Logger) (*index.Index, func(), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	store, closeStore, err := index.NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("vector store setup: %w", err)
	}

	ix, err := index.New(embedder, store, cfg.Embeddings.Dimension, logger)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("index setup: %w", err)
	}
	return ix, closeStore, nil
}

func buildIngestion(cfg config.Config, ix *index.Index, logger *log.Logger) (*ingestion.Service, error) {
	sp, err := splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("splitter setup: %w", err)
	}
	return ingestion.NewService(sp, ix, logger), nil
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "directory containing documents to ingest")
	file := flags.String("file", "", "single file to ingest instead of a directory")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ix, closeStore, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closeStore()

	svc, err := buildIngestion(cfg, ix, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	var stats ingestion.Stats
	if *file != "" {
		stats, err = svc.IngestFile(ctx, *file)
	} else {
		logger.Printf("ingesting documents from %s using %s/%s embeddings", *dataDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)
		stats, err = svc.IngestDirectory(ctx, *dataDir)
	}
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %d chunks (%d characters)\n", stats.Chunks, stats.Chars)
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	useContext := flags.Bool("context", true, "retrieve document context for each question")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ix, closeStore, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closeStore()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	assembler := chat.NewAssembler(ix, cfg.TopK, logger)
	svc := chat.NewService(assembler, llmClient, memory.New(cfg.MemoryLimit), cfg.RecordFailedExchanges, logger)

	fmt.Println("Ask a question, or use /history, /clear, /quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return
		case line == "/clear":
			svc.ClearHistory()
			fmt.Println("History cleared.")
			continue
		case line == "/history":
			for _, ex := range svc.History() {
				fmt.Printf("Q: %s\nA: %s\n\n", ex.Question, ex.Answer)
			}
			continue
		}

		result, err := svc.Ask(ctx, line, *useContext)
		if err != nil {
			logger.Printf("ask failed: %v", err)
			continue
		}
		fmt.Println(result.Text())
	}
	if err := scanner.Err(); err != nil {
		logger.Fatalf("read question: %v", err)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "listen address for the HTTP API")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ix, closeStore, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closeStore()

	ingestSvc, err := buildIngestion(cfg, ix, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	newSession := func() *chat.Service {
		assembler := chat.NewAssembler(ix, cfg.TopK, logger)
		return chat.NewService(assembler, llmClient, memory.New(cfg.MemoryLimit), cfg.RecordFailedExchanges, logger)
	}

	server := api.New(ingestSvc, newSession, logger)
	httpServer := &http.Server{Addr: *addr, Handler: server.Handler()}

	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	logger.Printf("serving HTTP API on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all indexed document chunks. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ix, closeStore, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closeStore()

	if err := ix.Clear(ctx); err != nil {
		logger.Fatalf("clear index: %v", err)
	}
	logger.Println("indexed chunks removed")
}

func printUsage() {
	fmt.Println("Usage: docbot <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest documents into the vector index (use --dir or --file)")
	fmt.Println("  chat     Chat with the assistant over the ingested documents")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  clear    Remove all indexed document chunks")
}
