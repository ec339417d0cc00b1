// Command finrag ingests financial documents and answers questions over them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/finrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/finrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/finrag/internal/adapters/driven/storage"
	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/finrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/core/services"
	"github.com/custodia-labs/finrag/internal/postprocessors/chunker"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is fine; API keys may come from the environment or config.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetWiring(cli.Wiring{
		Settings: openSettings,
		Connect:  connect,
	})

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func openSettings(configDir string) (driving.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	return services.NewSettingsService(store, ai.NewConfigValidator()), nil
}

// subDir returns dir/name, or "" so each adapter falls back to its own
// default under the home directory.
func subDir(configDir, name string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, name)
}

func connect(ctx context.Context, configDir string, settings *domain.AppSettings) (*cli.Services, error) {
	aiServices, err := ai.Init(settings)
	if err != nil {
		return nil, err
	}

	storeSettings := settings.Store
	if storeSettings.Path == "" {
		storeSettings.Path = subDir(configDir, "data")
	}
	store, err := storage.OpenVectorStore(ctx, storeSettings)
	if err != nil {
		aiServices.Close()
		return nil, err
	}

	sessions, err := bolt.NewSessionStore(subDir(configDir, "data"))
	if err != nil {
		aiServices.Close()
		_ = store.Close()
		return nil, err
	}

	prompts, err := file.NewPromptStore(subDir(configDir, "prompts"))
	if err != nil {
		aiServices.Close()
		_ = store.Close()
		_ = sessions.Close()
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	splitter := chunker.New(
		chunker.WithChunkSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	loader := services.NewDocumentLoader(splitter)
	ingestion := services.NewIngestionService(loader, aiServices.EmbeddingService, store)

	memory := services.NewConversationMemory(
		services.WithMaxHistory(settings.Memory.MaxHistory),
		services.WithMaxTokens(settings.Memory.MaxTokens),
	)
	engine := services.NewQueryEngine(aiServices.EmbeddingService, store, aiServices.LLMService,
		services.WithTopK(settings.Query.TopK),
		services.WithMemory(memory),
		services.WithPromptStore(prompts),
	)
	stateless := services.NewQueryEngine(aiServices.EmbeddingService, store, aiServices.LLMService,
		services.WithTopK(settings.Query.TopK),
		services.WithPromptStore(prompts),
	)

	return &cli.Services{
		Ingestion: ingestion,
		Query:     engine,
		Stateless: stateless,
		Store:     store,
		Sessions:  sessions,
		Memory:    memory,
		Warnings:  aiServices.Warnings,
		Close: func() error {
			aiServices.Close()
			return errors.Join(store.Close(), sessions.Close())
		},
	}, nil
}
