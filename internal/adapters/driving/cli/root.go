// Package cli provides the cobra command tree for finrag.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/core/services"
	"github.com/custodia-labs/finrag/internal/logger"
)

// version is set at build time through SetVersion.
var version = "dev"

var (
	verbose   bool
	configDir string
)

// Services used by the commands. main fills them through SetWiring; tests
// assign them directly.
var (
	settingsService  driving.SettingsService
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	statelessQuery   driving.QueryService
	queryParser      driving.QueryParser = services.NewQueryParser()
	vectorStore      driven.VectorStore
	sessionStore     driven.SessionStore
	conversation     *services.ConversationMemory
	closeServices    func() error
)

// Services holds what Connect builds: everything that needs a reachable
// embedding provider or vector store.
type Services struct {
	Ingestion driving.IngestionService
	Query     driving.QueryService
	Store     driven.VectorStore
	Sessions  driven.SessionStore

	// Memory is the conversation memory attached to Query.
	Memory *services.ConversationMemory

	// Stateless answers without conversation memory. The MCP server uses
	// it so one client never sees another client's turns. Nil means Query
	// keeps no memory and can be shared.
	Stateless driving.QueryService

	// Warnings are printed before the command runs, e.g. a missing LLM.
	Warnings []string

	// Close releases every resource above.
	Close func() error
}

// Wiring builds services once flags are parsed. Settings runs for every
// command. Connect runs only for commands that embed, store or generate,
// so settings can still be fixed while a provider is down.
type Wiring struct {
	Settings func(configDir string) (driving.SettingsService, error)
	Connect  func(ctx context.Context, configDir string, settings *domain.AppSettings) (*Services, error)
}

var wiring Wiring

// SetWiring installs the service constructors used by the commands.
func SetWiring(w Wiring) {
	wiring = w
}

// SetVersion sets the version reported by 'finrag version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Ask questions over your financial documents",
	Long: `finrag ingests financial text (filings, news, transcripts), stores it
in a vector index and answers questions by retrieving relevant passages
and passing them to a language model.

Questions may carry inline filters:
  finrag ask "ticker: AAPL revenue from 2023-01-01"
  finrag ask "form: 10-K risk factors in 2022"`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.finrag)")
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer func() {
		if closeServices != nil {
			if err := closeServices(); err != nil {
				logger.Warn("closing services: %v", err)
			}
			closeServices = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func setup(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if settingsService == nil && wiring.Settings != nil {
		svc, err := wiring.Settings(configDir)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		settingsService = svc
	}
	return nil
}

// connect builds the provider-backed services on first use.
func connect(cmd *cobra.Command) error {
	if ingestionService != nil && queryService != nil && vectorStore != nil {
		return nil
	}
	if wiring.Connect == nil {
		return errors.New("services not configured")
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	svc, err := wiring.Connect(cmd.Context(), configDir, settings)
	if err != nil {
		return err
	}
	for _, w := range svc.Warnings {
		cmd.PrintErrf("Warning: %s\n", w)
	}

	ingestionService = svc.Ingestion
	queryService = svc.Query
	statelessQuery = svc.Stateless
	vectorStore = svc.Store
	sessionStore = svc.Sessions
	conversation = svc.Memory
	closeServices = svc.Close
	return nil
}
