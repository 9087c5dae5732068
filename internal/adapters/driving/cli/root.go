// Package cli provides the plancite command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/app"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

// annotationOffline marks commands that run without services.
const annotationOffline = "offline"

var (
	// version is set at build time with -ldflags.
	version = "dev"

	configPath string
	verbose    bool
	jsonOutput bool
)

// Services used by commands. They are wired by loadServices before a
// command runs unless already set.
var (
	indexingService  driving.IndexingService
	retrievalService driving.RetrievalService
	answerService    driving.AnswerService
	highlightService driving.HighlightService
	structureService driving.StructureService
	metricsHandler   http.Handler
	serverAddr       string

	closeServices func() error
)

// loadApp builds the services from configuration. Tests replace it.
var loadApp = app.Load

var rootCmd = &cobra.Command{
	Use:   "plancite",
	Short: "Citation-preserving search over construction PDFs",
	Long: `plancite indexes construction drawings and specifications and answers
questions with citations that point back to a page and a box on that page.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.plancite/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON output")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer teardown()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd.Annotations[annotationOffline] == "true" || retrievalService != nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := loadApp(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}

	indexingService = a.Indexing
	retrievalService = a.Retrieval
	answerService = a.Answer
	highlightService = a.Highlight
	structureService = a.Structure
	metricsHandler = a.Metrics.Handler()
	serverAddr = a.Settings.Server.Addr
	closeServices = a.Close
	return nil
}

func teardown() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("Closing services: %v", err)
	}
	closeServices = nil
	indexingService = nil
	retrievalService = nil
	answerService = nil
	highlightService = nil
	structureService = nil
	metricsHandler = nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

var errNotConfigured = errors.New("service not configured")

func requireService(name string, ok bool) error {
	if !ok {
		return fmt.Errorf("%s %w", name, errNotConfigured)
	}
	return nil
}
