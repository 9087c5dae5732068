package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/services"
)

var (
	askTopK             int
	askMaxContextTokens int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with citations",
	Long: `Retrieves the most relevant chunks and asks the configured LLM for an
answer. Every citation names the source file, page and bounding box of the
chunk it came from.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	addSearchFlags(askCmd, &askTopK, services.DefaultAnswerTopK)
	askCmd.Flags().IntVar(&askMaxContextTokens, "max-context-tokens", 0, "token budget for retrieved context (0 = configured)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireService("answer", answerService != nil); err != nil {
		return err
	}
	search, err := searchOptions(cmd, askTopK)
	if err != nil {
		return err
	}

	ans, err := answerService.Answer(cmd.Context(), args[0], domain.AnswerOptions{
		Search:           search,
		MaxContextTokens: askMaxContextTokens,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, ans)
	}

	cmd.Println(ans.Answer)
	if len(ans.Citations) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Citations:")
	for i := range ans.Citations {
		c := &ans.Citations[i]
		cmd.Printf("  [%d] %s p.%d %s (confidence %.2f)\n", i+1, c.SourceFilename, c.PageNumber, c.BBox, c.Confidence)
		if c.Snippet != "" {
			cmd.Printf("      %s\n", c.Snippet)
		}
	}
	cmd.Printf("\n%d of %d results cited (%s)\n", ans.Metadata.ResultsCited, ans.Metadata.ResultsConsidered, ans.Metadata.SearchMethod)
	return nil
}
