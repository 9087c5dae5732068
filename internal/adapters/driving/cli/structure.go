package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

var (
	structureDocuments []string
	structureThreshold float64
)

var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Group indexed chunks into topics",
	Long: `Clusters chunks by embedding similarity and prints one line per cluster
with its most common section title and the pages it spans. Chunks without
an embedding each form their own cluster.`,
	Args: cobra.NoArgs,
	RunE: runStructure,
}

func init() {
	structureCmd.Flags().StringSliceVar(&structureDocuments, "doc", nil, "restrict to document ids")
	structureCmd.Flags().Float64Var(&structureThreshold, "threshold", 0, "merge threshold in (0,1] (0 = configured)")
	rootCmd.AddCommand(structureCmd)
}

func runStructure(cmd *cobra.Command, _ []string) error {
	if err := requireService("structure", structureService != nil); err != nil {
		return err
	}

	res, err := structureService.Cluster(cmd.Context(), structureDocuments, structureThreshold)
	if err != nil {
		return fmt.Errorf("structure failed: %w", err)
	}
	if res.InsufficientContent {
		return fmt.Errorf("structure failed: %w", domain.ErrInsufficientContent)
	}

	if jsonOutput {
		return printJSON(cmd, res)
	}

	cmd.Printf("Topics (threshold %.2f):\n\n", res.Threshold)
	for i := range res.Clusters {
		c := &res.Clusters[i]
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("  %-6s %s  pp. %s  [%d chunks]\n", c.ID, title, joinPages(c.Pages), len(c.ChunkIDs))
	}
	if n := len(res.Unembedded); n > 0 {
		cmd.Printf("\n%d chunks had no embedding and were left unclustered.\n", n)
	}
	return nil
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
