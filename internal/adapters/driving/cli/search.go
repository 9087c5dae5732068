package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/textutil"
)

var (
	searchTopK          int
	searchDocuments     []string
	searchPage          int
	searchCategory      string
	searchVectorWeight  float64
	searchKeywordWeight float64
	searchNoRerank      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across all indexed documents.
Combines keyword (BM25) and semantic (vector) search and prints each hit
with its page and bounding box.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd, &searchTopK, 10)
	rootCmd.AddCommand(searchCmd)
}

// addSearchFlags registers the retrieval flags shared by search and ask.
func addSearchFlags(cmd *cobra.Command, topK *int, defTopK int) {
	f := cmd.Flags()
	f.IntVarP(topK, "top-k", "k", defTopK, "maximum number of results")
	f.StringSliceVar(&searchDocuments, "doc", nil, "restrict to document ids")
	f.IntVar(&searchPage, "page", 0, "restrict to a page number")
	f.StringVar(&searchCategory, "category", "", "restrict to an element category (title, text, table, image)")
	f.Float64Var(&searchVectorWeight, "vector-weight", 0, "override the vector weight")
	f.Float64Var(&searchKeywordWeight, "keyword-weight", 0, "override the keyword weight")
	f.BoolVar(&searchNoRerank, "no-rerank", false, "skip the rerank stage")
}

func searchOptions(cmd *cobra.Command, topK int) (domain.SearchOptions, error) {
	opts := domain.SearchOptions{
		TopK:       topK,
		SkipRerank: searchNoRerank,
		Filter: domain.MetadataFilter{
			DocumentIDs: searchDocuments,
			PageNumber:  searchPage,
		},
	}
	if searchCategory != "" {
		cat := domain.ElementCategory(searchCategory)
		if !cat.IsValid() {
			return opts, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, searchCategory)
		}
		opts.Filter.Category = cat
	}
	if cmd.Flags().Changed("vector-weight") || cmd.Flags().Changed("keyword-weight") {
		w := domain.DefaultRetrievalConfig().Weights
		if cmd.Flags().Changed("vector-weight") {
			w.Vector = searchVectorWeight
		}
		if cmd.Flags().Changed("keyword-weight") {
			w.Keyword = searchKeywordWeight
		}
		opts.Weights = &w
	}
	return opts, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireService("retrieval", retrievalService != nil); err != nil {
		return err
	}
	opts, err := searchOptions(cmd, searchTopK)
	if err != nil {
		return err
	}

	resp, err := retrievalService.Retrieve(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%s):\n", resp.Method)
	for _, d := range resp.Degraded {
		cmd.Printf("  degraded: %s\n", d)
	}
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]
		cmd.Printf("  [%d] %s p.%d %s (%.3f)\n", i+1, r.SourceFilename, r.PageNumber, r.BBox, r.Score)
		if r.SectionTitle != "" {
			cmd.Printf("      Section: %s\n", r.SectionTitle)
		}
		cmd.Printf("      %s\n", textutil.Snippet(r.Content, 160))
		cmd.Printf("      chunk %s\n", r.ChunkID)
		cmd.Println()
	}
	return nil
}
