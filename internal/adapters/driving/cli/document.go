package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage indexed documents",
	Long:  `List, inspect or delete indexed documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a document from every index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if err := requireService("indexing", indexingService != nil); err != nil {
		return err
	}

	docs, err := indexingService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, docs)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}
	for i := range docs {
		cmd.Printf("  %-24s %-32s %3d pages  %s\n", docs[i].ID, docs[i].Filename, docs[i].PageCount(),
			docs[i].IndexedAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if err := requireService("indexing", indexingService != nil); err != nil {
		return err
	}

	docs, err := indexingService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	var doc *domain.Document
	for i := range docs {
		if docs[i].ID == args[0] {
			doc = &docs[i]
			break
		}
	}
	if doc == nil {
		return fmt.Errorf("failed to get document: %s: %w", args[0], domain.ErrNotFound)
	}
	if jsonOutput {
		return printJSON(cmd, doc)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  File:     %s\n", doc.Filename)
	hash := doc.ContentHash
	if hash == "" {
		hash = "(incomplete, re-indexed on next run)"
	}
	cmd.Printf("  Hash:     %s\n", hash)
	cmd.Printf("  Indexed:  %s\n", doc.IndexedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Pages:    %d\n", doc.PageCount())
	for i, p := range doc.Pages {
		if p.Rotation != 0 {
			cmd.Printf("    p.%-4d %.0f x %.0f pt, rotated %d\n", i+1, p.Width, p.Height, p.Rotation)
			continue
		}
		cmd.Printf("    p.%-4d %.0f x %.0f pt\n", i+1, p.Width, p.Height)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if err := requireService("indexing", indexingService != nil); err != nil {
		return err
	}
	if err := indexingService.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
