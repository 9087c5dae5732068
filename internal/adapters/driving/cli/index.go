package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

var (
	indexForce bool
	indexID    string
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Index PDF files or directories",
	Long: `Partitions, chunks, embeds and stores PDFs. Directories are searched
recursively for *.pdf files. Unchanged documents are skipped unless
--force is given.

A document's id is its path relative to the directory it was found in,
without the .pdf extension. A file given directly uses its base name,
or --id when indexing a single file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "re-index unchanged documents")
	indexCmd.Flags().StringVar(&indexID, "id", "", "document id (single file only)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := requireService("indexing", indexingService != nil); err != nil {
		return err
	}

	files, err := collectPDFs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no PDF files found", domain.ErrInvalidInput)
	}
	if indexID != "" {
		if len(files) != 1 {
			return fmt.Errorf("%w: --id needs exactly one file, got %d", domain.ErrInvalidInput, len(files))
		}
		files[0].id = indexID
	}

	pdfs := make([]domain.SourcePDF, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.path, err)
		}
		pdfs = append(pdfs, domain.SourcePDF{DocumentID: f.id, Filename: filepath.Base(f.path), Data: data})
	}

	runID := uuid.NewString()
	results := indexingService.IndexBatch(cmd.Context(), runID, pdfs, driving.IndexOptions{Force: indexForce})

	if jsonOutput {
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	} else {
		printIndexResults(cmd, runID, results)
	}

	failed := 0
	for i := range results {
		if results[i].Status == domain.IndexFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func printIndexResults(cmd *cobra.Command, runID string, results []domain.IndexResult) {
	cmd.Printf("Run %s\n\n", runID)
	for i := range results {
		r := &results[i]
		cmd.Printf("  %-10s %s", r.Status, r.DocumentID)
		if r.Status != domain.IndexFailed && r.Status != domain.IndexSkipped {
			cmd.Printf("  %d pages, %d chunks, %d embedded", r.Pages, r.Chunks, r.Embedded)
		}
		cmd.Println()
		if r.Error != "" {
			cmd.Printf("             error: %s\n", r.Error)
		}
		for _, w := range r.Warnings {
			cmd.Printf("             %s: %s\n", w.Kind, w.Message)
		}
	}
}

type pdfFile struct {
	path string
	id   string
}

// collectPDFs expands paths into PDF files with their document ids.
func collectPDFs(paths []string) ([]pdfFile, error) {
	var out []pdfFile
	seen := make(map[string]string)
	add := func(f pdfFile) error {
		if prev, ok := seen[f.id]; ok && prev != f.path {
			return fmt.Errorf("%w: %s and %s share document id %q", domain.ErrInvalidInput, prev, f.path, f.id)
		}
		if _, ok := seen[f.id]; !ok {
			seen[f.id] = f.path
			out = append(out, f)
		}
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(pdfFile{path: p, id: documentID(filepath.Dir(p), p)}); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isPDF(path) {
				return nil
			}
			return add(pdfFile{path: path, id: documentID(p, path)})
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return out, nil
}

// documentID is path relative to root, slash-separated, without extension.
func documentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
