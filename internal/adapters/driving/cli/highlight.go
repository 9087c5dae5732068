package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var highlightScale float64

var highlightCmd = &cobra.Command{
	Use:   "highlight [chunk-id]",
	Short: "Print the render rectangle for a chunk",
	Long: `Converts a chunk's bounding box from PDF points (bottom-left origin) into
a top-left rectangle at the given render scale, ready to draw over a
rendered page image.`,
	Args: cobra.ExactArgs(1),
	RunE: runHighlight,
}

func init() {
	highlightCmd.Flags().Float64Var(&highlightScale, "scale", 1.0, "render scale (pixels per point)")
	rootCmd.AddCommand(highlightCmd)
}

func runHighlight(cmd *cobra.Command, args []string) error {
	if err := requireService("highlight", highlightService != nil); err != nil {
		return err
	}

	hl, err := highlightService.Highlight(cmd.Context(), args[0], highlightScale)
	if err != nil {
		return fmt.Errorf("highlight failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, hl)
	}

	cmd.Printf("Document: %s\n", hl.DocumentID)
	cmd.Printf("Page:     %d (height %.1fpt)\n", hl.PageNumber, hl.PageHeight)
	if hl.Rotation != 0 {
		cmd.Printf("Rotate:   %d (rect is unrotated)\n", hl.Rotation)
	}
	cmd.Printf("BBox:     %s\n", hl.BBox)
	cmd.Printf("Rect:     x=%.1f y=%.1f w=%.1f h=%.1f @%.2fx\n",
		hl.Rect.X, hl.Rect.Y, hl.Rect.Width, hl.Rect.Height, hl.Scale)
	if hl.Invalid {
		cmd.Println("Warning:  bounding box is invalid, the rectangle may be wrong")
	}
	return nil
}
