package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

// defaultWatchDebounce absorbs the burst of writes a PDF export produces.
const defaultWatchDebounce = 2 * time.Second

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-index PDFs in a directory as they change",
	Long: `Indexes every PDF under dir, then watches it recursively. Created or
modified PDFs are re-indexed once writes settle for the debounce period.
Removed PDFs are deleted from the index. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", defaultWatchDebounce, "quiet period before re-indexing a file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireService("indexing", indexingService != nil); err != nil {
		return err
	}
	root := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := collectPDFs([]string{root})
	if err != nil {
		return err
	}
	if len(files) > 0 {
		pdfs := make([]domain.SourcePDF, 0, len(files))
		for _, f := range files {
			data, err := os.ReadFile(f.path)
			if err != nil {
				logger.Warn("Skipping %s: %v", f.path, err)
				continue
			}
			pdfs = append(pdfs, domain.SourcePDF{DocumentID: f.id, Filename: filepath.Base(f.path), Data: data})
		}
		indexingService.IndexBatch(ctx, uuid.NewString(), pdfs, driving.IndexOptions{})
	}

	w, err := newPDFWatcher(root, watchDebounce, indexingService)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s for PDF changes\n", root)
	return w.run(ctx)
}

// pdfWatcher re-indexes PDFs under root on change.
type pdfWatcher struct {
	root     string
	debounce time.Duration
	indexing driving.IndexingService
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	due     chan string
	done    chan struct{}
}

func newPDFWatcher(root string, debounce time.Duration, indexing driving.IndexingService) (*pdfWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &pdfWatcher{
		root:     root,
		debounce: debounce,
		indexing: indexing,
		watcher:  watcher,
		pending:  make(map[string]*time.Timer),
		due:      make(chan string, 64),
		done:     make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every directory below it.
func (w *pdfWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		logger.Debug("watch: added %s", path)
		return nil
	})
}

// run handles events until ctx is done. Indexing runs on this goroutine,
// so one document is indexed at a time.
func (w *pdfWatcher) run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case path := <-w.due:
			w.index(ctx, path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Watcher error: %v", err)
		}
	}
}

func (w *pdfWatcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create) && isDir(event.Name):
		if err := w.addTree(event.Name); err != nil {
			logger.Warn("%v", err)
		}
		files, err := collectPDFs([]string{event.Name})
		if err != nil {
			logger.Warn("Scanning %s: %v", event.Name, err)
			return
		}
		for _, f := range files {
			w.schedule(f.path)
		}
	case !isPDF(event.Name):
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
		w.remove(ctx, event.Name)
	}
}

// schedule (re)starts the debounce timer for path.
func (w *pdfWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	logger.Debug("watch: change in %s, debouncing", path)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.due <- path:
		case <-w.done:
		}
	})
}

func (w *pdfWatcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *pdfWatcher) index(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Skipping %s: %v", path, err)
		return
	}
	pdf := domain.SourcePDF{DocumentID: documentID(w.root, path), Filename: filepath.Base(path), Data: data}
	if _, err := w.indexing.IndexDocument(ctx, uuid.NewString(), pdf, driving.IndexOptions{}); err != nil {
		logger.Warn("Indexing %s failed: %v", path, err)
	}
}

func (w *pdfWatcher) remove(ctx context.Context, path string) {
	id := documentID(w.root, path)
	err := w.indexing.DeleteDocument(ctx, id)
	switch {
	case err == nil:
		logger.Info("Removed %s from the index", id)
	case !errors.Is(err, domain.ErrNotFound):
		logger.Warn("Removing %s failed: %v", id, err)
	}
}

func (w *pdfWatcher) close() {
	close(w.done)
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if err := w.watcher.Close(); err != nil {
		logger.Warn("Closing watcher: %v", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
