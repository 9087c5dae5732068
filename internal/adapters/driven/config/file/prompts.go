package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/prompts"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves LLM prompts from editable .txt files, falling back
// to the built-in defaults. The directory is populated on first Load.
type PromptStore struct {
	mu       sync.RWMutex
	dir      string
	defaults map[string]string
	cache    map[string]string
	initOnce sync.Once
	initErr  error
}

// NewPromptStore creates a prompt store rooted at dir, or at
// ~/.plancite/prompts when dir is empty. No I/O happens here.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, defaultConfigDir, "prompts")
	}
	return &PromptStore{
		dir:      dir,
		defaults: prompts.Defaults(),
		cache:    make(map[string]string),
	}, nil
}

// Load returns the named prompt. An empty or missing file yields the default.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	def, known := s.defaults[name]
	prompt, err := s.read(name)
	switch {
	case err == nil && prompt != "":
	case known:
		prompt = def
	case err != nil:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	default:
		return "", fmt.Errorf("load prompt %q: file is empty", name)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()
	return prompt, nil
}

// Reload drops cached prompts so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Err reports why the directory could not be populated, if it could not.
func (s *PromptStore) Err() error {
	return s.initErr
}

// initialise writes missing default files and the README. Failures are
// kept in initErr; Load still serves the defaults.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	files := map[string]string{"README.md": readme}
	for name, content := range s.defaults {
		files[name+".txt"] = content
	}
	for name, content := range files {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			s.initErr = fmt.Errorf("write %s: %w", name, err)
			return
		}
	}
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

const readme = `# plancite prompts

Edit these files to change how plancite talks to the LLM.
Changes apply to the next command, or after a restart for plancite serve.

- answer_system.txt: system prompt for cited answers. The model must reply
  with {"answer": ..., "citations": [{"chunk_id": ..., "confidence": ...}]}.
- rerank.txt: relevance scoring for the llm reranker. It takes two %s
  placeholders, the query and then the numbered passages.

Delete a file to restore its default.
`
