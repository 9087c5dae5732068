package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Ensure Loader implements the interface.
var _ driven.SettingsLoader = (*Loader)(nil)

// Environment variables consulted by the loader.
const (
	EnvConfig       = "PLANCITE_CONFIG"
	EnvOpenAIKey    = "PLANCITE_OPENAI_API_KEY"
	EnvAnthropicKey = "PLANCITE_ANTHROPIC_API_KEY"
	EnvPostgresDSN  = "PLANCITE_POSTGRES_DSN"
	EnvRedisAddr    = "PLANCITE_REDIS_ADDR"
)

const (
	defaultConfigDir  = ".plancite"
	defaultConfigFile = "config.toml"
	dotEnvFile        = ".env"
	providerDisabled  = "none"
	vectorBackendPG   = "pgvector"
)

// fileConfig is the on-disk schema. Zero values and nil pointers keep
// the documented defaults.
type fileConfig struct {
	Extraction struct {
		Strategy     string `toml:"strategy" validate:"omitempty,oneof=native ocr auto"`
		MaxFallbacks *int   `toml:"max_fallbacks" validate:"omitempty,min=0,max=3"`
	} `toml:"extraction"`

	OCR struct {
		URL     string `toml:"url" validate:"omitempty,url"`
		Timeout string `toml:"timeout"`
	} `toml:"ocr"`

	Chunking struct {
		MaxTokens     int  `toml:"max_tokens" validate:"omitempty,min=16,max=8192"`
		OverlapTokens *int `toml:"overlap_tokens" validate:"omitempty,min=0"`
	} `toml:"chunking"`

	Embedding struct {
		Provider          string  `toml:"provider" validate:"omitempty,oneof=ollama openai none"`
		Model             string  `toml:"model"`
		BaseURL           string  `toml:"base_url" validate:"omitempty,url"`
		APIKey            string  `toml:"api_key"`
		Dimensions        int     `toml:"dimensions" validate:"min=0"`
		BatchSize         int     `toml:"batch_size" validate:"min=0,max=2048"`
		BatchConcurrency  int     `toml:"batch_concurrency" validate:"min=0,max=32"`
		MaxRetries        *int    `toml:"max_retries" validate:"omitempty,min=0,max=10"`
		InitialBackoff    string  `toml:"initial_backoff"`
		MaxBackoff        string  `toml:"max_backoff"`
		RequestsPerSecond float64 `toml:"requests_per_second" validate:"min=0"`
		QueryCacheSize    *int    `toml:"query_cache_size" validate:"omitempty,min=0"`
	} `toml:"embedding"`

	Retrieval struct {
		VectorWeight  *float64 `toml:"vector_weight" validate:"omitempty,min=0"`
		KeywordWeight *float64 `toml:"keyword_weight" validate:"omitempty,min=0"`
		Candidates    int      `toml:"candidates" validate:"min=0,max=1000"`
		SideTimeout   string   `toml:"side_timeout"`
	} `toml:"retrieval"`

	Rerank struct {
		Method string `toml:"method" validate:"omitempty,oneof=none lexical llm"`
	} `toml:"rerank"`

	Clustering struct {
		Threshold float64 `toml:"threshold" validate:"omitempty,gt=0,lte=1"`
	} `toml:"clustering"`

	Pipeline struct {
		Workers int `toml:"workers" validate:"min=0,max=64"`
	} `toml:"pipeline"`

	Storage struct {
		DataDir       string `toml:"data_dir"`
		VectorBackend string `toml:"vector_backend" validate:"omitempty,oneof=sqlite pgvector memory"`
		PostgresDSN   string `toml:"postgres_dsn"`
	} `toml:"storage"`

	Lock struct {
		RedisAddr string `toml:"redis_addr" validate:"omitempty,hostname_port"`
		TTL       string `toml:"ttl"`
	} `toml:"lock"`

	LLM struct {
		Provider         string `toml:"provider" validate:"omitempty,oneof=ollama openai anthropic none"`
		Model            string `toml:"model"`
		BaseURL          string `toml:"base_url" validate:"omitempty,url"`
		APIKey           string `toml:"api_key"`
		MaxContextTokens int    `toml:"max_context_tokens" validate:"min=0"`
	} `toml:"llm"`

	Server struct {
		Addr string `toml:"addr" validate:"omitempty,hostname_port"`
	} `toml:"server"`
}

// Loader reads plancite settings from a TOML file, a .env file and the
// environment, in increasing precedence.
type Loader struct {
	path     string
	validate *validator.Validate
}

// NewLoader creates a loader for path. An empty path uses $PLANCITE_CONFIG,
// then ~/.plancite/config.toml.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, defaultConfigDir, defaultConfigFile)
	}
	return &Loader{path: path, validate: validator.New()}, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads, validates and returns the settings. A missing file yields
// the defaults with the data directory next to the config path.
func (l *Loader) Load() (domain.Settings, error) {
	l.loadDotEnv()

	settings := domain.DefaultSettings()
	settings.Storage.DataDir = filepath.Dir(l.path)

	var fc fileConfig
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("config: %s not found, using defaults", l.path)
	case err != nil:
		return domain.Settings{}, fmt.Errorf("read config %s: %w", l.path, err)
	default:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return domain.Settings{}, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, l.path, err)
		}
	}

	if err := l.validate.Struct(&fc); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %s: %s", domain.ErrInvalidInput, l.path, describe(err))
	}
	if err := apply(&fc, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, l.path, err)
	}
	applyEnv(&settings)

	if settings.Storage.VectorBackend == vectorBackendPG && settings.Storage.PostgresDSN == "" {
		return domain.Settings{}, fmt.Errorf("%w: storage.vector_backend=pgvector needs postgres_dsn or %s",
			domain.ErrInvalidInput, EnvPostgresDSN)
	}
	return settings, nil
}

// loadDotEnv loads .env next to the config file, then from the working
// directory. Variables already set in the environment win.
func (l *Loader) loadDotEnv() {
	for _, p := range []string{filepath.Join(filepath.Dir(l.path), dotEnvFile), dotEnvFile} {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("config: ignoring %s: %v", p, err)
		}
	}
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "fileConfig.")
		if e.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s=%s'", field, e.Tag(), e.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", field, e.Tag()))
		}
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// apply overlays set file values onto s.
func apply(fc *fileConfig, s *domain.Settings) error {
	var errs []error
	duration := func(field, v string, dst *time.Duration) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", field, v))
			return
		}
		*dst = d
	}

	if fc.Extraction.Strategy != "" {
		s.Extraction.Strategy = domain.ExtractionStrategy(fc.Extraction.Strategy)
	}
	setInt(&s.Extraction.MaxFallbacks, fc.Extraction.MaxFallbacks)
	s.Extraction.OCRURL = fc.OCR.URL
	duration("ocr.timeout", fc.OCR.Timeout, &s.Extraction.OCRTimeout)

	if fc.Chunking.MaxTokens > 0 {
		s.Chunking.MaxTokens = fc.Chunking.MaxTokens
	}
	setInt(&s.Chunking.OverlapTokens, fc.Chunking.OverlapTokens)
	if s.Chunking.OverlapTokens >= s.Chunking.MaxTokens {
		errs = append(errs, fmt.Errorf("chunking.overlap_tokens must be below max_tokens"))
	}

	e := fc.Embedding
	switch e.Provider {
	case "":
	case providerDisabled:
		s.Embedding.Provider = ""
	default:
		if domain.AIProvider(e.Provider) != s.Embedding.Provider && e.Model == "" {
			s.Embedding.Model = domain.DefaultEmbeddingModels()[domain.AIProvider(e.Provider)]
		}
		s.Embedding.Provider = domain.AIProvider(e.Provider)
	}
	setString(&s.Embedding.Model, e.Model)
	setString(&s.Embedding.BaseURL, e.BaseURL)
	setString(&s.Embedding.APIKey, e.APIKey)
	setPositive(&s.Embedding.Dimensions, e.Dimensions)
	setPositive(&s.Embedding.BatchSize, e.BatchSize)
	setPositive(&s.Embedding.BatchConcurrency, e.BatchConcurrency)
	setInt(&s.Embedding.MaxRetries, e.MaxRetries)
	duration("embedding.initial_backoff", e.InitialBackoff, &s.Embedding.InitialBackoff)
	duration("embedding.max_backoff", e.MaxBackoff, &s.Embedding.MaxBackoff)
	if e.RequestsPerSecond > 0 {
		s.Embedding.RequestsPerSecond = e.RequestsPerSecond
	}
	setInt(&s.Embedding.QueryCacheSize, e.QueryCacheSize)

	r := fc.Retrieval
	if r.VectorWeight != nil {
		s.Retrieval.Weights.Vector = *r.VectorWeight
	}
	if r.KeywordWeight != nil {
		s.Retrieval.Weights.Keyword = *r.KeywordWeight
	}
	if s.Retrieval.Weights.Vector == 0 && s.Retrieval.Weights.Keyword == 0 {
		errs = append(errs, fmt.Errorf("retrieval weights must not both be zero"))
	}
	setPositive(&s.Retrieval.Candidates, r.Candidates)
	duration("retrieval.side_timeout", r.SideTimeout, &s.Retrieval.SideTimeout)

	setString(&s.Rerank.Method, fc.Rerank.Method)
	if fc.Clustering.Threshold > 0 {
		s.Clustering.Threshold = fc.Clustering.Threshold
	}
	setPositive(&s.Pipeline.Workers, fc.Pipeline.Workers)

	setString(&s.Storage.DataDir, expandHome(fc.Storage.DataDir))
	setString(&s.Storage.VectorBackend, fc.Storage.VectorBackend)
	setString(&s.Storage.PostgresDSN, fc.Storage.PostgresDSN)
	setString(&s.Storage.RedisAddr, fc.Lock.RedisAddr)
	duration("lock.ttl", fc.Lock.TTL, &s.Pipeline.LockTTL)

	l := fc.LLM
	switch l.Provider {
	case "":
	case providerDisabled:
		s.LLM.Provider = ""
	default:
		if domain.AIProvider(l.Provider) != s.LLM.Provider && l.Model == "" {
			s.LLM.Model = domain.DefaultLLMModels()[domain.AIProvider(l.Provider)]
		}
		s.LLM.Provider = domain.AIProvider(l.Provider)
	}
	setString(&s.LLM.Model, l.Model)
	setString(&s.LLM.BaseURL, l.BaseURL)
	setString(&s.LLM.APIKey, l.APIKey)
	setPositive(&s.LLM.MaxContextTokens, l.MaxContextTokens)

	setString(&s.Server.Addr, fc.Server.Addr)
	return errors.Join(errs...)
}

// applyEnv applies environment overrides. Keys in the environment beat
// keys in the file.
func applyEnv(s *domain.Settings) {
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		if s.Embedding.Provider == domain.AIProviderOpenAI {
			s.Embedding.APIKey = v
		}
		if s.LLM.Provider == domain.AIProviderOpenAI {
			s.LLM.APIKey = v
		}
	}
	if v := os.Getenv(EnvAnthropicKey); v != "" && s.LLM.Provider == domain.AIProviderAnthropic {
		s.LLM.APIKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		s.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		s.Storage.RedisAddr = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
