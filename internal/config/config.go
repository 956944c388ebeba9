package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service is the secret store service name and the directory name used for
// configuration and data.
const Service = "sakha"

type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Scripture ScriptureConfig
	Router    RouterConfig
	Recall    RecallConfig
	Memory    MemoryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	// APIToken enables bearer auth on the HTTP API when non-empty.
	APIToken string
}

// GatewayConfig selects and tunes the reply generator.
type GatewayConfig struct {
	Provider    string // openai, openrouter or ollama
	BaseURL     string // empty selects the provider's default
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     string
	APIKey      string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type ScriptureConfig struct {
	Dir               string // empty means <data_dir>/scriptures
	ChunkSize         int
	ChunkOverlap      int
	DistanceThreshold float64
}

type RouterConfig struct {
	ScriptureRate     float64
	PastReferenceRate float64
	MaxReplyChars     int
}

type RecallConfig struct {
	PastWindowDays    int
	PastMaxCandidates int
}

type MemoryConfig struct {
	SessionTTL string
}

type LogConfig struct {
	Level string
	File  string
}

// Providers accepted by gateway.provider.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Gateway: GatewayConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o",
			Temperature: 0.6,
			MaxTokens:   500,
			Timeout:     "60s",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Scripture: ScriptureConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			DistanceThreshold: 0.8,
		},
		Router: RouterConfig{
			ScriptureRate:     0.6,
			PastReferenceRate: 0.25,
			MaxReplyChars:     800,
		},
		Recall: RecallConfig{
			PastWindowDays:    14,
			PastMaxCandidates: 5,
		},
		Memory: MemoryConfig{
			SessionTTL: "30m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.sakha.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/sakha/config.json
// and secrets fall back to $XDG_DATA_HOME/sakha/secrets.json.
//
// Environment variables (SAKHA_*) override backend values on all platforms.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills secrets still empty after the environment from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := kc.Get(Service, s.account()); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

func (c Config) validate() error {
	switch c.Gateway.Provider {
	case ProviderOpenAI, ProviderOpenRouter:
		if c.Gateway.APIKey == "" {
			return fmt.Errorf("missing required config: API key for gateway provider %q. "+
				"Set it via environment variable SAKHA_GATEWAY_API_KEY%s", c.Gateway.Provider, apiKeyHint())
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("gateway.provider must be one of %s, %s, %s; got %q",
			ProviderOpenAI, ProviderOpenRouter, ProviderOllama, c.Gateway.Provider)
	}

	for key, rate := range map[string]float64{
		"router.scripture_rate":      c.Router.ScriptureRate,
		"router.past_reference_rate": c.Router.PastReferenceRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", key, rate)
		}
	}
	if c.Scripture.ChunkSize <= 0 || c.Scripture.ChunkOverlap < 0 || c.Scripture.ChunkOverlap >= c.Scripture.ChunkSize {
		return fmt.Errorf("scripture.chunk_overlap must be in [0, chunk_size); got size %d, overlap %d",
			c.Scripture.ChunkSize, c.Scripture.ChunkOverlap)
	}
	if _, err := c.Gateway.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Memory.TTL(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout.
func (g GatewayConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid gateway.timeout %q: %w", g.Timeout, err)
	}
	return d, nil
}

// TTL parses SessionTTL.
func (m MemoryConfig) TTL() (time.Duration, error) {
	d, err := time.ParseDuration(m.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid memory.session_ttl %q: %w", m.SessionTTL, err)
	}
	return d, nil
}

// PastWindow is the recall window as a duration.
func (r RecallConfig) PastWindow() time.Duration {
	return time.Duration(r.PastWindowDays) * 24 * time.Hour
}

// ScriptureDir resolves the scripture directory against the data directory.
func (c Config) ScriptureDir() string {
	if c.Scripture.Dir != "" {
		return c.Scripture.Dir
	}
	return filepath.Join(c.Storage.DataDir, "scriptures")
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
