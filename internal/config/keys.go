package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

const envPrefix = "SAKHA_"

type keySpec struct {
	key     string
	typ     keyType
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// env is the override variable: SAKHA_ plus the upper-cased key with dots
// replaced by underscores.
func (s keySpec) env() string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(s.key, ".", "_"))
}

// account is the secret store account holding the key.
func (s keySpec) account() string {
	return strings.ReplaceAll(s.key, ".", "_")
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "gateway.provider", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Gateway.Provider = strings.ToLower(v.(string)) },
		extract: func(cfg Config) any { return cfg.Gateway.Provider },
	},
	{
		key: "gateway.base_url", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Gateway.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.BaseURL },
	},
	{
		key: "gateway.model", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Gateway.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Model },
	},
	{
		key: "gateway.temperature", typ: kFloat,
		apply:   func(cfg *Config, v any) { cfg.Gateway.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Gateway.Temperature },
	},
	{
		key: "gateway.max_tokens", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Gateway.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Gateway.MaxTokens },
	},
	{
		key: "gateway.timeout", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Gateway.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.Timeout },
	},
	{
		key: "gateway.api_key", typ: kString, secret: true,
		apply:   func(cfg *Config, v any) { cfg.Gateway.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Gateway.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "scripture.dir", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Scripture.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Scripture.Dir },
	},
	{
		key: "scripture.chunk_size", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Scripture.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Scripture.ChunkSize },
	},
	{
		key: "scripture.chunk_overlap", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Scripture.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Scripture.ChunkOverlap },
	},
	{
		key: "scripture.distance_threshold", typ: kFloat,
		apply:   func(cfg *Config, v any) { cfg.Scripture.DistanceThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scripture.DistanceThreshold },
	},
	{
		key: "router.scripture_rate", typ: kFloat,
		apply:   func(cfg *Config, v any) { cfg.Router.ScriptureRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Router.ScriptureRate },
	},
	{
		key: "router.past_reference_rate", typ: kFloat,
		apply:   func(cfg *Config, v any) { cfg.Router.PastReferenceRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Router.PastReferenceRate },
	},
	{
		key: "router.max_reply_chars", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Router.MaxReplyChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Router.MaxReplyChars },
	},
	{
		key: "recall.past_window_days", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Recall.PastWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Recall.PastWindowDays },
	},
	{
		key: "recall.past_max_candidates", typ: kInt,
		apply:   func(cfg *Config, v any) { cfg.Recall.PastMaxCandidates = v.(int) },
		extract: func(cfg Config) any { return cfg.Recall.PastMaxCandidates },
	},
	{
		key: "memory.session_ttl", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Memory.SessionTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Memory.SessionTTL },
	},
	{
		key: "log.level", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Log.Level = strings.ToLower(v.(string)) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString,
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

func lookup(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts raw text to the spec's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env())
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env(), raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
