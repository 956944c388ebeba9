package engine

import "time"

// DetectConfig holds parameters for backend detection.
type DetectConfig struct {
	OllamaBaseURL string
	// Timeout bounds chat and embedding requests. Zero means no limit.
	Timeout time.Duration
}

// Detect returns the local inference backend. Ollama is the only supported one.
func Detect(cfg DetectConfig) Engine {
	return NewOllamaEngineWithTimeout(cfg.OllamaBaseURL, cfg.Timeout)
}
