// Package gateway hides which text-generation provider answers a prompt.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/sakha/internal/engine"
	"github.com/kalambet/sakha/internal/proxy"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a prompt.
type Message struct {
	Role    string
	Content string
}

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Params are the sampling settings applied to every call.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultParams match the persona's tuning: short, warm, moderately varied.
func DefaultParams() Params {
	return Params{Model: "gpt-4o", Temperature: 0.6, MaxTokens: 500}
}

// completer is the subset of proxy.Client used here.
type completer interface {
	Complete(ctx context.Context, req proxy.CompletionRequest) (string, error)
}

// Cloud generates through an OpenAI-compatible endpoint.
type Cloud struct {
	client completer
	params Params
}

func NewCloud(client *proxy.Client, p Params) *Cloud {
	return &Cloud{client: client, params: p}
}

func (c *Cloud) Generate(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]proxy.Message, len(messages))
	for i, m := range messages {
		msgs[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}
	text, err := c.client.Complete(ctx, proxy.CompletionRequest{
		Model:       c.params.Model,
		Messages:    msgs,
		Temperature: c.params.Temperature,
		MaxTokens:   c.params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("cloud generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Local generates through the local inference engine.
type Local struct {
	engine engine.Engine
	params Params
}

func NewLocal(e engine.Engine, p Params) *Local {
	return &Local{engine: e, params: p}
}

func (l *Local) Generate(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]engine.Message, len(messages))
	for i, m := range messages {
		msgs[i] = engine.Message{Role: m.Role, Content: m.Content}
	}
	text, err := l.engine.Chat(ctx, l.params.Model, msgs, &engine.ChatOptions{
		Temperature: l.params.Temperature,
		MaxTokens:   l.params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("local generation: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, messages []Message) (string, error)

func (f Func) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}
