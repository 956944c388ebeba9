package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kalambet/sakha/internal/agent"
	"github.com/kalambet/sakha/internal/api"
	"github.com/kalambet/sakha/internal/config"
	"github.com/kalambet/sakha/internal/engine"
	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/pipeline"
	"github.com/kalambet/sakha/internal/profile"
	"github.com/kalambet/sakha/internal/proxy"
	"github.com/kalambet/sakha/internal/recall"
	"github.com/kalambet/sakha/internal/retrieval"
	"github.com/kalambet/sakha/internal/scripture"
	"github.com/kalambet/sakha/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sakha server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("mcp")
		return runServer(stdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running sakha server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sakha system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "sakha.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// setupLogging installs the default slog logger. With log.file set, output
// also goes to a rotating file; the returned closer flushes it.
func setupLogging(cfg config.LogConfig, console io.Writer) (io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}

	var out io.Writer = console
	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(console, rotator)
		closer = rotator
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer, nil
}

// newGenerator picks the reply generator for the configured provider.
func newGenerator(cfg config.Config, eng engine.Engine) (gateway.Generator, error) {
	timeout, err := cfg.Gateway.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	params := gateway.Params{
		Model:       cfg.Gateway.Model,
		Temperature: cfg.Gateway.Temperature,
		MaxTokens:   cfg.Gateway.MaxTokens,
	}

	switch cfg.Gateway.Provider {
	case config.ProviderOpenAI, config.ProviderOpenRouter:
		baseURL := cfg.Gateway.BaseURL
		if baseURL == "" && cfg.Gateway.Provider == config.ProviderOpenRouter {
			baseURL = proxy.OpenRouterURL
		}
		client := proxy.NewClientWithBaseURL(cfg.Gateway.APIKey, baseURL).WithTimeout(timeout)
		return gateway.NewCloud(client, params), nil
	case config.ProviderOllama:
		if eng == nil {
			return nil, errors.New("ollama provider selected but no local engine is available")
		}
		params.Model = cfg.Ollama.ChatModel
		return gateway.NewLocal(eng, params), nil
	}
	return nil, fmt.Errorf("unknown gateway provider %q", cfg.Gateway.Provider)
}

// components are the long-lived pieces built at startup.
type components struct {
	agent     *agent.Agent
	retriever *scripture.Retriever
}

// buildComponents loads the scripture corpus and wires the conversation
// agent. eng may be nil, in which case scripture search uses keywords only.
func buildComponents(ctx context.Context, cfg config.Config, store *storage.Store, gen gateway.Generator, eng engine.Engine) (components, error) {
	docs, err := scripture.LoadDir(ctx, cfg.ScriptureDir())
	if err != nil {
		return components{}, fmt.Errorf("loading scriptures: %w", err)
	}
	corpus := scripture.NewCorpus(docs, cfg.Scripture.ChunkSize, cfg.Scripture.ChunkOverlap)
	slog.Info("scriptures loaded", "documents", len(docs), "passages", corpus.Len(), "dir", cfg.ScriptureDir())

	var semantic scripture.Semantic
	if eng != nil {
		embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel)
		semantic = retrieval.NewRetriever(embedder, retrieval.NewSQLiteStore(store.DB()))
	}
	retriever := scripture.NewRetriever(corpus, semantic, float32(cfg.Scripture.DistanceThreshold))

	ttl, err := cfg.Memory.TTL()
	if err != nil {
		return components{}, err
	}
	memory := profile.NewManager(store, ttl)
	rnd := agent.NewRand()

	enricher := pipeline.NewEnricher(
		recall.NewContextBuilder(store, memory),
		recall.NewReferencer(store, rnd, recall.ReferencerConfig{
			Window:        cfg.Recall.PastWindow(),
			MaxCandidates: cfg.Recall.PastMaxCandidates,
		}),
		retriever,
		memory,
		rnd,
		pipeline.Config{
			ScriptureRate:  cfg.Router.ScriptureRate,
			PastRate:       cfg.Router.PastReferenceRate,
			ExcludedTopics: pipeline.DefaultExcludedTopics,
		},
	)

	a := agent.New(agent.Deps{
		Store:         store,
		Memory:        memory,
		Enricher:      enricher,
		Scripture:     retriever,
		Generator:     gen,
		Rand:          rnd,
		MaxReplyChars: cfg.Router.MaxReplyChars,
	})
	return components{agent: a, retriever: retriever}, nil
}

type indexBuilder interface {
	BuildIndex(ctx context.Context) error
}

// indexScriptures embeds the corpus before the server starts listening. A
// failed build leaves keyword search in place; only cancellation is returned.
func indexScriptures(ctx context.Context, idx indexBuilder) error {
	start := time.Now()
	err := idx.BuildIndex(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case err != nil:
		slog.Warn("building scripture index failed, keyword search only", "error", err)
	default:
		slog.Info("scripture index ready", "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// startEngine returns the local engine when it is reachable with its models
// pulled. It is required for the ollama provider and optional otherwise.
func startEngine(ctx context.Context, cfg config.Config, timeout time.Duration) (engine.Engine, error) {
	eng := engine.Detect(engine.DetectConfig{OllamaBaseURL: cfg.Ollama.BaseURL, Timeout: timeout})

	chatModel := ""
	if cfg.Gateway.Provider == config.ProviderOllama {
		chatModel = cfg.Ollama.ChatModel
	}
	if err := engine.EnsureReady(ctx, eng, stderr, chatModel, cfg.Ollama.EmbedModel); err != nil {
		if chatModel != "" {
			return nil, err
		}
		slog.Warn("local engine unavailable, scripture search will use keywords", "error", err)
		return nil, nil
	}
	return eng, nil
}

func runServer(stdioMCP bool) error {
	fmt.Fprintf(stderr, "sakha version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCloser, err := setupLogging(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("sakha is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("sakha is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout, err := cfg.Gateway.TimeoutDuration()
	if err != nil {
		return err
	}
	eng, err := startEngine(ctx, cfg, timeout)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	gen, err := newGenerator(cfg, eng)
	if err != nil {
		return err
	}
	comps, err := buildComponents(ctx, cfg, store, gen, eng)
	if err != nil {
		return err
	}

	if err := indexScriptures(ctx, comps.retriever); err != nil {
		return err
	}

	if cfg.Server.APIToken == "" {
		slog.Warn("server.api_token is not set, the HTTP API is unauthenticated")
	}
	handler := api.NewAppHandler(api.AppDeps{Agent: comps.agent, Token: cfg.Server.APIToken})

	if stdioMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Agent: comps.agent, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sakha listening", "addr", addr, "provider", cfg.Gateway.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("sakha is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop sakha (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to sakha (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Gateway.Provider)
	if cfg.Gateway.Provider == config.ProviderOllama {
		printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	} else {
		printStatus("Chat model", "%s", cfg.Gateway.Model)
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s (embeddings: %s)", cfg.Ollama.BaseURL, cfg.Ollama.EmbedModel)
	}

	if running {
		c := &apiClient{baseURL: serverURL, token: cfg.Server.APIToken, httpClient: client}
		printServerCounts(context.Background(), c)
	}

	printStatus("Scriptures", "%s", cfg.ScriptureDir())
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// printServerCounts reports how many conversations and scriptures the
// running server holds.
func printServerCounts(ctx context.Context, c *apiClient) {
	var sessions []api.SessionJSON
	if c.call(ctx, http.MethodGet, "/conversations", nil, &sessions) == nil {
		printStatus("Conversations", "%d", len(sessions))
	}
	var sources []scripture.SourceInfo
	if c.call(ctx, http.MethodGet, "/scriptures", nil, &sources) == nil {
		printStatus("Loaded scriptures", "%d", len(sources))
	}
}
