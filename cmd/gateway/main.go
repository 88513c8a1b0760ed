package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/function-gateway/internal/cache"
	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/console"
	"github.com/dileep-u-k/function-gateway/internal/llm"
	"github.com/dileep-u-k/function-gateway/internal/manifest"
	"github.com/dileep-u-k/function-gateway/internal/metrics"
	"github.com/dileep-u-k/function-gateway/internal/sandbox"
	"github.com/dileep-u-k/function-gateway/internal/tools"
	"github.com/dileep-u-k/function-gateway/internal/version"
)

// main is the composition root: it loads configuration, initializes all
// services, injects dependencies, and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := version.GetBuildInfo()
	log.Printf("🚀 Starting Function Gateway | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 2. INITIALIZE SERVICES
	ctx := context.Background()
	store, actionCache, closeRedis := initializeStorage(ctx, cfg, logger)
	defer closeRedis()

	toolManager := tools.NewDefaultToolManager()
	log.Printf("✅ Tool Manager initialized with %d tools.", toolManager.ToolCount())

	m, err := manifest.Load(cfg.ManifestPath,
		manifest.WithRegistry(toolManager),
		manifest.WithActionCache(actionCache),
		manifest.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("❌ FATAL: Could not load manifest: %v", err)
	}
	log.Printf("✅ Manifest %q loaded with %d actions.", m.Title(), len(m.ActionNames()))

	model := cfg.Model
	if model == "" {
		model = m.Model()
	}
	client, err := llm.NewClientForModel(ctx, model, cfg.APIKeys)
	if err != nil {
		// The dispatch endpoint still works without a provider.
		log.Printf("WARNING: No LLM client for model %q: %v", model, err)
	}

	runtime, closeSandbox := initializeSandbox(ctx, cfg, m, logger)
	defer closeSandbox()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.MustNew(reg)

	gatewayHandler := NewGatewayHandler(m, client, store, runtime, met, console.New(os.Stdout), logger, cfg)
	log.Println("✅ All services initialized.")

	// 3. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.Default()
	gatewayHandler.RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(srv)
}

// initializeStorage picks Redis when REDIS_ADDR is set and in-process stores
// otherwise.
func initializeStorage(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (chat.Store, cache.Store, func()) {
	if cfg.RedisAddr == "" {
		log.Println("WARNING: REDIS_ADDR not set, conversations and action results stay in memory.")
		return chat.NewMemoryStore(), cache.NewLRU(cfg.ActionCacheSize, cfg.ActionCacheTTL), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ FATAL: Could not connect to Redis: %v", err)
	}
	log.Printf("✅ Connected to Redis at %s.", cfg.RedisAddr)
	return chat.NewRedisStore(rdb), cache.NewRedis(rdb, cfg.ActionCacheTTL, logger), func() { rdb.Close() }
}

// initializeSandbox attaches the notebook runtime to the configured container.
func initializeSandbox(ctx context.Context, cfg *AppConfig, m *manifest.Manifest, logger *slog.Logger) (*sandbox.Runtime, func()) {
	if cfg.SandboxContainer == "" {
		if m.Notebook() {
			log.Println("WARNING: Manifest enables notebook mode but SANDBOX_CONTAINER is not set.")
		}
		return nil, func() {}
	}

	exec, err := sandbox.NewDockerExecutor(ctx, cfg.SandboxContainer)
	if err != nil {
		log.Fatalf("❌ FATAL: Could not attach to sandbox: %v", err)
	}
	log.Printf("🐳 Sandbox attached to container %s.", cfg.SandboxContainer)
	return sandbox.NewRuntime(exec, logger), func() { exec.Close() }
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Gateway is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
