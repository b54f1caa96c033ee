// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/northbound/ragcore/internal/chunk"
	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/embeddings"
	"github.com/northbound/ragcore/internal/generator"
	"github.com/northbound/ragcore/internal/ingest"
	"github.com/northbound/ragcore/internal/logger"
	"github.com/northbound/ragcore/internal/quota"
	"github.com/northbound/ragcore/internal/queue"
	"github.com/northbound/ragcore/internal/rag"
	"github.com/northbound/ragcore/internal/retrieval"
	"github.com/northbound/ragcore/internal/server"
	"github.com/northbound/ragcore/internal/storage"
	"github.com/northbound/ragcore/internal/vectordb"
	"github.com/northbound/ragcore/internal/widget"
	"github.com/northbound/ragcore/internal/worker"
)

var httpPort = flag.Int("http-port", 8081, "HTTP server port")

func main() {
	logFile := "ragcore-server.log"
	if _, err := logger.Init(logFile); err != nil {
		fmt.Printf("failed to initialize logger: %v, using stdout only\n", err)
	} else {
		logger.Printf("logger initialized, writing to %s", logFile)
	}

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	redisClient, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}

	storageAdapter, err := newStorageAdapter(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to init storage adapter: %v", err)
	}

	embedder, err := embeddings.New(cfg)
	if err != nil {
		logger.Fatalf("failed to init embedder: %v", err)
	}
	logger.Printf("embedder ready: backend=%s dim=%d", cfg.EmbeddingBackend, embedder.Dimension())

	vectorStore, qdrantConn, err := newVectorStore(cfg, embedder.Dimension())
	if err != nil {
		logger.Fatalf("failed to init vector store: %v", err)
	}
	if qdrantConn != nil {
		defer qdrantConn.Close()
	}

	workspaces := database.NewWorkspaceStore(db)
	documents := database.NewDocumentStore(db)
	chunks := database.NewChunkStore(db)
	events := database.NewIngestEventStore(db)
	sessions := database.NewSessionStore(db)
	subscriptions := database.NewSubscriptionStore(db)
	embedCodes := database.NewEmbedCodeStore(db)

	quotaMgr := quota.New(db)

	retrievalEngine := retrieval.New(retrieval.Config{
		Vectors:  vectorStore,
		Chunks:   chunks,
		Embedder: embedder,
		Cache:    redisClient,
		CacheTTL: cfg.RetrievalCacheTTL(),
		Alpha:    cfg.HybridAlpha,
	})

	gen := generator.WithRetry(newGenerator(cfg))
	orchestrator := rag.New(sessions, quotaMgr, retrievalEngine, gen)

	ingestQueue, err := queue.NewRedisQueue(redisClient, "jobs:ingest")
	if err != nil {
		logger.Fatalf("failed to init ingest queue: %v", err)
	}

	pipeline := &ingest.Pipeline{
		Documents:   documents,
		Chunks:      chunks,
		Events:      events,
		Storage:     storageAdapter,
		Chunker:     chunk.New(chunk.DefaultConfig()),
		Embedder:    embedder,
		Vectors:     vectorStore,
		Queue:       ingestQueue,
		Cache:       retrievalEngine,
		MaxAttempts: cfg.IngestMaxAttempts,
	}

	go promoteDelayedLoop(ctx, ingestQueue)
	go reapLeasesLoop(ctx, ingestQueue)

	go func() {
		logger.Printf("starting %d ingest workers", cfg.IngestWorkers)
		if err := worker.StartWorkers(ctx, ingestQueue, pipeline.Handle, cfg.IngestWorkers); err != nil {
			logger.Errorf("ingest worker pool stopped: %v", err)
		}
	}()

	widgetMgr := widget.NewManager(widget.Config{
		EmbedCodes:         embedCodes,
		Orchestrator:       orchestrator,
		Mailbox:            redisClient,
		IdleTimeout:        cfg.WebSocketIdleTimeout(),
		RateLimitPerMinute: cfg.WidgetRateLimitPerMinute,
	})
	widgetJS := widget.NewScriptHandler(func(id string) (*domain.EmbedCode, error) {
		return embedCodes.ByID(context.Background(), id)
	})

	mux := buildRouter(routerDeps{
		workspaces: workspaces,
		chat:       server.NewChatHandler(orchestrator),
		sessions:   server.NewSessionsHandler(sessions),
		search:     server.NewSearchHandler(retrievalEngine),
		ingest:     server.NewIngestHandler(storageAdapter, documents, workspaces, pipeline, cfg.MaxFileSizeBytes),
		health:     server.NewHealthHandler(db),
		embedCodes: server.NewEmbedCodeHandler(embedCodes),
		workspace:  server.NewWorkspaceHandler(workspaces, subscriptions),
		widgetMgr:  widgetMgr,
		widgetJS:   widgetJS,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *httpPort),
		Handler: mux,
	}

	go func() {
		logger.Printf("HTTP server listening on %d", *httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	if err := logger.GetDefault().Close(); err != nil {
		fmt.Printf("failed to close logger: %v\n", err)
	}
}

// newStorageAdapter selects the Storage Adapter backend named by cfg.
func newStorageAdapter(ctx context.Context, cfg *config.Config) (storage.Adapter, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinioAdapter(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return storage.NewFSAdapter(cfg.StorageDir)
	}
}

// newVectorStore dials Qdrant when configured; any dial or probe failure
// falls back to the in-memory MockStore so the rest of the system still
// comes up for local development, the same degrade-rather-than-die
// posture the teacher used for its own Qdrant dependency.
func newVectorStore(cfg *config.Config, dim int) (vectordb.Store, *grpc.ClientConn, error) {
	if cfg.QdrantAddr == "" {
		logger.Printf("QDRANT_ADDR not set, using in-memory vector store")
		return vectordb.NewMockStore(), nil, nil
	}

	conn, err := grpc.NewClient(cfg.QdrantAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Warnf("failed to dial qdrant at %s: %v, using in-memory vector store", cfg.QdrantAddr, err)
		return vectordb.NewMockStore(), nil, nil
	}

	store, err := vectordb.NewQdrantStore(conn, dim)
	if err != nil {
		logger.Warnf("failed to init qdrant store: %v, using in-memory vector store", err)
		conn.Close()
		return vectordb.NewMockStore(), nil, nil
	}

	logger.Printf("connected to qdrant at %s", cfg.QdrantAddr)
	return store, conn, nil
}

// newGenerator selects the Generator Adapter backend: OpenAI when an API
// key is configured, otherwise a deterministic mock for offline development.
func newGenerator(cfg *config.Config) generator.Generator {
	if cfg.OpenAIAPIKey != "" {
		return generator.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.GeneratorModelID)
	}
	logger.Printf("OPENAI_API_KEY not set, using mock generator")
	return generator.NewMockGenerator()
}

// promoteDelayedLoop polls the ingest queue's delayed set, moving jobs
// whose backoff has elapsed back onto the ready list.
func promoteDelayedLoop(ctx context.Context, q *queue.RedisQueue) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.PromoteDelayed(ctx); err != nil {
				logger.Errorf("promote delayed jobs: %v", err)
			} else if n > 0 {
				logger.Printf("promoted %d delayed jobs to ready", n)
			}
		}
	}
}

// reapLeasesLoop polls the ingest queue's processing set, returning any
// job whose invisibility lease expired without being Ack'd (e.g. its
// worker crashed) back onto the ready list, per §4.6's abandoned-job
// recovery rule.
func reapLeasesLoop(ctx context.Context, q *queue.RedisQueue) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.ReapExpiredLeases(ctx); err != nil {
				logger.Errorf("reap expired leases: %v", err)
			} else if n > 0 {
				logger.Printf("reaped %d expired leases back to ready", n)
			}
		}
	}
}
