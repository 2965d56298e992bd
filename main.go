package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	pgadapter "github.com/askdb-ai/askdb-engine/pkg/adapters/datasource/postgres"
	"github.com/askdb-ai/askdb-engine/pkg/config"
	"github.com/askdb-ai/askdb-engine/pkg/database"
	"github.com/askdb-ai/askdb-engine/pkg/handlers"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/logging"
	"github.com/askdb-ai/askdb-engine/pkg/mcp"
	"github.com/askdb-ai/askdb-engine/pkg/mcp/tools"
	"github.com/askdb-ai/askdb-engine/pkg/middleware"
	"github.com/askdb-ai/askdb-engine/pkg/repositories"
	"github.com/askdb-ai/askdb-engine/pkg/schema"
	"github.com/askdb-ai/askdb-engine/pkg/secrets"
	"github.com/askdb-ai/askdb-engine/pkg/services"
	"github.com/askdb-ai/askdb-engine/pkg/sqlgen"
	"github.com/askdb-ai/askdb-engine/pkg/summarizer"
	"github.com/askdb-ai/askdb-engine/pkg/vectorstore"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	if err := resolveDatabaseSecret(ctx, cfg); err != nil {
		logger.Fatal("Failed to resolve database secret", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Host),
		zap.String("redis", cfg.Redis.Host),
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.LLMModel))

	// Engine storage (query history) lives in the same PostgreSQL instance
	// as the queried dataset but in its own table, created by migrations.
	engineDB, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer engineDB.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, migrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	store := vectorstore.NewRedisStore(redisClient, vectorstore.RedisStoreConfig{
		Dimension: cfg.AI.EmbeddingDimension,
		TTL:       cfg.Pipeline.CacheTTL,
		Capacity:  int64(cfg.Pipeline.CacheCapacity),
	}, logger)

	chatClient, err := llm.NewChatClient(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create chat client", zap.Error(err))
	}
	embeddingClient, err := llm.NewEmbeddingClient(&cfg.AI, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding client", zap.Error(err))
	}

	dsConfig := &pgadapter.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}
	discoverer, err := pgadapter.NewSchemaDiscoverer(ctx, dsConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create schema discoverer", zap.Error(err))
	}
	defer func() { _ = discoverer.Close() }()

	executor, err := pgadapter.NewQueryExecutor(ctx, dsConfig, cfg.Pipeline.ExecutionTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to create query executor", zap.Error(err))
	}
	defer func() { _ = executor.Close() }()

	indexer := schema.NewIndexer(discoverer, embeddingClient, store, schema.IndexerConfig{
		SampleValues: cfg.Pipeline.SampleValues,
	}, logger)
	retriever := schema.NewRetriever(store, cfg.Pipeline.TopK, cfg.Pipeline.SchemaMaxDistance, logger)

	genConfig := sqlgen.DefaultConfig()
	genConfig.MaxSQLLength = cfg.Pipeline.MaxSQLLength
	genConfig.MaxNestingDepth = cfg.Pipeline.MaxNestingDepth
	genConfig.MaxContextLength = cfg.Pipeline.MaxContextLength
	generator := sqlgen.NewGenerator(chatClient, genConfig, logger)

	answerer := summarizer.New(chatClient, 0, logger)
	cache := services.NewSemanticCache(store, cfg.Pipeline.CacheThreshold, logger)
	historyRepo := repositories.NewQueryHistoryRepository(engineDB)

	askService := services.NewAskService(embeddingClient, cache, retriever, generator,
		executor, answerer, historyRepo, services.AskConfig{
			RowLimit:         cfg.Pipeline.RowLimit,
			ReexecuteOnHit:   cfg.Pipeline.ReexecuteOnHit,
			MaxRegenerations: cfg.Pipeline.MaxRegenerations,
		}, logger)
	indexService := services.NewIndexService(indexer, cache, logger)
	historyService := services.NewHistoryService(historyRepo, cfg.Pipeline.HistoryRetention, logger)
	historyService.StartRetentionSweep(ctx, time.Hour)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(askService, logger).RegisterRoutes(mux)
	handlers.NewIndexHandler(indexService, logger).RegisterRoutes(mux)
	handlers.NewHistoryHandler(historyService, logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("askdb-engine", cfg.Version, logger)
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	tools.RegisterAskTool(mcpServer.MCP(), askService, logger)
	tools.RegisterIndexTool(mcpServer.MCP(), indexService, logger)
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting askdb-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// resolveDatabaseSecret overrides database credentials from a secret when
// one is configured. A secret ID containing a path separator is read from
// disk; anything else names an environment variable.
func resolveDatabaseSecret(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.SecretID == "" {
		return nil
	}

	var resolver secrets.Resolver
	if strings.ContainsRune(cfg.Database.SecretID, '/') {
		resolver = secrets.NewFileResolver()
	} else {
		resolver = secrets.NewEnvResolver()
	}

	creds, err := resolver.Resolve(ctx, cfg.Database.SecretID)
	if err != nil {
		return err
	}

	cfg.Database.User = creds.Username
	cfg.Database.Password = creds.Password
	if creds.Host != "" {
		cfg.Database.Host = creds.Host
	}
	if creds.Port != 0 {
		cfg.Database.Port = creds.Port
	}
	return nil
}
