package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/cortexa-labs/ragserve/internal/ai"
	"github.com/cortexa-labs/ragserve/internal/blobstore"
	"github.com/cortexa-labs/ragserve/internal/config"
	"github.com/cortexa-labs/ragserve/internal/db"
	"github.com/cortexa-labs/ragserve/internal/handler"
	"github.com/cortexa-labs/ragserve/internal/job"
	"github.com/cortexa-labs/ragserve/internal/metrics"
	"github.com/cortexa-labs/ragserve/internal/middleware"
	"github.com/cortexa-labs/ragserve/internal/rag"
	"github.com/cortexa-labs/ragserve/internal/repo"
	"github.com/cortexa-labs/ragserve/internal/rerank"
	"github.com/cortexa-labs/ragserve/internal/schedule"
	"github.com/cortexa-labs/ragserve/internal/service"
	"github.com/cortexa-labs/ragserve/internal/splitter"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragserve",
		Short: "ragserve backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragserve server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sqlx.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("blob_store", cfg.BlobStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)
	metrics.Register()

	userRepo := repo.NewUserRepo(database)
	convRepo := repo.NewConversationRepo(database)
	messageRepo := repo.NewMessageRepo(database)
	fileRepo := repo.NewDocumentFileRepo(database)
	indexRepo := repo.NewIndexRepo(database)

	store, err := blobstore.New(cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewCachedEmbedder(ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel))
	sideGen := ai.NewGenerator(aiProvider, cfg.AI.SideModel)
	chatStreamer := ai.NewChatStreamer(aiProvider, cfg.AI.ChatModel)

	parentSplitter := splitter.NewParent(cfg.RAG.ParentChunkSize, cfg.RAG.ParentChunkOverlap)
	childSplitter := splitter.NewChild(cfg.RAG.ChildChunkSize, cfg.RAG.ChildChunkOverlap)

	var scorer rerank.Scorer
	if cfg.Rerank.Endpoint != "" {
		scorer = rerank.NewHTTPScorer(rerank.Config{
			Endpoint: cfg.Rerank.Endpoint,
			Model:    cfg.Rerank.Model,
			Timeout:  time.Duration(cfg.Rerank.Timeout) * time.Second,
		})
	}

	expander := rag.NewExpander(sideGen)
	retriever := rag.NewRetriever(embedder, indexRepo, cfg.RAG.TopK, time.Duration(cfg.RAG.SubQueryTimeout)*time.Second)
	reranker := rag.NewReranker(scorer)

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	syncService := service.NewSyncService(store, indexRepo, fileRepo, embedder, parentSplitter, childSplitter)
	documentService := service.NewDocumentService(store, indexRepo, fileRepo)
	historyService := service.NewHistoryService(messageRepo)
	chatService := service.NewChatService(expander, retriever, reranker, chatStreamer, messageRepo, convRepo, service.ChatConfig{
		ContextWindow:   cfg.RAG.ContextWindow,
		RerankThreshold: cfg.Rerank.Threshold,
		Strict:          *cfg.RAG.StrictRAG,
		Temperature:     cfg.AI.Temperature,
	})

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Documents: handler.NewDocumentHandler(documentService, syncService),
		Chat:      handler.NewChatHandler(chatService),
		History:   handler.NewHistoryHandler(historyService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewReindexJob(userRepo, syncService), cfg.ReindexCron); err != nil {
		return fmt.Errorf("schedule reindex: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
