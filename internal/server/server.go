package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "graphrag/internal/server/middleware"
	"graphrag/internal/storage"
	"graphrag/internal/util"
	"graphrag/pkg/ai"
	oai "graphrag/pkg/ai/ollama"
	gai "graphrag/pkg/ai/openai"
	"graphrag/pkg/graph"
	"graphrag/pkg/logger"
	"graphrag/pkg/pipeline"
	"graphrag/pkg/pool"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func newAIClient() ai.GraphAIClient {
	provider := util.GetEnv("AI_PROVIDER")

	switch provider {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			CompletionModel: util.GetEnv("AI_CHAT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			CompletionModel: util.GetEnv("AI_CHAT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
		})
	}
}

func newSnapshotStore(ctx context.Context) storage.SnapshotStore {
	backend := util.GetEnv("STORAGE_BACKEND")

	switch backend {
	case "s3":
		store, err := storage.NewS3Store(ctx, util.GetEnvString("STORAGE_PREFIX", "graphs"))
		if err != nil {
			logger.Fatal("Failed to create S3 snapshot store", "err", err)
		}
		return store
	default:
		store, err := storage.NewDiskStore(util.GetEnvString("DATA_DIR", "./data"))
		if err != nil {
			logger.Fatal("Failed to create disk snapshot store", "err", err)
		}
		return store
	}
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient := newAIClient()
	snapshots := newSnapshotStore(ctx)

	builder := graph.NewClient(graph.NewClientParams{
		ChunkSize:        int(util.GetEnvNumeric("CHUNK_SIZE", 1024)),
		ChunkOverlap:     int(util.GetEnvNumeric("CHUNK_OVERLAP", 20)),
		ParallelRequests: int(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		MaxRetries:       int(util.GetEnvNumeric("AI_MAX_RETRIES", 3)),
		MaxTriplets:      int(util.GetEnvNumeric("MAX_TRIPLETS_PER_CHUNK", 10)),
	})

	gateway, err := pool.NewGateway(int(util.GetEnvNumeric("WORKER_POOL_SIZE", 8)))
	if err != nil {
		logger.Fatal("Failed to create worker gateway", "err", err)
	}

	service := pipeline.NewService(pipeline.Config{
		AI:            aiClient,
		Snapshots:     snapshots,
		Builder:       builder,
		TopK:          int(util.GetEnvNumeric("RETRIEVAL_TOP_K", 5)),
		MinSimilarity: util.GetEnvFloat("RETRIEVAL_MIN_SIMILARITY", 0.5),
		MaxRetries:    int(util.GetEnvNumeric("AI_MAX_RETRIES", 3)),
	}, gateway)

	app := &mid.App{
		Service:      service,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("Request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("32M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
