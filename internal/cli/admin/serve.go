package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convoflow/convoflow/internal/api/handlers"
	"github.com/convoflow/convoflow/internal/config"
	"github.com/convoflow/convoflow/internal/domain"
	"github.com/convoflow/convoflow/internal/jobs"
	"github.com/convoflow/convoflow/internal/openai"
	"github.com/convoflow/convoflow/internal/repository"
	"github.com/convoflow/convoflow/internal/server"
	"github.com/convoflow/convoflow/internal/service"
	"github.com/convoflow/convoflow/internal/storage"
	"github.com/convoflow/convoflow/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	oai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the convoflow API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required: the chat pipeline cannot run without a model provider")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	workspaceRepo := repository.NewWorkspaceRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	chatbotRepo := repository.NewChatbotRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	sourceRepo := repository.NewKnowledgeSourceRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	automationRepo := repository.NewAutomationRepository(pool)
	leadFormRepo := repository.NewLeadFormRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)

	authSvc := service.NewAuthService(workspaceRepo, apiKeyRepo)

	if cfg.InitWorkspaceName != "" {
		if err := bootstrapInitialWorkspace(ctx, cfg, authSvc, workspaceRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial workspace: %w", err)
		}
	}

	var storageClient service.StorageClientInterface
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		storageClient = s3Client
	}

	oaClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      oai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	generator := &generatorAdapter{client: oaClient}

	knowledgeSvc := service.NewKnowledgeService(sourceRepo, embeddingJobRepo, oaClient, storageClient, cfg.EmbeddingDimensions)

	chatSvc := service.NewChatService(service.ChatServiceDeps{
		Chatbots:      chatbotRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Automations:   automationRepo,
		LeadForms:     leadFormRepo,
		LeadFlow:      service.NewLeadFlowService(leadRepo),
		Rewriter:      service.NewQueryRewriter(generator, cfg.RewriteModel),
		Retriever:     service.NewRetriever(sourceRepo, oaClient),
		Composer:      service.NewAnswerComposer(generator),
		History:       service.NewHistoryService(messageRepo),
	})

	indexProcessor := jobs.NewIndexWorker(embeddingJobRepo, knowledgeSvc)
	indexWorker := jobs.NewWorker("indexing", indexProcessor, 10*time.Second)
	go indexWorker.Start(ctx)

	routerCfg := server.RouterConfig{
		AuthValidator:     authSvc,
		ChatHandler:       handlers.NewChatHandler(chatSvc),
		ChatbotHandler:    handlers.NewChatbotHandler(chatbotRepo),
		KnowledgeHandler:  handlers.NewKnowledgeHandler(knowledgeSvc, sourceRepo, chatbotRepo),
		AutomationHandler: handlers.NewAutomationHandler(automationRepo, chatbotRepo),
		LeadHandler:       handlers.NewLeadHandler(leadFormRepo, leadRepo, chatbotRepo),
		AuthHandler:       handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	indexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// generatorAdapter bridges the openai client's completion API to the
// pipeline's Generator interface.
type generatorAdapter struct {
	client *openai.Client
}

func (a *generatorAdapter) Generate(ctx context.Context, req service.GenerationRequest) (string, error) {
	return a.client.Generate(ctx, openai.CompletionRequest{
		ModelID:     req.ModelID,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

func bootstrapInitialWorkspace(ctx context.Context, cfg *config.Config, authSvc *service.AuthService, workspaceRepo *repository.WorkspaceRepository) error {
	workspace, err := workspaceRepo.GetByName(ctx, cfg.InitWorkspaceName)
	if err != nil && err != domain.ErrWorkspaceNotFound {
		return fmt.Errorf("failed to check existing workspace: %w", err)
	}

	if workspace == nil {
		workspace, err = authSvc.CreateWorkspace(ctx, cfg.InitWorkspaceName)
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}
		log.Printf("bootstrap: created workspace '%s' (id: %s)", workspace.Name, workspace.ID)
	} else {
		log.Printf("bootstrap: workspace '%s' already exists (id: %s)", workspace.Name, workspace.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid CONVOFLOW_INIT_API_KEY format (expected 'cvf_<64 hex chars>')")
		}

		if _, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil {
			log.Println("bootstrap: API key already exists")
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, workspace.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Println("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
