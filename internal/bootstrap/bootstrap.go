// Package bootstrap builds the object graph shared by the api, worker and
// merchctl binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"brandmerch/internal/adapter/repo"
	"brandmerch/internal/infra"
	"brandmerch/internal/infra/credentials"
	"brandmerch/internal/magiclink"
	"brandmerch/internal/notify"
	"brandmerch/internal/pipeline"
	"brandmerch/internal/prompts"
	"brandmerch/internal/providers/brand"
	"brandmerch/internal/providers/genai"
	"brandmerch/internal/providers/llm"
	"brandmerch/internal/providers/scrape"
	"brandmerch/internal/recovery"
	"brandmerch/internal/retry"
	"brandmerch/internal/storage"
)

// Container holds the wired services.
type Container struct {
	Pool        *pgxpool.Pool
	Runner      *infra.SQLRunner
	Sessions    *repo.SessionRepositoryPG
	Tasks       *repo.TaskQueuePG
	Products    *repo.ProductRepositoryPG
	Prompts     *prompts.Store
	Credentials *credentials.Store
	Store       storage.ObjectStore
	// StaticDir is set when objects live on the local filesystem.
	StaticDir string
	Links     *magiclink.Signer
	Pipeline  *pipeline.Service
	Sweeper   *recovery.Sweeper

	text llm.Generator
}

// New connects to the database and wires every collaborator from cfg.
func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Container, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Container{Pool: pool}
	if err := c.wire(ctx, cfg, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) wire(ctx context.Context, cfg *infra.Config, logger *infra.Logger) error {
	c.Runner = infra.NewSQLRunner(c.Pool, *logger)
	c.Sessions = repo.NewSessionRepository(c.Runner)
	c.Tasks = repo.NewTaskQueue(c.Runner, repo.DefaultTaskMaxAttempts)
	c.Products = repo.NewProductRepository(c.Runner)
	c.Prompts = prompts.NewStore(repo.NewPromptRepository(c.Runner), prompts.WithTTL(cfg.PromptCacheTTL))
	c.Credentials = credentials.NewStore(c.Runner)

	store, staticDir, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	c.Store, c.StaticDir = store, staticDir

	geminiKey := c.Credentials.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	brandKey := c.Credentials.Resolve(ctx, credentials.ProviderBrand, cfg.BrandAPIKey)
	resendKey := c.Credentials.Resolve(ctx, credentials.ProviderResend, cfg.ResendAPIKey)

	c.text, err = newTextGenerator(ctx, cfg, geminiKey, c.Credentials.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey), logger)
	if err != nil {
		return err
	}

	if geminiKey == "" {
		logger.Warn().Msg("bootstrap: gemini api key missing, images are synthetic")
	}
	images := genai.NewClient(genai.Options{
		APIKey:     geminiKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiImageModel,
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Logger:     logger,
	})

	var sender notify.Sender
	if resendKey == "" {
		logger.Warn().Msg("bootstrap: resend api key missing, emails are logged only")
		sender = notify.LogSender{Logger: logger}
	} else {
		sender = notify.NewResendSender(notify.ResendOptions{APIKey: resendKey, From: cfg.EmailFrom})
	}
	notifier := notify.NewNotifier(sender, logger)

	c.Links, err = magiclink.NewSigner(magiclink.Options{
		Secret:  cfg.LinkSecret,
		BaseURL: cfg.AppBaseURL,
		MaxAge:  cfg.MagicLinkMaxAge,
	})
	if err != nil {
		return err
	}

	c.Pipeline, err = pipeline.NewService(pipeline.Deps{
		Sessions: c.Sessions,
		Products: c.Products,
		Tasks:    c.Tasks,
		Prompts:  c.Prompts,
		Brand:    brand.NewClient(brand.Options{APIKey: brandKey, BaseURL: cfg.BrandAPIBaseURL}),
		Scraper:  scrape.New(scrape.Options{}),
		Text:     c.text,
		Images:   images,
		Store:    c.Store,
		Notifier: notifier,
		Links:    c.Links,
		Retry: retry.Policy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
		},
		Timeouts: pipeline.Timeouts{
			Scrape:   cfg.StageTimeouts.Scrape,
			Concept:  cfg.StageTimeouts.Concept,
			Motif:    cfg.StageTimeouts.Motif,
			Products: cfg.StageTimeouts.Products,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	c.Sweeper = recovery.NewSweeper(c.Sessions, notifier, c.Links, recovery.Options{
		StaleAge: cfg.RecoveryStaleAge,
		Logger:   logger,
	})
	return nil
}

// newTextGenerator picks the configured text model. A missing key falls
// back to the static generator so the pipeline still runs end to end.
func newTextGenerator(ctx context.Context, cfg *infra.Config, geminiKey, openAIKey string, logger *infra.Logger) (llm.Generator, error) {
	switch {
	case cfg.LLMProvider == "openai" && openAIKey != "":
		return llm.NewOpenAIGenerator(llm.OpenAIOptions{APIKey: openAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL})
	case cfg.LLMProvider != "openai" && geminiKey != "":
		return llm.NewGeminiGenerator(ctx, llm.GeminiOptions{APIKey: geminiKey, Model: cfg.GeminiModel})
	default:
		logger.Warn().Str("provider", cfg.LLMProvider).Msg("bootstrap: text model key missing, using static text")
		return llm.NewStaticGenerator(), nil
	}
}

func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, string, error) {
	switch cfg.StorageDriver {
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:        cfg.AWSRegion,
			AccessKey:     cfg.AWSAccessKey,
			SecretKey:     cfg.AWSSecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		return store, "", err
	case "file", "":
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BasePath(), nil
	default:
		return nil, "", fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Close releases the text model client and the database pool.
func (c *Container) Close() {
	if closer, ok := c.text.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
