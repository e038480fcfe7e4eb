// Package app initializes and holds the long-lived services the
// media-inliner binary and admin HTTP surface both depend on, acting as a
// dependency injection container, mirroring the teacher's internal/app.App.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/media-inliner/internal/cms"
	cmsmemory "github.com/JakeFAU/media-inliner/internal/cms/memory"
	cmspostgres "github.com/JakeFAU/media-inliner/internal/cms/postgres"
	"github.com/JakeFAU/media-inliner/internal/config"
	"github.com/JakeFAU/media-inliner/internal/fetch"
	"github.com/JakeFAU/media-inliner/internal/inline"
	"github.com/JakeFAU/media-inliner/internal/logging"
	"github.com/JakeFAU/media-inliner/internal/mediastore"
	mgcs "github.com/JakeFAU/media-inliner/internal/mediastore/gcs"
	mlocal "github.com/JakeFAU/media-inliner/internal/mediastore/local"
	mmemory "github.com/JakeFAU/media-inliner/internal/mediastore/memory"
	"github.com/JakeFAU/media-inliner/internal/metrics"
	"github.com/JakeFAU/media-inliner/internal/notify"
	notifypubsub "github.com/JakeFAU/media-inliner/internal/notify/pubsub"
	"github.com/JakeFAU/media-inliner/internal/queue"
	"github.com/JakeFAU/media-inliner/internal/typedetect"
)

// postColumns and the rest describe the reference Postgres schema each
// Table in internal/cms/postgres reads and writes (§10's CMS collaborator).
var (
	postColumns     = []string{"feature_image", "mobiledoc", "lexical"}
	postMetaColumns = []string{"og_image", "twitter_image"}
	tagColumns      = []string{"feature_image", "og_image", "twitter_image"}
	userColumns     = []string{"profile_image", "cover_image"}
)

// App holds every shared, long-lived service: the logger, the CMS store,
// the storage registry, the queue manager, and the optional notifier. It is
// built once at startup and driven by both cmd/ and the admin HTTP surface.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     cms.Store
	registry  mediastore.Registry
	manager   *queue.Manager
	fetcher   *fetch.Fetcher
	detector  *typedetect.Detector
	notifier  *notify.Notifier
	pgPool    closer
	gcsClient closer
	psClient  closer
}

type closer interface {
	Close() error
}

// New builds an App from cfg. It fails fast if a configured backend cannot
// be reached, matching the teacher's NewApp contract.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("initializing media-inliner application services")

	metrics.Init()

	store, pgPool, err := buildCMSStore(ctx, cfg.CMS)
	if err != nil {
		return nil, fmt.Errorf("build cms store: %w", err)
	}

	registry, gcsClient, err := buildRegistry(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build storage registry: %w", err)
	}

	retryable := make(map[int]struct{}, len(cfg.Inliner.RetryableStatusCodes))
	for _, code := range cfg.Inliner.RetryableStatusCodes {
		retryable[code] = struct{}{}
	}

	manager := queue.New(queue.Options{
		BaseWaitOnRetry:                time.Duration(cfg.Inliner.BaseWaitOnRetryMs) * time.Millisecond,
		DefaultRequestInterval:         time.Duration(cfg.Inliner.DefaultRequestIntervalMs) * time.Millisecond,
		MaxConcurrentRequestsPerDomain: cfg.Inliner.MaxConcurrentRequestsPerDomain,
		MaxRequestInterval:             time.Duration(cfg.Inliner.MaxRequestIntervalMs) * time.Millisecond,
		MinRequestInterval:             time.Duration(cfg.Inliner.MinRequestIntervalMs) * time.Millisecond,
		MaxRetries:                     cfg.Inliner.MaxRetries,
		MinExpectedResponseTime:        time.Duration(cfg.Inliner.MinExpectedResponseTimeMs) * time.Millisecond,
		RetryableStatusCodes:           retryable,
	}, queue.NewHTTPDoer(&http.Client{Timeout: 30 * time.Second}))

	fetcher := fetch.New(manager, logger, retryable)
	detector := typedetect.New(logger)

	notifier, psClient, err := buildNotifier(ctx, cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	logger.Info("media-inliner application services initialized")

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		registry:  registry,
		manager:   manager,
		fetcher:   fetcher,
		detector:  detector,
		notifier:  notifier,
		pgPool:    pgPool,
		gcsClient: gcsClient,
		psClient:  psClient,
	}, nil
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger   { return a.logger }
func (a *App) GetConfig() config.Config { return a.cfg }

// StartMediaInliner is the job-entry surface from §6: it builds a fresh
// Orchestrator bound to this App's collaborators, runs it to completion,
// and publishes a best-effort completion event.
func (a *App) StartMediaInliner(ctx context.Context, domains []string) (inline.JobResult, error) {
	jobID := uuid.NewString()
	start := time.Now()

	orchestrator := inline.New(a.store, a.registry, a.fetcher, a.detector, a.manager, a.logger)
	result, err := orchestrator.Run(ctx, jobID, domains)
	if err != nil {
		a.logger.Error("media inliner job failed", zap.String("job_id", jobID), zap.Error(err))
		return result, err
	}

	if notifyErr := a.notifier.Notify(ctx, notify.Completion{
		JobID:     jobID,
		Fetched:   result.Counts.Fetched,
		Cached:    result.Counts.Cached,
		Failed:    result.Counts.Failed,
		Rewritten: result.Counts.Rewritten,
		Duration:  time.Since(start),
	}); notifyErr != nil {
		a.logger.Warn("completion notify failed", zap.String("job_id", jobID), zap.Error(notifyErr))
	}

	return result, nil
}

// Close releases every resource the App opened.
func (a *App) Close() {
	if a.pgPool != nil {
		if err := a.pgPool.Close(); err != nil {
			a.logger.Warn("error closing postgres pool", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if a.psClient != nil {
		if err := a.psClient.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("error syncing logger on shutdown", zap.Error(err))
	}
}

func buildCMSStore(ctx context.Context, cfg config.CMSConfig) (cms.Store, closer, error) {
	if cfg.DSN == "" {
		store := cms.Store{
			Posts:     cmsmemory.NewTable(),
			PostsMeta: cmsmemory.NewTable(),
			Tags:      cmsmemory.NewTable(),
			Users:     cmsmemory.NewTable(),
		}
		return store, nil, nil
	}

	pool, err := cmspostgres.NewPool(ctx, cmspostgres.Config{
		DSN:      cfg.DSN,
		MaxConns: int32(cfg.MaxOpenConns),
	})
	if err != nil {
		return cms.Store{}, nil, err
	}

	store := cms.Store{
		Posts:     cmspostgres.NewTable(pool, "posts", postColumns),
		PostsMeta: cmspostgres.NewTable(pool, "posts_meta", postMetaColumns),
		Tags:      cmspostgres.NewTable(pool, "tags", tagColumns),
		Users:     cmspostgres.NewTable(pool, "users", userColumns),
	}
	return store, pgxCloser{pool}, nil
}

type pgxCloser struct {
	pool interface{ Close() }
}

func (c pgxCloser) Close() error {
	c.pool.Close()
	return nil
}

func buildRegistry(ctx context.Context, cfg config.StorageConfig) (mediastore.Registry, closer, error) {
	table := mediastore.NewExtensionTable(cfg.Images.Extensions, cfg.Media.Extensions, cfg.Files.Extensions)

	var gcsClient *gcsclient.Client
	var err error
	needsGCS := cfg.Images.Driver == "gcs" || cfg.Media.Driver == "gcs" || cfg.Files.Driver == "gcs"
	if needsGCS {
		gcsClient, err = gcsclient.NewClient(ctx)
		if err != nil {
			return mediastore.Registry{}, nil, fmt.Errorf("build gcs client: %w", err)
		}
	}

	images, err := buildAdapter(cfg.Images, gcsClient)
	if err != nil {
		return mediastore.Registry{}, nil, fmt.Errorf("build images adapter: %w", err)
	}
	media, err := buildAdapter(cfg.Media, gcsClient)
	if err != nil {
		return mediastore.Registry{}, nil, fmt.Errorf("build media adapter: %w", err)
	}
	files, err := buildAdapter(cfg.Files, gcsClient)
	if err != nil {
		return mediastore.Registry{}, nil, fmt.Errorf("build files adapter: %w", err)
	}

	registry := mediastore.Registry{Table: table, Images: images, Media: media, Files: files}

	var closerVal closer
	if gcsClient != nil {
		closerVal = gcsClient
	}
	return registry, closerVal, nil
}

func buildAdapter(cfg config.StorageBackend, gcsClient *gcsclient.Client) (mediastore.Adapter, error) {
	switch cfg.Driver {
	case "gcs":
		return mgcs.New(gcsClient, cfg.Bucket, cfg.Prefix)
	case "memory":
		return mmemory.New(cfg.BaseDir), nil
	case "local", "":
		dir := cfg.BaseDir
		if dir == "" {
			dir = "."
		}
		return mlocal.New(dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func buildNotifier(ctx context.Context, cfg config.NotifyConfig) (*notify.Notifier, closer, error) {
	if !cfg.Enabled {
		return notify.New(nil, ""), nil, nil
	}
	if cfg.ProjectID == "" || cfg.TopicName == "" {
		return nil, nil, fmt.Errorf("notify is enabled but project_id or topic_name is not set")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicName)
	publisher := notifypubsub.New(topic)
	return notify.New(publisher, cfg.TopicName), client, nil
}
