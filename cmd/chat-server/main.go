// cmd/chat-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dealerdesk/internal/catalog"
	"dealerdesk/internal/common/aws"
	"dealerdesk/internal/common/config"
	"dealerdesk/internal/common/database"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/common/observability"
	"dealerdesk/internal/completion"
	"dealerdesk/internal/crm"
	"dealerdesk/internal/inventory"
	"dealerdesk/internal/knowledge"
	"dealerdesk/internal/models"
	"dealerdesk/internal/notify"
	"dealerdesk/internal/orchestrator"
	"dealerdesk/internal/server"
	"dealerdesk/internal/session"
	"dealerdesk/internal/storage"
)

// retryWithBackoff attempts an operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// leadPipeline fans a qualified lead out to Postgres, the CRM and
// staff notifications.
type leadPipeline struct {
	repo     *storage.LeadRepository
	crm      *crm.Client
	notifier *notify.Notifier
	log      logger.Logger
}

func (p *leadPipeline) LeadQualified(_ context.Context, sessionID string, lead models.Lead) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := p.repo.Save(ctx, sessionID, lead); err != nil {
			p.log.WithError(err).Warn("lead persistence failed", map[string]interface{}{"session_id": sessionID})
		}
		if p.crm != nil {
			if _, err := p.crm.PushLead(ctx, lead); err != nil {
				p.log.WithError(err).Warn("crm push failed", map[string]interface{}{"session_id": sessionID})
			}
		}
		if p.notifier != nil {
			p.notifier.LeadQualified(ctx, sessionID, lead)
		}
	}()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting chat server",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	// --- Session store: Redis when enabled, in-memory otherwise ---
	var store session.Store
	if cfg.Database.Redis.Enabled {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		ttl := time.Duration(cfg.Chat.SessionTTL) * time.Hour
		store = session.NewRedisStore(rc.Client, ttl, log)
		zapLog.Info("using redis session store", zap.Duration("ttl", ttl))
	} else {
		store = session.NewMemoryStore()
		zapLog.Info("using in-memory session store")
	}

	// --- Catalog source ---
	catalogRepo := storage.NewCatalogRepository(pg.DB, log)
	var source catalog.Source
	switch cfg.Catalog.Source {
	case "elasticsearch":
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		source = catalog.NewElasticsearchSource(es.Client, cfg.Database.Elasticsearch.Index)
	default:
		source = catalog.NewPostgresSource(catalogRepo)
	}

	if cfg.Catalog.SeedPath != "" {
		seeds, err := catalog.LoadSeedFile(cfg.Catalog.SeedPath)
		if err != nil {
			zapLog.Fatal("catalog seed load failed", zap.Error(err))
		}
		if err := catalogRepo.Seed(ctx, seeds); err != nil {
			zapLog.Fatal("catalog seeding failed", zap.Error(err))
		}
		zapLog.Info("catalog seeded", zap.Int("listings", len(seeds)))
	}

	snapshot := catalog.NewSnapshot(source, log)
	if err := snapshot.StartRefreshing(ctx, cfg.Catalog.RefreshCron); err != nil {
		zapLog.Fatal("catalog refresh failed", zap.Error(err))
	}
	defer snapshot.Stop()

	// --- Notifications ---
	var notifier *notify.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var email notify.EmailSender
		var sms notify.SMSSender
		if cfg.Notifications.Email.Enabled {
			sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
			email = sesClient
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			sms = snsClient
		}
		notifier = notify.New(email, sms, cfg.Notifications, log)
	}

	// --- Lead pipeline ---
	leadRepo := storage.NewLeadRepository(pg.DB, log)
	pipeline := &leadPipeline{repo: leadRepo, notifier: notifier, log: log}
	if cfg.CRM.Enabled {
		pipeline.crm = crm.NewClient(cfg.CRM)
	}

	// --- Core ---
	ai := completion.NewOpenAIClient(cfg.AI, log)
	searcher := inventory.NewSearcher(cfg.Chat.MaxResults)
	orch := orchestrator.New(
		store,
		knowledge.NewDefaultMatcher(),
		searcher,
		snapshot,
		ai,
		log,
		orchestrator.WithLeadSink(pipeline),
		orchestrator.WithTurnArchive(storage.NewTurnRepository(pg.DB, log)),
		orchestrator.WithObservability(obs),
		orchestrator.WithHistoryWindow(cfg.Chat.HistoryWindow),
	)

	bookingRepo := storage.NewBookingRepository(pg.DB, log)
	var bookingNotifier server.BookingNotifier
	if notifier != nil {
		bookingNotifier = notifier
	}
	srv := server.New(orch, leadRepo, bookingRepo, bookingNotifier, snapshot, searcher, store, log)
	httpServer := srv.HTTPServer(cfg.Server)

	go func() {
		zapLog.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	zapLog.Info("shutdown complete")
}
