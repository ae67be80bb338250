// Command server runs the conversation orchestration backend: the webhook
// and admin HTTP surface, the inbound queue worker, and the pseudonymization
// record purge sweeper.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	agenthandler "maestro/internal/agent/handler"
	agentservice "maestro/internal/agent/service"
	agentstore "maestro/internal/agent/store"
	convstore "maestro/internal/conversation/store"
	intentmetrics "maestro/internal/intent/metrics"
	intentservice "maestro/internal/intent/service"
	"maestro/internal/jwttoken"
	orchhandler "maestro/internal/orchestrator/handler"
	orchservice "maestro/internal/orchestrator/service"
	"maestro/internal/platform/config"
	"maestro/internal/platform/httpserver"
	"maestro/internal/platform/logger"
	redisplatform "maestro/internal/platform/redis"
	"maestro/internal/privacy/crypto"
	"maestro/internal/privacy/detect"
	privacymetrics "maestro/internal/privacy/metrics"
	privacyservice "maestro/internal/privacy/service"
	privacystore "maestro/internal/privacy/store"
	"maestro/internal/provider/echo"
	queuemetrics "maestro/internal/queue/metrics"
	queuemodels "maestro/internal/queue/models"
	queueservice "maestro/internal/queue/service"
	queuestore "maestro/internal/queue/store"
	httptransport "maestro/internal/transport/http"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/audit"
)

const (
	jwtIssuer   = "maestro"
	jwtAudience = "maestro-admin"

	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

// stores groups the persistence implementations so run can swap the whole
// set between postgres and memory.
type stores struct {
	agents        agentStore
	contacts      orchservice.ContactStore
	conversations orchservice.ConversationStore
	messages      orchservice.MessageStore
	records       privacyservice.RecordStore
	queue         queueservice.Store
}

// agentStore is the union of the admin surface and the routing directory.
type agentStore interface {
	agentservice.Store
	agentstore.Directory
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	var st stores
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		st = stores{
			agents:        agentstore.NewPostgres(db),
			contacts:      convstore.NewContactsPostgres(db),
			conversations: convstore.NewConversationsPostgres(db),
			messages:      convstore.NewMessagesPostgres(db),
			records:       privacystore.NewPostgres(db),
			queue:         queuestore.NewPostgres(db),
		}
	} else {
		log.Warn("no database configured, using in-memory stores")
		st = stores{
			agents:        agentstore.NewInMemory(),
			contacts:      convstore.NewContactsInMemory(),
			conversations: convstore.NewConversationsInMemory(),
			messages:      convstore.NewMessagesInMemory(),
			records:       privacystore.NewInMemory(),
			queue:         queuestore.NewInMemory(),
		}
	}

	if cfg.SeedTenant != "" {
		tenantID, err := id.ParseTenantID(cfg.SeedTenant)
		if err != nil {
			return fmt.Errorf("invalid seed tenant: %w", err)
		}
		if err := agentstore.Seed(ctx, st.agents, tenantID); err != nil {
			return fmt.Errorf("seed agents: %w", err)
		}
		log.Info("default agent roster installed", "tenant_id", tenantID.String())
	}

	var directory agentstore.Directory = st.agents
	var invalidator agentservice.Invalidator
	cache, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if cache != nil {
		defer cache.Close()
		cached := agentstore.NewCached(directory, cache.Client, cfg.AgentCacheTTL, log)
		directory = cached
		invalidator = cached
		log.Info("agent directory cache enabled", "ttl", cfg.AgentCacheTTL.String())
	}

	var auditor audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := kafka.Close(closeCtx); err != nil {
				log.Warn("kafka close failed", "error", err.Error())
			}
		}()
		auditor = kafka
	} else {
		log.Warn("no kafka brokers configured, audit events stay in memory")
		auditor = audit.NewMemoryPublisher()
	}

	cryptoSvc, err := crypto.New(cfg.CryptoKey, cfg.CryptoIV)
	if err != nil {
		return fmt.Errorf("crypto service: %w", err)
	}
	pseudonymizer, err := privacyservice.New(st.records, cryptoSvc, detect.New(),
		privacyservice.WithLogger(log),
		privacyservice.WithMetrics(privacymetrics.New()),
		privacyservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return fmt.Errorf("pseudonymizer: %w", err)
	}

	resolver, err := intentservice.New(directory,
		intentservice.WithLogger(log),
		intentservice.WithMetrics(intentmetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("intent resolver: %w", err)
	}

	orchestrator, err := orchservice.New(
		st.contacts, st.conversations, st.messages,
		pseudonymizer, resolver, echo.New(""),
		orchservice.WithLogger(log),
		orchservice.WithAuditPublisher(auditor),
	)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	agentSvc, err := agentservice.New(st.agents,
		agentservice.WithLogger(log),
		agentservice.WithCacheInvalidator(invalidator),
	)
	if err != nil {
		return fmt.Errorf("agent service: %w", err)
	}

	queue, err := queueservice.New(st.queue,
		queueservice.WithLogger(log),
		queueservice.WithMetrics(queuemetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	worker := queueservice.NewWorker(queue, dispatchInbound(orchestrator), cfg.QueuePollInterval)

	jwtSvc := jwttoken.New(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	router := httptransport.NewRouter(log,
		orchhandler.New(orchestrator, log),
		agenthandler.New(agentSvc, log, jwttoken.NewValidator(jwtSvc)),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		log.Info("queue worker started", "poll_interval", cfg.QueuePollInterval.String())
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("queue worker: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runPurgeSweeper(ctx, pseudonymizer, cfg.PurgeInterval, log)
	})

	return g.Wait()
}

// dispatchInbound decodes queued inbound messages and runs them through the
// orchestration pipeline.
func dispatchInbound(orchestrator *orchservice.Orchestrator) queueservice.Handler {
	return func(ctx context.Context, item *queuemodels.Item) error {
		var in orchservice.InboundMessage
		if err := json.Unmarshal(item.Payload, &in); err != nil {
			return fmt.Errorf("decode inbound payload: %w", err)
		}
		_, err := orchestrator.ProcessInbound(ctx, item.TenantID, in)
		return err
	}
}

// runPurgeSweeper deletes expired pseudonymization records on a fixed
// interval until the context is cancelled.
func runPurgeSweeper(ctx context.Context, p *privacyservice.Pseudonymizer, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.PurgeExpired(ctx); err != nil {
				log.ErrorContext(ctx, "purge sweep failed", "error", err.Error())
			}
		}
	}
}
