// main wires the credential agent: identity directory, proof signer,
// credential services, revocation engine, messaging dispatcher, and the
// HTTP edge. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/issuer"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/credential/verifier"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/config"
	"github.com/tientaidev/veramo-agent/internal/platform/httpserver"
	"github.com/tientaidev/veramo-agent/internal/platform/logger"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	"github.com/tientaidev/veramo-agent/internal/platform/postgres"
	platformredis "github.com/tientaidev/veramo-agent/internal/platform/redis"
	"github.com/tientaidev/veramo-agent/internal/registry"
	"github.com/tientaidev/veramo-agent/internal/revocation"
	"github.com/tientaidev/veramo-agent/internal/transfer"
	transporthttp "github.com/tientaidev/veramo-agent/internal/transport/http"
)

const statusCacheTTL = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	directory := identity.NewMemoryDirectory()
	var resolver identity.Resolver = identity.NewDirectoryResolver(directory, cfg.RegistryChainID)
	if cfg.ResolverURL != "" {
		resolver = identity.NewFallbackResolver(resolver, identity.NewHTTPResolver(cfg.ResolverURL))
	}

	var health []transporthttp.HealthCheck

	var credStore store.Store = store.NewMemory()
	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("credential schema setup failed", "error", err)
			os.Exit(1)
		}
		credStore = pg
		health = append(health, transporthttp.HealthCheck{
			Name:  "postgres",
			Check: func() error { return db.PingContext(context.Background()) },
		})
	}

	var records revocation.RecordStore = revocation.NewMemoryRecordStore(statusCacheTTL)
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		records = revocation.NewRedisRecordStore(redisClient.Client, statusCacheTTL)
		health = append(health, transporthttp.HealthCheck{
			Name:  "redis",
			Check: func() error { return redisClient.Health(context.Background()) },
		})
	}

	var auditor audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka publisher setup failed", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		auditor = kafka
	}

	var chain registry.Client
	if cfg.RegistryRPCURL != "" {
		ethr, err := registry.NewEthrStatusRegistry(ctx, cfg.RegistryRPCURL, cfg.RegistryAddress, cfg.RegistryChainID)
		if err != nil {
			log.Error("status registry client setup failed", "error", err)
			os.Exit(1)
		}
		defer ethr.Close()
		chain = ethr
	} else {
		log.Warn("no registry RPC configured, revocation submissions will fail")
		chain = registry.Unconfigured{}
	}

	signer := proof.NewSigner(directory, resolver)
	dispatcher := messaging.New(directory, resolver, log, m)

	router := transporthttp.NewRouter(transporthttp.Deps{
		Logger:     log,
		Metrics:    m,
		Gatherer:   reg,
		Directory:  directory,
		Resolver:   resolver,
		Issuer:     issuer.New(signer, credStore, dispatcher, auditor, log, m),
		Verifier:   verifier.New(signer, log, m, auditor),
		Transfer:   transfer.New(signer, dispatcher, auditor, log, m),
		Revocation: revocation.NewEngine(credStore, records, resolver, directory, chain, cfg.RevokeGasLimit, log, m, auditor),
		Store:      credStore,
		Dispatcher:     dispatcher,
		Health:         health,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("agent listening", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
