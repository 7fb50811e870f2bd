package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	assessmentservice "kinerja/internal/assessment/service"
	assessmentstore "kinerja/internal/assessment/store/assessment"
	"kinerja/internal/cache"
	"kinerja/internal/compliance"
	"kinerja/internal/httpapi"
	indicatorservice "kinerja/internal/indicator/service"
	indicatorstore "kinerja/internal/indicator/store/indicator"
	targetstore "kinerja/internal/indicator/store/target"
	performanceservice "kinerja/internal/performance/service"
	datastore "kinerja/internal/performance/store/data"
	evidencestore "kinerja/internal/performance/store/evidence"
	"kinerja/internal/platform/config"
	"kinerja/internal/platform/httpserver"
	"kinerja/internal/platform/logger"
	"kinerja/internal/platform/metrics"
	"kinerja/internal/platform/notify"
	platformpostgres "kinerja/internal/platform/postgres"
	platformredis "kinerja/internal/platform/redis"
	reportservice "kinerja/internal/report/service"
	reportstore "kinerja/internal/report/store/report"
	"kinerja/pkg/platform/audit"
	auditmemory "kinerja/pkg/platform/audit/store/memory"
	auditpostgres "kinerja/pkg/platform/audit/store/postgres"
	"kinerja/pkg/platform/tx"
)

// stores bundles the persistence layer behind its service-facing
// interfaces so wiring is identical for postgres and in-memory backends.
type stores struct {
	indicators  indicatorservice.IndicatorStore
	targets     indicatorservice.TargetStore
	data        performanceservice.DataStore
	flagger     indicatorservice.DataFlagger
	evidence    performanceservice.EvidenceStore
	assessments assessmentservice.Store
	reports     reportservice.Store
	audit       audit.Store
	txr         indicatorservice.TxRunner
	health      httpapi.HealthCheck
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	st, closeStores, err := buildStores(cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	// Cache: redis when configured, in-process otherwise.
	var cacheLayer cache.Cache
	redisHealth := httpapi.HealthCheck(nil)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheLayer = cache.NewRedisCache(redisClient.Client, cfg.CacheTTL)
		redisHealth = redisClient.Health
		log.Info("redis cache enabled")
	} else {
		cacheLayer = cache.NewMemoryCache(cfg.CacheTTL)
		log.Info("using in-process cache")
	}

	// Audit recorder with its background persistence worker.
	recorder := audit.NewRecorder(
		audit.WithLogger(log),
		audit.WithWriteCounter(m.AuditEventsWritten.Inc),
		audit.WithDropCounter(m.AuditEventsDropped.Inc),
	)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		recorder.Run(recorderCtx, st.audit)
	}()

	// Notifications: kafka when brokers are configured.
	var dispatcher notify.Dispatcher = notify.Noop{}
	kafkaDispatcher, err := notify.NewKafkaDispatcher(cfg.Kafka, log)
	if err != nil {
		log.Error("kafka initialization failed", "error", err)
		os.Exit(1)
	}
	if kafkaDispatcher != nil {
		defer kafkaDispatcher.Close()
		dispatcher = kafkaDispatcher
		log.Info("kafka notifications enabled", "topic", cfg.Kafka.Topic)
	}

	indicators := indicatorservice.New(st.indicators, st.targets, st.txr,
		indicatorservice.WithLogger(log),
		indicatorservice.WithRecorder(recorder),
		indicatorservice.WithCache(cacheLayer),
		indicatorservice.WithDataFlagger(st.flagger),
	)
	performance := performanceservice.New(st.data, st.evidence, indicators,
		performanceservice.WithLogger(log),
		performanceservice.WithRecorder(recorder),
		performanceservice.WithDispatcher(dispatcher),
		performanceservice.WithCache(cacheLayer),
		performanceservice.WithMetrics(m),
	)
	assessments := assessmentservice.New(st.assessments, indicators, performance, st.txr,
		assessmentservice.WithLogger(log),
		assessmentservice.WithRecorder(recorder),
		assessmentservice.WithDispatcher(dispatcher),
		assessmentservice.WithCache(cacheLayer),
		assessmentservice.WithMetrics(m),
	)
	reports := reportservice.New(st.reports,
		reportservice.WithLogger(log),
		reportservice.WithRecorder(recorder),
		reportservice.WithCache(cacheLayer),
	)
	aggregator := compliance.New(
		compliance.StoreSources{
			IndicatorStore:  st.indicators,
			SubmissionStore: st.data,
			EvidenceStore:   st.evidence,
			AssessmentStore: st.assessments,
			ReportStore:     st.reports,
			AuditStore:      st.audit,
		},
		compliance.WithLogger(log),
		compliance.WithRecorder(recorder),
		compliance.WithCache(cacheLayer),
		compliance.WithMetrics(m),
		compliance.WithAuditEstimate(compliance.AuditEstimate{
			Data:        cfg.AuditEstimate.Data,
			Assessments: cfg.AuditEstimate.Assessments,
			Reports:     cfg.AuditEstimate.Reports,
		}),
		compliance.WithTimelinessGrace(cfg.TimelinessGrace),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Indicators:  indicators,
		Performance: performance,
		Assessments: assessments,
		Reports:     reports,
		Compliance:  aggregator,
		Logger:      log,
		Health: map[string]httpapi.HealthCheck{
			"postgres": st.health,
			"redis":    redisHealth,
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting kinerja", "addr", cfg.Addr)
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
	}

	// Stop the recorder last so audit events from in-flight requests drain.
	stopRecorder()
	select {
	case <-recorderDone:
	case <-time.After(5 * time.Second):
		log.Warn("audit recorder did not drain in time")
	}
}

// buildStores selects the persistence backend: postgres when a URL is
// configured, in-memory otherwise. The in-memory mode exists for local
// development and demos, not durability.
func buildStores(cfg config.Config) (*stores, func(), error) {
	if cfg.PostgresURL == "" {
		mem := datastore.NewInMemoryStore()
		return &stores{
			indicators:  indicatorstore.NewInMemoryStore(),
			targets:     targetstore.NewInMemoryStore(),
			data:        mem,
			flagger:     mem,
			evidence:    evidencestore.NewInMemoryStore(),
			assessments: assessmentstore.NewInMemoryStore(),
			reports:     reportstore.NewInMemoryStore(),
			audit:       auditmemory.NewInMemoryStore(),
			txr:         indicatorservice.PassthroughRunner{},
		}, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := platformpostgres.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, nil, err
	}
	data := datastore.NewPostgresStore(db)
	return &stores{
		indicators:  indicatorstore.NewPostgresStore(db),
		targets:     targetstore.NewPostgresStore(db),
		data:        data,
		flagger:     data,
		evidence:    evidencestore.NewPostgresStore(db),
		assessments: assessmentstore.NewPostgresStore(db),
		reports:     reportstore.NewPostgresStore(db),
		audit:       auditpostgres.New(db),
		txr:         tx.NewRunner(db),
		health:      func(ctx context.Context) error { return db.PingContext(ctx) },
	}, func() { db.Close() }, nil
}
